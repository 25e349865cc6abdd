package ephemeris

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/latency-space/porkchop/internal/bodies"
)

// Provider serves ephemeris series from a cache, falling back to its source
// on a miss.
type Provider struct {
	source  Source
	cache   *Cache
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider's logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the provider's metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}

// NewProvider creates a provider over source. A nil cache gets a default one.
func NewProvider(source Source, cache *Cache, opts ...Option) *Provider {
	if cache == nil {
		cache = NewCache(DefaultTTL, DefaultMaxEntries, nil)
	}
	p := &Provider{
		source: source,
		cache:  cache,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetEphemeris returns samples+1 state vectors for the named body over
// [start, end]. Unknown bodies and missing fields fail with
// *InvalidInputError before the source is consulted. The source fetch is
// detached from ctx cancellation so an abandoned caller still warms the
// cache; the source's own timeout bounds it.
func (p *Provider) GetEphemeris(ctx context.Context, bodyName, start, end string, samples int) (Series, error) {
	body, ok := bodies.Lookup(bodyName)
	if !ok {
		return nil, &InvalidInputError{Field: "body", Value: bodyName, Valid: bodies.Names()}
	}
	if strings.TrimSpace(start) == "" {
		return nil, &InvalidInputError{Field: "start", Reason: "date is required"}
	}
	if strings.TrimSpace(end) == "" {
		return nil, &InvalidInputError{Field: "end", Reason: "date is required"}
	}
	if samples < 1 {
		return nil, &InvalidInputError{Field: "samples", Reason: fmt.Sprintf("must be at least 1, got %d", samples)}
	}

	req := Request{Body: body, Start: start, End: end, Samples: samples}
	key := req.key()

	if series, ok := p.cache.Get(key); ok {
		p.metrics.recordLookup(true)
		return series, nil
	}
	p.metrics.recordLookup(false)

	began := time.Now()
	res := p.source.Fetch(context.WithoutCancel(ctx), req)
	p.metrics.recordFetch(p.source.Name(), res.Outcome, time.Since(began))

	if err := res.Err(body.HorizonsID); err != nil {
		p.logger.Warn("Ephemeris fetch failed",
			"source", p.source.Name(), "body", body.Name, "start", start, "end", end,
			"outcome", res.Outcome.String(), "error", err)
		return nil, err
	}

	if len(res.Series) != samples+1 {
		err := &FormatError{
			BodyID: body.HorizonsID,
			Detail: fmt.Sprintf("expected %d rows, got %d", samples+1, len(res.Series)),
		}
		p.logger.Warn("Ephemeris row count mismatch", "body", body.Name, "error", err)
		return nil, err
	}

	p.cache.Put(key, res.Series)
	p.logger.Debug("Ephemeris fetched",
		"source", p.source.Name(), "body", body.Name, "rows", len(res.Series), "elapsed", time.Since(began))
	return res.Series, nil
}
