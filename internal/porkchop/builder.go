// Package porkchop builds porkchop plots: grids of transfer cost over every
// pair of departure and arrival dates between two planets.
package porkchop

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/latency-space/porkchop/internal/bodies"
	"github.com/latency-space/porkchop/internal/ephemeris"
	"github.com/latency-space/porkchop/internal/lambert"
	"github.com/latency-space/porkchop/internal/vector"
)

// Resolution bounds. A resolution of n samples each window at n+1 points.
const (
	MinResolution     = 5
	MaxResolution     = 100
	DefaultResolution = 50
)

// EphemerisProvider supplies state vectors for a body over a date window.
type EphemerisProvider interface {
	GetEphemeris(ctx context.Context, body, start, end string, samples int) (ephemeris.Series, error)
}

// Request describes one porkchop plot.
type Request struct {
	DepartureBody  string `json:"departureBody"`
	ArrivalBody    string `json:"arrivalBody"`
	DepartureStart string `json:"departureStart"`
	DepartureEnd   string `json:"departureEnd"`
	ArrivalStart   string `json:"arrivalStart"`
	ArrivalEnd     string `json:"arrivalEnd"`
	Resolution     int    `json:"resolution,omitempty"`
}

// RowFunc receives the grid after row i has been filled. Returning an error
// stops the build.
type RowFunc func(g *Grid, i int) error

// Builder computes porkchop grids from an ephemeris provider.
type Builder struct {
	provider          EphemerisProvider
	logger            *slog.Logger
	metrics           *Metrics
	defaultResolution int
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the builder's logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics sets the builder's metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(b *Builder) {
		b.metrics = m
	}
}

// WithDefaultResolution sets the resolution used when a request leaves it
// unset. Out-of-range values are clamped.
func WithDefaultResolution(n int) Option {
	return func(b *Builder) {
		b.defaultResolution = clampResolution(n)
	}
}

// NewBuilder creates a builder over provider.
func NewBuilder(provider EphemerisProvider, opts ...Option) *Builder {
	b := &Builder{
		provider:          provider,
		logger:            slog.Default(),
		defaultResolution: DefaultResolution,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build computes the full grid for req. Either every cell is computed or an
// error is returned; unknown bodies and missing dates fail with
// *ephemeris.InvalidInputError before any ephemeris is fetched.
func (b *Builder) Build(ctx context.Context, req Request) (*Grid, error) {
	return b.Stream(ctx, req, nil)
}

// Stream is Build with a callback after each departure row. Both ephemerides
// are fetched before the first callback. The build ignores ctx cancellation
// and runs to completion unless onRow returns an error.
func (b *Builder) Stream(ctx context.Context, req Request, onRow RowFunc) (*Grid, error) {
	started := time.Now()

	grid, err := b.build(ctx, req, onRow)
	b.metrics.recordBuild(grid, err, time.Since(started))
	if err != nil {
		return nil, err
	}

	b.logger.Debug("Porkchop grid built",
		"departure", grid.Departure.Body, "arrival", grid.Arrival.Body,
		"rows", grid.Rows(), "cols", grid.Cols(), "elapsed", time.Since(started))
	return grid, nil
}

func (b *Builder) build(ctx context.Context, req Request, onRow RowFunc) (*Grid, error) {
	dep, arr, resolution, err := b.validate(req)
	if err != nil {
		return nil, err
	}

	// Fetches outlive the caller: an abandoned request still completes and
	// leaves both series cached.
	fetchCtx := context.WithoutCancel(ctx)

	var depSeries, arrSeries ephemeris.Series
	var g errgroup.Group
	g.Go(func() error {
		s, err := b.provider.GetEphemeris(fetchCtx, dep.Name, req.DepartureStart, req.DepartureEnd, resolution)
		if err != nil {
			return fmt.Errorf("departure ephemeris: %w", err)
		}
		depSeries = s
		return nil
	})
	g.Go(func() error {
		s, err := b.provider.GetEphemeris(fetchCtx, arr.Name, req.ArrivalStart, req.ArrivalEnd, resolution)
		if err != nil {
			return fmt.Errorf("arrival ephemeris: %w", err)
		}
		arrSeries = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	grid := newGrid(axis(dep.Name, depSeries), axis(arr.Name, arrSeries))

	for i, d := range depSeries {
		for j, a := range arrSeries {
			s, ok := transfer(d, a)
			if !ok {
				grid.invalidate(i, j)
				continue
			}
			grid.set(i, j, s)
		}

		if onRow != nil {
			if err := onRow(grid, i); err != nil {
				return nil, err
			}
		}
	}

	return grid, nil
}

func (b *Builder) validate(req Request) (dep, arr *bodies.Body, resolution int, err error) {
	dep, ok := bodies.Lookup(req.DepartureBody)
	if !ok {
		return nil, nil, 0, &ephemeris.InvalidInputError{Field: "departureBody", Value: req.DepartureBody, Valid: bodies.Names()}
	}
	arr, ok = bodies.Lookup(req.ArrivalBody)
	if !ok {
		return nil, nil, 0, &ephemeris.InvalidInputError{Field: "arrivalBody", Value: req.ArrivalBody, Valid: bodies.Names()}
	}

	dates := []struct{ field, value string }{
		{"departureStart", req.DepartureStart},
		{"departureEnd", req.DepartureEnd},
		{"arrivalStart", req.ArrivalStart},
		{"arrivalEnd", req.ArrivalEnd},
	}
	for _, d := range dates {
		if strings.TrimSpace(d.value) == "" {
			return nil, nil, 0, &ephemeris.InvalidInputError{Field: d.field, Reason: "date is required"}
		}
	}

	resolution = req.Resolution
	if resolution == 0 {
		resolution = b.defaultResolution
	}
	return dep, arr, clampResolution(resolution), nil
}

// transfer solves the prograde arc from departure state d to arrival state a.
func transfer(d, a ephemeris.StateVector) (Sample, bool) {
	dt := (a.Epoch - d.Epoch) * bodies.SecondsPerDay
	if dt <= 0 {
		return Sample{}, false
	}

	sol, ok := lambert.Solve(d.Position, a.Position, dt, bodies.MuSun, true)
	if !ok {
		return Sample{}, false
	}

	vinfDep := vector.Mag(vector.Sub(sol.V1, d.Velocity))
	vinfArr := vector.Mag(vector.Sub(sol.V2, a.Velocity))
	return Sample{
		DepartureExcess: vinfDep,
		ArrivalExcess:   vinfArr,
		C3:              vinfDep * vinfDep,
		DeltaV:          vinfDep + vinfArr,
		TimeOfFlight:    dt / bodies.SecondsPerDay,
	}, true
}

func axis(body string, s ephemeris.Series) Axis {
	ax := Axis{
		Body:   body,
		Epochs: make([]float64, len(s)),
		Dates:  make([]string, len(s)),
	}
	for i, sv := range s {
		ax.Epochs[i] = sv.Epoch
		ax.Dates[i] = sv.CalendarDate
	}
	return ax
}

func clampResolution(n int) int {
	if n < MinResolution {
		return MinResolution
	}
	if n > MaxResolution {
		return MaxResolution
	}
	return n
}
