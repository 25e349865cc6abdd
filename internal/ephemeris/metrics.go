package ephemeris

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records cache and upstream activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	cacheLookups  *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// NewMetrics creates the ephemeris collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ephemeris_cache_lookups_total",
				Help: "Ephemeris cache lookups by result",
			},
			[]string{"result"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ephemeris_fetches_total",
				Help: "Upstream ephemeris fetches by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "ephemeris_fetch_duration_seconds",
				Help: "Time spent fetching ephemeris from the upstream source",
			},
			[]string{"source"},
		),
	}

	reg.MustRegister(m.cacheLookups, m.fetches, m.fetchDuration)
	return m
}

func (m *Metrics) recordLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) recordFetch(source string, outcome Outcome, duration time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(source, outcome.String()).Inc()
	m.fetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}
