package porkchop

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records grid builds. A nil *Metrics is valid and records nothing.
type Metrics struct {
	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	cells         *prometheus.CounterVec
}

// NewMetrics creates the builder collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "porkchop_builds_total",
				Help: "Porkchop grid builds by result",
			},
			[]string{"result"},
		),
		buildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "porkchop_build_duration_seconds",
				Help:    "Time spent building a porkchop grid, including ephemeris fetches",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		cells: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "porkchop_cells_total",
				Help: "Grid cells computed, by whether a transfer was found",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(m.builds, m.buildDuration, m.cells)
	return m
}

func (m *Metrics) recordBuild(g *Grid, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if err != nil {
		m.builds.WithLabelValues("error").Inc()
		return
	}
	m.builds.WithLabelValues("success").Inc()
	m.buildDuration.Observe(duration.Seconds())

	valid := 0
	for i := 0; i < g.Rows(); i++ {
		for j := 0; j < g.Cols(); j++ {
			if g.Valid(i, j) {
				valid++
			}
		}
	}
	m.cells.WithLabelValues("valid").Add(float64(valid))
	m.cells.WithLabelValues("invalid").Add(float64(g.Rows()*g.Cols() - valid))
}
