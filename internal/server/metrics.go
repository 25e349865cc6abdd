package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector records HTTP traffic for the API endpoints.
type MetricsCollector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	transfers       *prometheus.CounterVec
	streamedRows    prometheus.Counter
}

// NewMetricsCollector creates the HTTP collectors and registers them with
// reg, which is also what ServeMetrics exposes.
func NewMetricsCollector(reg *prometheus.Registry) *MetricsCollector {
	m := &MetricsCollector{
		registry: reg,
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "Time spent processing request",
			},
			[]string{"endpoint"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of requests by endpoint and status code",
			},
			[]string{"endpoint", "code"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by the per-IP rate limiter",
			},
			[]string{"endpoint"},
		),
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "porkchop_requests_total",
				Help: "Porkchop requests by departure and arrival body",
			},
			[]string{"departure", "arrival"},
		),
		streamedRows: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "websocket_rows_streamed_total",
				Help: "Grid rows sent over WebSocket connections",
			},
		),
	}

	reg.MustRegister(m.requestDuration, m.requestsTotal, m.rateLimited, m.transfers, m.streamedRows)
	return m
}

func (m *MetricsCollector) RecordRequest(endpoint string, code int, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	m.requestsTotal.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}

func (m *MetricsCollector) RecordRateLimited(endpoint string) {
	m.rateLimited.WithLabelValues(endpoint).Inc()
}

func (m *MetricsCollector) RecordTransfer(departure, arrival string) {
	m.transfers.WithLabelValues(departure, arrival).Inc()
}

func (m *MetricsCollector) RecordStreamedRow() {
	m.streamedRows.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
