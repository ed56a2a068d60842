package openlaw

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts upstream traffic. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	retries  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics registers the open law client metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safeon",
			Subsystem: "openlaw",
			Name:      "requests_total",
			Help:      "Open law API requests by endpoint, target, format and outcome.",
		}, []string{"endpoint", "target", "format", "code"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safeon",
			Subsystem: "openlaw",
			Name:      "retries_total",
			Help:      "Retried open law API requests by endpoint and target.",
		}, []string{"endpoint", "target"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "safeon",
			Subsystem: "openlaw",
			Name:      "request_duration_seconds",
			Help:      "Open law API round-trip time.",
			Buckets:   []float64{.1, .25, .5, 1, 2, 5, 10, 25},
		}, []string{"endpoint", "target"}),
	}
	reg.MustRegister(m.requests, m.retries, m.latency)
	return m
}

// observe records one attempt. code is the HTTP status, or "error" when no
// response arrived.
func (m *Metrics) observe(endpoint, target, format string, status int, took time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(endpoint, target, format, code).Inc()
	m.latency.WithLabelValues(endpoint, target).Observe(took.Seconds())
}

func (m *Metrics) retry(endpoint, target string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(endpoint, target).Inc()
}
