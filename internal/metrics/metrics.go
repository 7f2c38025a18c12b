// Package metrics holds the Prometheus collectors for calls made to the
// Remote Student Store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected" // store answered with a non-success status
	OutcomeFailed   = "failed"   // transport error, no answer
)

// Store records one observation per store request.
type Store struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewStore builds the collectors on a private registry so tests and
// multiple instances never collide on the global one.
func NewStore() *Store {
	m := &Store{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "students_admin",
			Name:      "store_requests_total",
			Help:      "Requests sent to the student store, by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "students_admin",
			Name:      "store_request_duration_seconds",
			Help:      "Latency of requests sent to the student store.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	m.registry.MustRegister(m.requests, m.duration)
	return m
}

// Observe records a finished request. A nil *Store is a no-op.
func (m *Store) Observe(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Requests returns the counter for op and outcome. Exposed for tests.
func (m *Store) Requests(op, outcome string) prometheus.Counter {
	return m.requests.WithLabelValues(op, outcome)
}

// Handler serves the registry in the Prometheus text format.
func (m *Store) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
