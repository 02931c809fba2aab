package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for specification resolution.
type Metrics struct {
	// Resolution outcomes by status and strategy
	Outcomes *prometheus.CounterVec

	// Bind attempts by operation and result
	BindAttempts *prometheus.CounterVec

	// Failed catalog queries
	QueryFailures prometheus.Counter

	// Full resolution latency, including catalog queries
	ResolveLatency prometheus.Histogram
}

// New creates a Metrics instance registered with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labspec_resolution_outcomes_total",
			Help: "Total specification resolutions by status and strategy",
		}, []string{"status", "strategy"}),

		BindAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labspec_bind_attempts_total",
			Help: "Total bind operation attempts by operation and result",
		}, []string{"operation", "result"}), // result: "ok", "error"

		QueryFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "labspec_catalog_query_failures_total",
			Help: "Total specification catalog queries that failed during resolution",
		}),

		ResolveLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "labspec_resolve_duration_seconds",
			Help:    "Duration of a single analysis resolution",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementOutcome records a resolution outcome.
func (m *Metrics) IncrementOutcome(status, strategy string) {
	if m != nil {
		m.Outcomes.WithLabelValues(status, strategy).Inc()
	}
}

// IncrementBindAttempt records one bind operation attempt.
func (m *Metrics) IncrementBindAttempt(operation string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.BindAttempts.WithLabelValues(operation, result).Inc()
}

// AddQueryFailures records failed catalog queries.
func (m *Metrics) AddQueryFailures(n int) {
	if m != nil && n > 0 {
		m.QueryFailures.Add(float64(n))
	}
}

// ObserveResolveLatency records the duration of one resolution.
func (m *Metrics) ObserveResolveLatency(d time.Duration) {
	if m != nil {
		m.ResolveLatency.Observe(d.Seconds())
	}
}
