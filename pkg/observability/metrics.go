// Package observability exposes the bus's Prometheus metric set.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every metric the bus emits.
type Metrics struct {
	// Publish pipeline
	PublishesTotal  *prometheus.CounterVec
	PublishDuration *prometheus.HistogramVec

	// Subscriber handlers
	HandlerDuration      *prometheus.HistogramVec
	HandlerFailuresTotal *prometheus.CounterVec

	// Circuit breaker
	BreakerTransitionsTotal *prometheus.CounterVec

	// Audit trail
	AuditWriteFailuresTotal prometheus.Counter
}

// NewMetrics registers the metric set on reg. Pass a dedicated
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		PublishesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publishes_total",
				Help:      "Publish calls by signal type and outcome",
			},
			[]string{"type", "outcome"},
		),
		PublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "publish_duration_seconds",
				Help:      "End-to-end publish pipeline duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"type"},
		),
		HandlerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "handler_duration_seconds",
				Help:      "Per-subscriber dispatch duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"type", "subscriber"},
		),
		HandlerFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_failures_total",
				Help:      "Subscriber handler failures (errors and timeouts)",
			},
			[]string{"type", "subscriber"},
		),
		BreakerTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_transitions_total",
				Help:      "Circuit breaker state transitions",
			},
			[]string{"from", "to"},
		),
		AuditWriteFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_write_failures_total",
				Help:      "Audit entries that could not be persisted",
			},
		),
	}
}
