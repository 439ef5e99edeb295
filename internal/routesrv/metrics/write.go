package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WriteMetrics holds metrics for the route write path and event publishing.
type WriteMetrics struct {
	// OperationsTotal counts write operations by action (create, activate,
	// deactivate) and status.
	OperationsTotal *prometheus.CounterVec

	// LatencyHistogram tracks write transaction latency by action.
	LatencyHistogram *prometheus.HistogramVec

	// EventsPublishedTotal counts route change events successfully published.
	EventsPublishedTotal prometheus.Counter

	// EventsFailedTotal counts events that could not be published after the
	// transaction committed.
	EventsFailedTotal prometheus.Counter
}

// NewWriteMetrics creates and registers write metrics with the default
// registry.
func NewWriteMetrics() *WriteMetrics {
	return NewWriteMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewWriteMetricsWithRegistry creates write metrics registered with a custom
// registry.
func NewWriteMetricsWithRegistry(reg prometheus.Registerer) *WriteMetrics {
	factory := promauto.With(reg)
	return &WriteMetrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "routeplane",
				Subsystem: "write",
				Name:      "operations_total",
				Help:      "Total number of route write operations, broken down by action and status.",
			},
			[]string{"action", "status"},
		),
		LatencyHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "routeplane",
				Subsystem: "write",
				Name:      "latency_seconds",
				Help:      "Write transaction latency in seconds, broken down by action.",
				Buckets:   DefaultLatencyBuckets,
			},
			[]string{"action"},
		),
		EventsPublishedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "routeplane",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Total number of route change events published to the event log.",
			},
		),
		EventsFailedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "routeplane",
				Subsystem: "events",
				Name:      "publish_failures_total",
				Help:      "Total number of route change events dropped after publish retries were exhausted.",
			},
		),
	}
}
