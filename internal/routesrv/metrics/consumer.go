package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConsumerMetrics holds metrics for the event consumers.
type ConsumerMetrics struct {
	// EventsProcessedTotal counts events handled by each consumer group, by
	// status.
	EventsProcessedTotal *prometheus.CounterVec

	// ProcessingLatency tracks per-event handler latency by consumer group.
	ProcessingLatency *prometheus.HistogramVec

	// AuditInsertedTotal counts audit documents inserted.
	AuditInsertedTotal prometheus.Counter

	// AuditDuplicatesTotal counts redelivered events skipped by the audit
	// writer's unique index.
	AuditDuplicatesTotal prometheus.Counter
}

// NewConsumerMetrics creates and registers consumer metrics with the default
// registry.
func NewConsumerMetrics() *ConsumerMetrics {
	return NewConsumerMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewConsumerMetricsWithRegistry creates consumer metrics registered with a
// custom registry.
func NewConsumerMetricsWithRegistry(reg prometheus.Registerer) *ConsumerMetrics {
	factory := promauto.With(reg)
	return &ConsumerMetrics{
		EventsProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "routeplane",
				Subsystem: "consumer",
				Name:      "events_processed_total",
				Help:      "Total number of events processed, broken down by consumer group and status.",
			},
			[]string{"group", "status"},
		),
		ProcessingLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "routeplane",
				Subsystem: "consumer",
				Name:      "processing_latency_seconds",
				Help:      "Per-event handler latency in seconds, broken down by consumer group.",
				Buckets:   DefaultLatencyBuckets,
			},
			[]string{"group"},
		),
		AuditInsertedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "routeplane",
				Subsystem: "audit",
				Name:      "documents_inserted_total",
				Help:      "Total number of audit documents inserted.",
			},
		),
		AuditDuplicatesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "routeplane",
				Subsystem: "audit",
				Name:      "duplicate_events_total",
				Help:      "Total number of redelivered events skipped because the audit document already exists.",
			},
		),
	}
}
