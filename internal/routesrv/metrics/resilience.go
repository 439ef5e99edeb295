package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ResilienceMetrics holds metrics for the circuit breakers, bulkheads and
// retry budgets.
type ResilienceMetrics struct {
	// BreakerState exports the current state of each breaker
	// (0 closed, 1 half_open, 2 open).
	BreakerState *prometheus.GaugeVec

	// BreakerTransitionsTotal counts state transitions by breaker and target
	// state.
	BreakerTransitionsTotal *prometheus.CounterVec

	// RejectionsTotal counts requests rejected before reaching an adapter,
	// by reason (circuit_open, bulkhead_full, retry_budget, draining).
	RejectionsTotal *prometheus.CounterVec

	// BulkheadInUse exports the number of slots currently held per bulkhead.
	BulkheadInUse *prometheus.GaugeVec
}

// NewResilienceMetrics creates and registers resilience metrics with the
// default registry.
func NewResilienceMetrics() *ResilienceMetrics {
	return NewResilienceMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewResilienceMetricsWithRegistry creates resilience metrics registered with
// a custom registry.
func NewResilienceMetricsWithRegistry(reg prometheus.Registerer) *ResilienceMetrics {
	factory := promauto.With(reg)
	return &ResilienceMetrics{
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "routeplane",
				Subsystem: "resilience",
				Name:      "breaker_state",
				Help:      "Current circuit breaker state (0 closed, 1 half_open, 2 open).",
			},
			[]string{"breaker"},
		),
		BreakerTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "routeplane",
				Subsystem: "resilience",
				Name:      "breaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions, broken down by breaker and target state.",
			},
			[]string{"breaker", "state"},
		),
		RejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "routeplane",
				Subsystem: "resilience",
				Name:      "rejections_total",
				Help:      "Total number of requests rejected by the resilience layer, broken down by reason.",
			},
			[]string{"reason"},
		),
		BulkheadInUse: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "routeplane",
				Subsystem: "resilience",
				Name:      "bulkhead_in_use",
				Help:      "Number of concurrency slots currently held, broken down by bulkhead.",
			},
			[]string{"bulkhead"},
		),
	}
}
