// Package metrics provides Prometheus metrics for the routing control plane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for the status dimension.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Label values for the cache outcome dimension.
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheNegative = "negative"
)

// DefaultLatencyBuckets cover sub-millisecond cache hits through multi-second
// degraded-mode responses.
var DefaultLatencyBuckets = []float64{
	0.0005, // 0.5ms
	0.001,  // 1ms
	0.0025, // 2.5ms
	0.005,  // 5ms
	0.01,   // 10ms
	0.025,  // 25ms
	0.05,   // 50ms
	0.1,    // 100ms
	0.25,   // 250ms
	0.5,    // 500ms
	1.0,    // 1s
	2.5,    // 2.5s
	5.0,    // 5s
	10.0,   // 10s
}

// ResolveMetrics holds metrics for the resolution read path.
type ResolveMetrics struct {
	// RequestsTotal counts resolve requests by status.
	RequestsTotal *prometheus.CounterVec

	// LatencyHistogram tracks end-to-end resolve latency by cache outcome.
	LatencyHistogram *prometheus.HistogramVec

	// CacheOutcomesTotal counts cache lookups by outcome (hit, miss, negative).
	CacheOutcomesTotal *prometheus.CounterVec

	// DBQueriesTotal counts store lookups triggered by cache misses, by status.
	DBQueriesTotal *prometheus.CounterVec
}

// NewResolveMetrics creates and registers resolve metrics with the default
// registry.
func NewResolveMetrics() *ResolveMetrics {
	return NewResolveMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewResolveMetricsWithRegistry creates resolve metrics registered with a
// custom registry. Used by tests to avoid duplicate registration.
func NewResolveMetricsWithRegistry(reg prometheus.Registerer) *ResolveMetrics {
	factory := promauto.With(reg)
	return &ResolveMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "routeplane",
				Subsystem: "resolve",
				Name:      "requests_total",
				Help:      "Total number of route resolution requests, broken down by status.",
			},
			[]string{"status"},
		),
		LatencyHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "routeplane",
				Subsystem: "resolve",
				Name:      "latency_seconds",
				Help:      "Route resolution latency in seconds, broken down by cache outcome.",
				Buckets:   DefaultLatencyBuckets,
			},
			[]string{"outcome"},
		),
		CacheOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "routeplane",
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Total number of cache lookups, broken down by outcome.",
			},
			[]string{"outcome"},
		),
		DBQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "routeplane",
				Subsystem: "resolve",
				Name:      "db_queries_total",
				Help:      "Total number of record store lookups on the read path, broken down by status.",
			},
			[]string{"status"},
		),
	}
}
