package metrics

import "github.com/prometheus/client_golang/prometheus"

// Store Prometheus metrics.
var (
	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kontext",
			Name:      "store_operations_total",
			Help:      "Total number of store operations",
		},
		[]string{"backend", "op", "status"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kontext",
			Name:      "store_operation_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"backend", "op"},
	)

	StoreEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kontext",
			Name:      "store_evictions_total",
			Help:      "Records evicted from the bounded in-process store",
		},
	)

	IndexRepairsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kontext",
			Name:      "index_repairs_total",
			Help:      "Dangling index entries pruned from the durable store",
		},
	)

	StoreRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kontext",
			Name:      "store_retries_total",
			Help:      "Read retries against the durable store",
		},
		[]string{"op"},
	)
)

// RegisterStoreMetrics registers the store metrics explicitly (no init()).
func RegisterStoreMetrics() {
	prometheus.MustRegister(StoreOperationsTotal)
	prometheus.MustRegister(StoreOperationDuration)
	prometheus.MustRegister(StoreEvictionsTotal)
	prometheus.MustRegister(IndexRepairsTotal)
	prometheus.MustRegister(StoreRetriesTotal)
}
