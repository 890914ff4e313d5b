package docstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeInvalid  = "invalid"
	outcomeError    = "error"
)

// storeMetrics holds the Prometheus metrics owned by the store.
type storeMetrics struct {
	// operationsTotal counts completed store operations by op and outcome.
	operationsTotal *prometheus.CounterVec

	// durationSeconds records the latency of each store operation.
	durationSeconds *prometheus.HistogramVec

	// searchResults records how many documents each search returned.
	searchResults prometheus.Histogram
}

// newStoreMetrics registers the store metrics against reg. A nil reg creates
// unregistered collectors, which is what tests that don't care about metrics
// get by default.
func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	factory := promauto.With(reg)

	return &storeMetrics{
		operationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docvec",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of document store operations, partitioned by operation and outcome.",
		}, []string{"op", "outcome"}),

		durationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docvec",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Latency of document store operations including embedding.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),

		searchResults: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docvec",
			Subsystem: "store",
			Name:      "search_results",
			Help:      "Number of documents returned per search.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}
}

// observe records one finished operation.
func (m *storeMetrics) observe(op, outcome string, start time.Time) {
	m.operationsTotal.WithLabelValues(op, outcome).Inc()
	m.durationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
