package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Provider labels.
const (
	ProviderChromem = "chromem"
	ProviderQdrant  = "qdrant"
)

var (
	// SearchDuration tracks how long a Search call takes, reranking included.
	// Labels: provider
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "search_duration_seconds",
			Help:      "Duration of vector search operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// IndexedRecords counts records written to the store.
	// Labels: provider
	IndexedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "indexed_records_total",
			Help:      "Total number of records written to the vector store",
		},
		[]string{"provider"},
	)

	// Operations counts store operations.
	// Labels: provider, operation (reset, index, search), result (success, error)
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations",
		},
		[]string{"provider", "operation", "result"},
	)
)

// recordOperation records the outcome of a store operation.
func recordOperation(provider, operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	Operations.WithLabelValues(provider, operation, result).Inc()
}
