package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesTotal counts indexing batches.
	// Labels: result (success, error)
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "indexer",
			Name:      "batches_total",
			Help:      "Total number of indexing batches",
		},
		[]string{"result"},
	)

	// ChunksTotal counts chunks embedded and stored.
	ChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "indexer",
			Name:      "chunks_total",
			Help:      "Total number of chunks embedded and stored",
		},
	)

	// BatchDuration tracks embed plus store time per batch.
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "indexer",
			Name:      "batch_duration_seconds",
			Help:      "Duration of one indexing batch in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)
)
