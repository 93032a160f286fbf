package indexer

import "time"

// Stats contains the results of an indexing run.
type Stats struct {
	// Chunks is the number of chunks written to the store.
	Chunks int

	// Batches is the number of batches written.
	Batches int

	// Dimension is the embedding size of the indexed vectors.
	Dimension int

	// Duration is the wall time of the run, reset included.
	Duration time.Duration

	// IndexedAt is the timestamp when indexing completed.
	IndexedAt time.Time
}
