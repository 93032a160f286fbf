// Package reranker reorders vector search candidates before they reach the
// answer model.
package reranker

import (
	"context"
	"errors"
)

var (
	ErrNilContext = errors.New("reranker: nil context")
	// ErrDimensionMismatch means a candidate vector and the query vector
	// differ in length.
	ErrDimensionMismatch = errors.New("reranker: embedding dimension mismatch")
)

// Document is a search candidate together with its stored vector.
type Document struct {
	ID        string
	Content   string
	Score     float32 // similarity reported by the store
	Embedding []float32
}

// ScoredDocument is a selected candidate. RerankerScore is its score at
// the moment it was picked; OriginalRank is its index in the candidate list.
type ScoredDocument struct {
	Document
	RerankerScore float32
	OriginalRank  int
}

// Reranker picks at most topK of docs for the query vector and returns
// them in selection order.
type Reranker interface {
	Rerank(ctx context.Context, query []float32, docs []Document, topK int) ([]ScoredDocument, error)
	Close() error
}
