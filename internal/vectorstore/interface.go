package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/fyrsmithlabs/docrag/internal/documents"
	"github.com/fyrsmithlabs/docrag/internal/reranker"
	"go.uber.org/zap"
)

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyRecords indicates an Index call without records.
	ErrEmptyRecords = errors.New("empty or nil records")

	// ErrMissingEmbedding indicates a record without a vector.
	ErrMissingEmbedding = errors.New("record has no embedding")

	// ErrInvalidQuery indicates an empty query vector or a non-positive k.
	ErrInvalidQuery = errors.New("invalid search query")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrEmbeddingRequired is returned if the store is ever asked to embed
	// text itself. Vectors always come from the embeddings provider.
	ErrEmbeddingRequired = errors.New("vectors must be supplied by the caller")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// Record is one chunk ready to be stored.
type Record struct {
	ID        string
	Content   string
	Metadata  documents.ChunkMetadata
	Embedding []float32
}

// SearchResult is one retrieved chunk.
type SearchResult struct {
	ID       string                  `json:"id"`
	Content  string                  `json:"content"`
	Metadata documents.ChunkMetadata `json:"metadata"`
	// Score is the cosine similarity to the query vector.
	Score float32 `json:"score"`

	embedding []float32
}

// Store is the vector database capability used by the indexer and the
// retriever.
type Store interface {
	// Reset drops every stored record. The next Index call starts from an
	// empty collection.
	Reset(ctx context.Context) error

	// Index stores records. IDs are caller supplied; writing an existing ID
	// replaces it.
	Index(ctx context.Context, records []Record) error

	// Search returns at most k results chosen from the fetchK nearest
	// records. An empty collection yields an empty slice and no error.
	Search(ctx context.Context, query []float32, k, fetchK int) ([]SearchResult, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases client resources.
	Close() error
}

// StoreOption configures a store at construction.
type StoreOption func(*storeOptions)

type storeOptions struct {
	reranker reranker.Reranker
	logger   *zap.Logger
}

// WithReranker replaces the default MMR reranker.
func WithReranker(r reranker.Reranker) StoreOption {
	return func(o *storeOptions) {
		o.reranker = r
	}
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) StoreOption {
	return func(o *storeOptions) {
		o.logger = l
	}
}

func applyOptions(opts []StoreOption) storeOptions {
	o := storeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.reranker == nil {
		o.reranker = reranker.NewMMRReranker(reranker.DefaultLambda)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// ValidateCollectionName validates a collection name against security rules.
// Pattern: ^[a-z0-9_]{1,64}$
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// validateRecords rejects empty batches and records without vectors.
func validateRecords(records []Record) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record %d: %w: id required", i, ErrInvalidConfig)
		}
		if len(r.Embedding) == 0 {
			return fmt.Errorf("record %s: %w", r.ID, ErrMissingEmbedding)
		}
	}
	return nil
}

// normalizeSearch validates the query and clamps fetchK to at least k.
func normalizeSearch(query []float32, k, fetchK int) (int, error) {
	if len(query) == 0 {
		return 0, fmt.Errorf("%w: empty query vector", ErrInvalidQuery)
	}
	if k <= 0 {
		return 0, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidQuery, k)
	}
	if fetchK < k {
		fetchK = k
	}
	return fetchK, nil
}

// rerank lets r choose k of the candidates and maps the choice back onto
// search results.
func rerank(ctx context.Context, r reranker.Reranker, query []float32, candidates []SearchResult, k int) ([]SearchResult, error) {
	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}
	docs := make([]reranker.Document, len(candidates))
	for i, c := range candidates {
		docs[i] = reranker.Document{
			ID:        c.ID,
			Content:   c.Content,
			Score:     c.Score,
			Embedding: c.embedding,
		}
	}

	ranked, err := r.Rerank(ctx, query, docs, k)
	if err != nil {
		return nil, fmt.Errorf("reranking candidates: %w", err)
	}

	out := make([]SearchResult, len(ranked))
	for i, d := range ranked {
		out[i] = candidates[d.OriginalRank]
		out[i].embedding = nil
	}
	return out, nil
}

// metadataToStrings flattens chunk metadata for stores with string-only
// metadata.
func metadataToStrings(m documents.ChunkMetadata) map[string]string {
	return map[string]string{
		"source": m.Source,
		"chunk":  strconv.Itoa(m.Chunk),
	}
}

// metadataFromStrings is the inverse of metadataToStrings. A missing or
// malformed chunk index reads as 0.
func metadataFromStrings(m map[string]string) documents.ChunkMetadata {
	chunk, _ := strconv.Atoi(m["chunk"])
	return documents.ChunkMetadata{Source: m["source"], Chunk: chunk}
}
