package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/documents"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// DefaultBatchSize is used when no batch size is configured.
const DefaultBatchSize = 1000

// recordNamespace scopes record IDs derived from chunk content.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("docrag:chunk"))

// ErrEmbeddingCount is returned when the embedder does not return one vector
// per text.
var ErrEmbeddingCount = errors.New("embedding count mismatch")

// Embedder embeds a batch of texts.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer rebuilds the vector collection from chunks.
type Indexer struct {
	store     vectorstore.Store
	embedder  Embedder
	batchSize int
	logger    *zap.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithBatchSize sets the number of chunks embedded and stored per batch.
func WithBatchSize(n int) Option {
	return func(i *Indexer) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

// WithLogger sets the progress logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Indexer) {
		if l != nil {
			i.logger = l
		}
	}
}

// New creates an Indexer.
func New(store vectorstore.Store, embedder Embedder, opts ...Option) *Indexer {
	i := &Indexer{
		store:     store,
		embedder:  embedder,
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run resets the store and indexes chunks in order, one batch at a time.
func (i *Indexer) Run(ctx context.Context, chunks []documents.Chunk) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	if err := i.store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("resetting store: %w", err)
	}

	total := (len(chunks) + i.batchSize - 1) / i.batchSize
	for b := 0; b < total; b++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		lo := b * i.batchSize
		hi := min(lo+i.batchSize, len(chunks))

		dim, err := i.indexBatch(ctx, chunks[lo:hi])
		if err != nil {
			BatchesTotal.WithLabelValues("error").Inc()
			return stats, fmt.Errorf("batch %d/%d (chunks %d-%d): %w", b+1, total, lo, hi-1, err)
		}
		BatchesTotal.WithLabelValues("success").Inc()
		ChunksTotal.Add(float64(hi - lo))

		stats.Batches++
		stats.Chunks += hi - lo
		stats.Dimension = dim

		i.logger.Info("indexed batch",
			zap.Int("batch", b+1),
			zap.Int("batches", total),
			zap.Int("chunks", stats.Chunks),
			zap.Int("total", len(chunks)),
		)
	}

	stats.Duration = time.Since(start)
	stats.IndexedAt = time.Now()
	return stats, nil
}

// indexBatch embeds and stores one batch, returning the vector dimension.
func (i *Indexer) indexBatch(ctx context.Context, batch []documents.Chunk) (int, error) {
	start := time.Now()
	defer func() {
		BatchDuration.Observe(time.Since(start).Seconds())
	}()

	texts := documents.Texts(batch)
	vectors, err := i.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(batch) {
		return 0, fmt.Errorf("%w: %d vectors for %d chunks", ErrEmbeddingCount, len(vectors), len(batch))
	}

	records := make([]vectorstore.Record, len(batch))
	for j, c := range batch {
		records[j] = vectorstore.Record{
			ID:        RecordID(c.Text),
			Content:   c.Text,
			Metadata:  c.Metadata,
			Embedding: vectors[j],
		}
	}

	if err := i.store.Index(ctx, records); err != nil {
		return 0, fmt.Errorf("storing: %w", err)
	}
	return len(vectors[0]), nil
}

// RecordID derives a stable UUID from chunk text. Chunks are unique by
// case-folded content, so the ID is unique within a run.
func RecordID(text string) string {
	return uuid.NewSHA1(recordNamespace, []byte(chunker.Hash(text))).String()
}
