// Package retrieval finds the chunks most relevant to a question.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// Defaults for MMR retrieval.
const (
	DefaultK      = 12
	DefaultFetchK = 60
	previewLength = 200
)

var tracer = otel.Tracer("docrag.retrieval")

// ErrEmptyQuery is returned for a blank question.
var ErrEmptyQuery = errors.New("empty query")

// QueryEmbedder embeds a single question.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever embeds a question and asks the store for k diverse chunks out
// of the fetchK nearest.
type Retriever struct {
	embedder QueryEmbedder
	store    vectorstore.Store
	k        int
	fetchK   int
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithK sets the number of chunks returned.
func WithK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.k = k
		}
	}
}

// WithFetchK sets the candidate pool size.
func WithFetchK(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.fetchK = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Retriever.
func New(embedder QueryEmbedder, store vectorstore.Store, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		store:    store,
		k:        DefaultK,
		fetchK:   DefaultFetchK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fetchK < r.k {
		r.fetchK = r.k
	}
	return r
}

// Retrieve returns up to k chunks for query, most relevant first. An empty
// store yields an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]vectorstore.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Retriever.Retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.Int("k", r.k),
		attribute.Int("fetch_k", r.fetchK),
	)

	if strings.TrimSpace(query) == "" {
		span.SetStatus(codes.Error, ErrEmptyQuery.Error())
		return nil, ErrEmptyQuery
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.store.Search(ctx, vector, r.k, r.fetchK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching: %w", err)
	}

	r.logger.Info("retrieved documents", zap.Int("count", len(results)))
	if len(results) > 0 {
		r.logger.Debug("top document",
			zap.String("source", results[0].Metadata.Source),
			zap.Int("chunk", results[0].Metadata.Chunk),
			zap.String("preview", preview(results[0].Content)),
		)
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Texts returns the content of each result in order.
func Texts(results []vectorstore.SearchResult) []string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Content
	}
	return texts
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLength {
		return s
	}
	return string(r[:previewLength])
}
