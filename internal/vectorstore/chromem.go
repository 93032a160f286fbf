package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/reranker"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("docrag.vectorstore.chromem")

// ChromemConfig holds configuration for chromem-go embedded vector database.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "chroma_db"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the collection holding the chunks.
	// Default: "epstein"
	Collection string
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "chroma_db"
	}
	if c.Collection == "" {
		c.Collection = "epstein"
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if err := ValidateCollectionName(c.Collection); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ChromemStore implements Store on an embedded chromem-go database.
//
// chromem-go keeps every collection in memory and mirrors each document to a
// gob file under Path, so a store opened on an existing directory serves the
// last completed index immediately.
type ChromemStore struct {
	db       *chromem.DB
	config   ChromemConfig
	reranker reranker.Reranker
	logger   *zap.Logger

	mu         sync.RWMutex
	collection *chromem.Collection
}

// NewChromemStore opens (or creates) the database directory and the
// configured collection.
func NewChromemStore(config ChromemConfig, opts ...StoreOption) (*ChromemStore, error) {
	o := applyOptions(opts)

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandChromemPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(expandedPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	collection, err := db.GetOrCreateCollection(config.Collection, nil, refuseEmbedding)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", config.Collection, err)
	}

	o.logger.Info("ChromemStore initialized",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
		zap.String("collection", config.Collection),
		zap.Int("documents", collection.Count()),
	)

	return &ChromemStore{
		db:         db,
		config:     config,
		reranker:   o.reranker,
		logger:     o.logger,
		collection: collection,
	}, nil
}

// expandChromemPath expands ~ to home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// refuseEmbedding is the collection embedding function. chromem only calls
// it for documents without a vector, which validateRecords already rejects.
func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, ErrEmbeddingRequired
}

// Reset deletes the collection, including its files, and recreates it empty.
func (s *ChromemStore) Reset(ctx context.Context) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Reset")
	defer span.End()
	span.SetAttributes(attribute.String("collection", s.config.Collection))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.config.Collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation(ProviderChromem, "reset", err)
		return fmt.Errorf("deleting collection %s: %w", s.config.Collection, err)
	}

	collection, err := s.db.CreateCollection(s.config.Collection, nil, refuseEmbedding)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation(ProviderChromem, "reset", err)
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}
	s.collection = collection

	s.logger.Info("collection reset", zap.String("collection", s.config.Collection))
	recordOperation(ProviderChromem, "reset", nil)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Index adds records to the collection.
func (s *ChromemStore) Index(ctx context.Context, records []Record) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Index")
	defer span.End()
	span.SetAttributes(attribute.Int("record_count", len(records)))

	if err := validateRecords(records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Metadata:  metadataToStrings(r.Metadata),
			Embedding: r.Embedding,
			Content:   r.Content,
		}
	}

	s.mu.RLock()
	collection := s.collection
	s.mu.RUnlock()

	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation(ProviderChromem, "index", err)
		return fmt.Errorf("adding documents: %w", err)
	}

	IndexedRecords.WithLabelValues(ProviderChromem).Add(float64(len(records)))
	recordOperation(ProviderChromem, "index", nil)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search queries the fetchK nearest documents and reranks them down to k.
func (s *ChromemStore) Search(ctx context.Context, query []float32, k, fetchK int) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()
	span.SetAttributes(
		attribute.Int("k", k),
		attribute.Int("fetch_k", fetchK),
	)

	start := time.Now()
	defer func() {
		SearchDuration.WithLabelValues(ProviderChromem).Observe(time.Since(start).Seconds())
	}()

	fetchK, err := normalizeSearch(query, k, fetchK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.mu.RLock()
	collection := s.collection
	s.mu.RUnlock()

	// chromem rejects nResults greater than the document count.
	count := collection.Count()
	if count == 0 {
		span.SetAttributes(attribute.Int("results_count", 0))
		span.SetStatus(codes.Ok, "empty collection")
		return []SearchResult{}, nil
	}
	if fetchK > count {
		fetchK = count
	}

	res, err := collection.QueryEmbedding(ctx, query, fetchK, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation(ProviderChromem, "search", err)
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	candidates := make([]SearchResult, len(res))
	for i, r := range res {
		candidates[i] = SearchResult{
			ID:        r.ID,
			Content:   r.Content,
			Metadata:  metadataFromStrings(r.Metadata),
			Score:     r.Similarity,
			embedding: r.Embedding,
		}
	}

	results, err := rerank(ctx, s.reranker, query, candidates, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordOperation(ProviderChromem, "search", err)
		return nil, err
	}

	recordOperation(ProviderChromem, "search", nil)
	span.SetAttributes(
		attribute.Int("candidates_count", len(candidates)),
		attribute.Int("results_count", len(results)),
	)
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Count returns the number of documents in the collection.
func (s *ChromemStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Count(), nil
}

// Close is a no-op; chromem writes each document as it is added.
func (s *ChromemStore) Close() error {
	return nil
}

var _ Store = (*ChromemStore)(nil)
