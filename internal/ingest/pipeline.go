// Package ingest runs the offline pipeline that turns the dataset into a
// vector index. Each stage reads the previous stage's file from the data
// directory and writes its own, so stages can be rerun on their own.
package ingest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/cleaner"
	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/dataset"
	"github.com/fyrsmithlabs/docrag/internal/documents"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/indexer"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/services"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// Stage names.
const (
	StageDownload = "download"
	StageClean    = "clean"
	StageChunk    = "chunk"
	StageEmbed    = "embed"
)

// EmbedderFactory creates the embedder for the embed stage.
type EmbedderFactory func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (embeddings.Provider, error)

// StoreFactory creates the vector store for the embed stage.
type StoreFactory func(cfg *config.Config, logger *zap.Logger) (vectorstore.Store, error)

// Pipeline runs ingestion stages against one data directory.
type Pipeline struct {
	cfg         *config.Config
	dataDir     string
	out         io.Writer
	logger      *zap.Logger
	newEmbedder EmbedderFactory
	newStore    StoreFactory
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEmbedderFactory replaces how the embed stage builds its embedder.
func WithEmbedderFactory(f EmbedderFactory) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.newEmbedder = f
		}
	}
}

// WithStoreFactory replaces how the embed stage opens the vector store.
func WithStoreFactory(f StoreFactory) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.newStore = f
		}
	}
}

// New creates a Pipeline. Stage summaries are written to out.
func New(cfg *config.Config, out io.Writer, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	p := &Pipeline{
		cfg:     cfg,
		dataDir: cfg.Ingest.DataDir,
		out:     out,
		logger:  logger,
		newEmbedder: func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (embeddings.Provider, error) {
			return embeddings.NewProvider(ctx, services.EmbedderConfig(cfg), logger)
		},
		newStore: func(cfg *config.Config, logger *zap.Logger) (vectorstore.Store, error) {
			return vectorstore.NewStore(cfg, logger)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// stageLogger returns a logger carrying the stage name.
func (p *Pipeline) stageLogger(ctx context.Context, stage string) (context.Context, *zap.Logger) {
	ctx = logging.WithStage(ctx, stage)
	return ctx, p.logger.With(logging.ContextFields(ctx)...)
}

// Download fetches the dataset split and writes raw.json.
func (p *Pipeline) Download(ctx context.Context) (int, error) {
	ctx, logger := p.stageLogger(ctx, StageDownload)
	fmt.Fprintln(p.out, "Downloading dataset...")

	loader, err := dataset.New(dataset.Config{
		BaseURL:           p.cfg.Ingest.HubURL,
		Dataset:           p.cfg.Ingest.Dataset,
		ConfigName:        p.cfg.Ingest.ConfigName,
		Split:             p.cfg.Ingest.Split,
		PageSize:          p.cfg.Ingest.PageSize,
		RequestsPerSecond: p.cfg.Ingest.RequestsPerSecond,
		Token:             p.cfg.Ingest.HFToken.Value(),
	}, logger)
	if err != nil {
		return 0, err
	}

	records, err := loader.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("downloading %s: %w", p.cfg.Ingest.Dataset, err)
	}
	fmt.Fprintln(p.out, "Total records:", len(records))

	path := filepath.Join(p.dataDir, documents.RawFile)
	if err := documents.WriteJSON(path, records); err != nil {
		return 0, err
	}
	fmt.Fprintln(p.out, "Dataset downloaded and saved to", path)
	return len(records), nil
}

// Clean reads raw.json, rebuilds documents and writes cleaned.json.
func (p *Pipeline) Clean(ctx context.Context) (int, error) {
	_, logger := p.stageLogger(ctx, StageClean)

	raw, err := documents.ReadRaw(p.dataDir)
	if err != nil {
		return 0, err
	}

	docs, stats := cleaner.New(cleaner.Config{MinLength: p.cfg.Ingest.MinDocLength}, logger).Clean(raw)
	logger.Info("cleaning complete",
		zap.Int("rows", stats.Rows),
		zap.Int("markers", stats.Markers),
		zap.Int("too_short", stats.TooShort),
	)

	if err := documents.WriteJSON(filepath.Join(p.dataDir, documents.CleanedFile), docs); err != nil {
		return 0, err
	}
	fmt.Fprintln(p.out, "Docs:", len(docs))
	return len(docs), nil
}

// Chunk reads cleaned.json, splits and deduplicates, and writes chunks.json.
func (p *Pipeline) Chunk(ctx context.Context) (int, error) {
	_, logger := p.stageLogger(ctx, StageChunk)

	docs, err := documents.ReadCleaned(p.dataDir)
	if err != nil {
		return 0, err
	}

	c, err := chunker.New(chunker.Config{
		ChunkSize:    p.cfg.Ingest.ChunkSize,
		ChunkOverlap: p.cfg.Ingest.ChunkOverlap,
	}, logger)
	if err != nil {
		return 0, err
	}

	chunks, stats, err := c.Chunk(docs)
	if err != nil {
		return 0, err
	}
	logger.Info("chunking complete",
		zap.Int("documents", stats.Documents),
		zap.Int("duplicates", stats.Duplicates),
	)

	if err := documents.WriteJSON(filepath.Join(p.dataDir, documents.ChunksFile), chunks); err != nil {
		return 0, err
	}
	fmt.Fprintln(p.out, "Chunks:", len(chunks))
	return len(chunks), nil
}

// Embed reads chunks.json and rebuilds the vector collection from it.
func (p *Pipeline) Embed(ctx context.Context) (*indexer.Stats, error) {
	ctx, logger := p.stageLogger(ctx, StageEmbed)

	chunks, err := documents.ReadChunks(p.dataDir)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(p.out, "Loaded %d chunks\n", len(chunks))

	embedder, err := p.newEmbedder(ctx, p.cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	defer embedder.Close()

	store, err := p.newStore(p.cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	defer store.Close()

	batch := p.cfg.EmbedBatchSize()
	fmt.Fprintf(p.out, "Embedding in batches of %d\n", batch)

	stats, err := indexer.New(store, embedder,
		indexer.WithBatchSize(batch),
		indexer.WithLogger(logger),
	).Run(ctx, chunks)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(p.out, "Indexed %d chunks in %d batches (%s)\n",
		stats.Chunks, stats.Batches, stats.Duration.Round(time.Millisecond))
	if p.cfg.VectorStore.Provider == config.ProviderChromem {
		fmt.Fprintln(p.out, "Vector DB saved at:", p.cfg.VectorStore.Path)
	}
	return stats, nil
}

// All runs every stage in order and stops at the first failure.
func (p *Pipeline) All(ctx context.Context) error {
	if _, err := p.Download(ctx); err != nil {
		return err
	}
	if _, err := p.Clean(ctx); err != nil {
		return err
	}
	if _, err := p.Chunk(ctx); err != nil {
		return err
	}
	_, err := p.Embed(ctx)
	return err
}
