//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	fastembed "github.com/anush008/fastembed-go"
	"go.uber.org/zap"
)

// localModel pairs a fastembed model with its vector size.
type localModel struct {
	id        fastembed.EmbeddingModel
	dimension int
}

// localModels lists the in-process models by their hub name and by the
// fastembed identifier.
var localModels = map[string]localModel{
	"sentence-transformers/all-MiniLM-L6-v2": {fastembed.AllMiniLML6V2, 384},
	"fast-all-MiniLM-L6-v2":                  {fastembed.AllMiniLML6V2, 384},
	"BAAI/bge-small-en-v1.5":                 {fastembed.BGESmallENV15, 384},
	"fast-bge-small-en-v1.5":                 {fastembed.BGESmallENV15, 384},
	"BAAI/bge-base-en-v1.5":                  {fastembed.BGEBaseENV15, 768},
	"fast-bge-base-en-v1.5":                  {fastembed.BGEBaseENV15, 768},
}

const (
	localMaxLength = 512
	localBatchSize = 256
)

// FastEmbedProvider embeds in process with an ONNX model. Calls are
// serialized; the underlying session is not safe for concurrent use.
type FastEmbedProvider struct {
	mu        sync.Mutex
	model     *fastembed.FlagEmbedding
	name      string
	dimension int
	batchSize int
	metrics   *Metrics
	logger    *zap.Logger
}

// NewFastEmbedProvider loads cfg.Model from cfg.CacheDir, downloading the
// model files on first use. The ONNX runtime must already be located; see
// NewProvider.
func NewFastEmbedProvider(cfg ProviderConfig, logger *zap.Logger) (*FastEmbedProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultFastEmbedModel
	}
	m, ok := localModels[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported local model %q", ErrInvalidConfig, cfg.Model)
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = "local_cache"
	}

	quiet := false
	model, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                m.id,
		CacheDir:             filepath.Clean(cacheDir),
		MaxLength:            localMaxLength,
		ShowDownloadProgress: &quiet,
	})
	if err != nil {
		return nil, fmt.Errorf("loading local model %s: %w", cfg.Model, err)
	}
	logger.Info("local embedding model loaded",
		zap.String("model", cfg.Model),
		zap.Int("dimension", m.dimension),
		zap.String("cache_dir", cacheDir),
	)

	batch := cfg.BatchSize
	if batch <= 0 || batch > localBatchSize {
		batch = localBatchSize
	}
	return &FastEmbedProvider{
		model:     model,
		name:      cfg.Model,
		dimension: m.dimension,
		batchSize: batch,
		metrics:   NewMetrics(logger),
		logger:    logger,
	}, nil
}

// EmbedDocuments embeds texts as passages.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil, fmt.Errorf("%w: provider closed", ErrEmbeddingFailed)
	}

	start := time.Now()
	vectors, err := p.model.PassageEmbed(texts, p.batchSize)
	p.metrics.Observe(ctx, ProviderFastEmbed, p.name, opDocuments, len(texts), start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// EmbedQuery embeds text as a query.
func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil, fmt.Errorf("%w: provider closed", ErrEmbeddingFailed)
	}

	start := time.Now()
	vector, err := p.model.QueryEmbed(text)
	p.metrics.Observe(ctx, ProviderFastEmbed, p.name, opQuery, 1, start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vector, nil
}

// Dimension returns the model's vector size.
func (p *FastEmbedProvider) Dimension() int {
	return p.dimension
}

// Close releases the ONNX session. Later calls fail.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil
	}
	err := p.model.Destroy()
	p.model = nil
	return err
}

var _ Provider = (*FastEmbedProvider)(nil)
