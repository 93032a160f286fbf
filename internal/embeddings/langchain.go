package embeddings

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const defaultBatchSize = 512

// LangchainProvider embeds through a langchaingo embeddings client.
type LangchainProvider struct {
	embedder  *embeddings.EmbedderImpl
	backend   string
	model     string
	dimension atomic.Int64
	metrics   *Metrics
	logger    *zap.Logger
}

// NewLangchainProvider wraps client. Newlines are kept as they are; chunk
// boundaries depend on them.
func NewLangchainProvider(client embeddings.EmbedderClient, model string, batchSize int, logger *zap.Logger) (*LangchainProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: embeddings client required", ErrInvalidConfig)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(batchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &LangchainProvider{
		embedder: embedder,
		backend:  "langchain",
		model:    model,
		metrics:  NewMetrics(logger),
		logger:   logger,
	}, nil
}

// NewOllamaProvider embeds with a local Ollama server.
func NewOllamaProvider(cfg ProviderConfig, logger *zap.Logger) (*LangchainProvider, error) {
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, fmt.Errorf("%w: ollama base URL and model required", ErrInvalidConfig)
	}
	client, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	p, err := NewLangchainProvider(client, cfg.Model, cfg.BatchSize, logger)
	if err != nil {
		return nil, err
	}
	p.backend = ProviderOllama
	return p, nil
}

// NewOpenAIProvider embeds with an OpenAI compatible endpoint, including
// text-embeddings-inference servers.
func NewOpenAIProvider(cfg ProviderConfig, logger *zap.Logger) (*LangchainProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: embedding model required", ErrInvalidConfig)
	}
	opts := []openai.Option{
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	p, err := NewLangchainProvider(client, cfg.Model, cfg.BatchSize, logger)
	if err != nil {
		return nil, err
	}
	p.backend = ProviderOpenAI
	return p, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *LangchainProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	start := time.Now()
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	p.metrics.Observe(ctx, p.backend, p.model, opDocuments, len(texts), start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
	}

	p.observeDimension(vectors[0])
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *LangchainProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	start := time.Now()
	vector, err := p.embedder.EmbedQuery(ctx, text)
	p.metrics.Observe(ctx, p.backend, p.model, opQuery, 1, start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	p.observeDimension(vector)
	return vector, nil
}

func (p *LangchainProvider) observeDimension(v []float32) {
	if p.dimension.CompareAndSwap(0, int64(len(v))) {
		p.logger.Debug("embedding dimension detected",
			zap.String("model", p.model),
			zap.Int("dimension", len(v)),
		)
	}
}

// Dimension returns the size of the vectors seen so far.
func (p *LangchainProvider) Dimension() int {
	return int(p.dimension.Load())
}

// Close is a no-op for HTTP backed providers.
func (p *LangchainProvider) Close() error {
	return nil
}

var _ Provider = (*LangchainProvider)(nil)
