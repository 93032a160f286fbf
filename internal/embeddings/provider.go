package embeddings

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider names.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderFastEmbed = "fastembed"
)

// Provider generates embeddings.
type Provider interface {
	// EmbedDocuments embeds texts in order, one vector per text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the vector size, or 0 while it is still unknown.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is one of ollama (default), openai, fastembed.
	Provider string
	// Model is the embedding model name.
	Model string
	// BaseURL is the server URL for ollama and openai.
	BaseURL string
	// APIKey authenticates openai requests.
	APIKey string
	// CacheDir is the model cache directory (fastembed only).
	CacheDir string
	// BatchSize bounds texts per request for network providers.
	BatchSize int
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case ProviderOllama, "":
		return NewOllamaProvider(cfg, logger)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg, logger)
	case ProviderFastEmbed:
		if _, err := ensureONNXRuntime(ctx, cfg.CacheDir, logger); err != nil {
			return nil, err
		}
		return NewFastEmbedProvider(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// DefaultFastEmbedModel is the in-process model used when none is configured.
const DefaultFastEmbedModel = "sentence-transformers/all-MiniLM-L6-v2"
