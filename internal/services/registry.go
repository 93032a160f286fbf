package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/answer"
	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/fyrsmithlabs/docrag/internal/rag"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// Registry provides access to the serving components.
type Registry interface {
	Embedder() embeddings.Provider
	VectorStore() vectorstore.Store
	Model() llms.Model
	RAG() *rag.Service
	Close() error
}

// Options configures the registry with component instances.
type Options struct {
	Embedder    embeddings.Provider
	VectorStore vectorstore.Store
	Model       llms.Model
	RAG         *rag.Service
}

// registry is the concrete implementation of Registry.
type registry struct {
	embedder    embeddings.Provider
	vectorStore vectorstore.Store
	model       llms.Model
	rag         *rag.Service
}

// NewRegistry creates a new registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		embedder:    opts.Embedder,
		vectorStore: opts.VectorStore,
		model:       opts.Model,
		rag:         opts.RAG,
	}
}

func (r *registry) Embedder() embeddings.Provider  { return r.embedder }
func (r *registry) VectorStore() vectorstore.Store { return r.vectorStore }
func (r *registry) Model() llms.Model              { return r.model }
func (r *registry) RAG() *rag.Service              { return r.rag }

// Close releases the store and the embedder.
func (r *registry) Close() error {
	var errs []error
	if r.vectorStore != nil {
		if err := r.vectorStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing vector store: %w", err))
		}
	}
	if r.embedder != nil {
		if err := r.embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing embedder: %w", err))
		}
	}
	return errors.Join(errs...)
}

// EmbedderConfig maps the embeddings section onto a provider config.
func EmbedderConfig(cfg *config.Config) embeddings.ProviderConfig {
	return embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
		CacheDir:  cfg.Embeddings.CacheDir,
		BatchSize: cfg.EmbedBatchSize(),
	}
}

// LLMConfig maps the llm section onto a model config.
func LLMConfig(cfg *config.Config) llm.Config {
	return llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey.Value(),
	}
}

// Build creates every serving component from cfg. Components created
// before a failure are closed.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	embedder, err := embeddings.NewProvider(ctx, EmbedderConfig(cfg), logger.Named("embeddings"))
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	store, err := vectorstore.NewStore(cfg, logger.Named("vectorstore"))
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	model, err := llm.New(LLMConfig(cfg))
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("creating chat model: %w", err)
	}

	retriever := retrieval.New(embedder, store,
		retrieval.WithK(cfg.Retrieval.K),
		retrieval.WithFetchK(cfg.Retrieval.FetchK),
		retrieval.WithLogger(logger.Named("retrieval")),
	)
	synthesizer := answer.New(model,
		answer.WithTemperature(cfg.LLM.Temperature),
		answer.WithMaxTokens(cfg.LLM.MaxTokens),
		answer.WithLogger(logger.Named("answer")),
	)

	logger.Info("services ready",
		zap.String("embeddings_provider", cfg.Embeddings.Provider),
		zap.String("embeddings_model", cfg.Embeddings.Model),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
	)

	return NewRegistry(Options{
		Embedder:    embedder,
		VectorStore: store,
		Model:       model,
		RAG:         rag.NewService(retriever, synthesizer, logger.Named("rag")),
	}), nil
}
