package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/reranker"
	"go.uber.org/zap"
)

// NewStore creates a new Store based on the configuration.
//
// This factory function examines the VectorStoreConfig.Provider field and
// creates the appropriate store implementation:
//   - "chromem" (default): Creates an embedded ChromemStore (no external deps)
//   - "qdrant": Creates a QdrantStore (requires external Qdrant server)
//
// Both stores rerank with MMR using cfg.Retrieval.Lambda unless opts
// supply another reranker.
func NewStore(cfg *config.Config, logger *zap.Logger, opts ...StoreOption) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]StoreOption{
		WithLogger(logger),
		WithReranker(reranker.NewMMRReranker(cfg.Retrieval.Lambda)),
	}, opts...)

	var store Store
	var err error

	switch cfg.VectorStore.Provider {
	case config.ProviderChromem, "":
		store, err = NewChromemStore(ChromemConfig{
			Path:       cfg.VectorStore.Path,
			Compress:   cfg.VectorStore.Compress,
			Collection: cfg.VectorStore.Collection,
		}, opts...)

	case config.ProviderQdrant:
		store, err = NewQdrantStore(QdrantConfig{
			Host:       cfg.VectorStore.QdrantHost,
			Port:       cfg.VectorStore.QdrantPort,
			Collection: cfg.VectorStore.Collection,
			UseTLS:     cfg.VectorStore.QdrantUseTLS,
			APIKey:     cfg.VectorStore.QdrantAPIKey.Value(),
		}, opts...)

	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider: %s (supported: chromem, qdrant)", ErrInvalidConfig, cfg.VectorStore.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s store: %w", cfg.VectorStore.Provider, err)
	}
	return store, nil
}
