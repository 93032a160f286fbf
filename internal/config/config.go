// Package config provides configuration loading for docrag.
//
// Configuration is assembled from built-in defaults, an optional YAML file
// and environment variables (a .env file in the working directory is read
// first). Both binaries, docragd and docrag, share the same Config.
package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Supported provider names.
const (
	ProviderOllama    = "ollama"
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderFastEmbed = "fastembed"
	ProviderChromem   = "chromem"
	ProviderQdrant    = "qdrant"
)

// Config holds the complete docrag configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Ollama        OllamaConfig        `koanf:"ollama"`
	LLM           LLMConfig           `koanf:"llm"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	VectorStore   VectorStoreConfig   `koanf:"vectorstore"`
	Retrieval     RetrievalConfig     `koanf:"retrieval"`
	Ingest        IngestConfig        `koanf:"ingest"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// OllamaConfig holds the local model server settings.
//
//	OLLAMA_BASE_URL    -> ollama.base_url
//	OLLAMA_MODEL       -> ollama.model
//	OLLAMA_EMBED_MODEL -> ollama.embed_model
type OllamaConfig struct {
	BaseURL    string `koanf:"base_url"`
	Model      string `koanf:"model"`
	EmbedModel string `koanf:"embed_model"`
}

// LLMConfig selects the chat model used for answer synthesis.
type LLMConfig struct {
	Provider    string  `koanf:"provider"` // ollama, groq, openai
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"`
	APIKey      Secret  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

// EmbeddingsConfig selects the embedding backend.
type EmbeddingsConfig struct {
	Provider string `koanf:"provider"` // ollama, fastembed, openai
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   Secret `koanf:"api_key"`
	CacheDir string `koanf:"cache_dir"`
}

// VectorStoreConfig selects and configures the vector database.
type VectorStoreConfig struct {
	Provider     string `koanf:"provider"` // chromem, qdrant
	Path         string `koanf:"path"`
	Collection   string `koanf:"collection"`
	Compress     bool   `koanf:"compress"`
	QdrantHost   string `koanf:"qdrant_host"`
	QdrantPort   int    `koanf:"qdrant_port"`
	QdrantUseTLS bool   `koanf:"qdrant_use_tls"`
	QdrantAPIKey Secret `koanf:"qdrant_api_key"`
}

// RetrievalConfig holds MMR retrieval parameters.
type RetrievalConfig struct {
	K      int     `koanf:"k"`
	FetchK int     `koanf:"fetch_k"`
	Lambda float64 `koanf:"lambda"`
}

// IngestConfig holds offline pipeline settings.
type IngestConfig struct {
	Dataset           string  `koanf:"dataset"`
	ConfigName        string  `koanf:"config_name"`
	Split             string  `koanf:"split"`
	HubURL            string  `koanf:"hub_url"`
	HFToken           Secret  `koanf:"hf_token"`
	PageSize          int     `koanf:"page_size"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	DataDir           string  `koanf:"data_dir"`
	ChunkSize         int     `koanf:"chunk_size"`
	ChunkOverlap      int     `koanf:"chunk_overlap"`
	MinDocLength      int     `koanf:"min_doc_length"`
	BatchSize         int     `koanf:"batch_size"` // 0 selects by embeddings provider
}

// LoggingConfig holds the logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	Endpoint        string  `koanf:"endpoint"`
	Protocol        string  `koanf:"protocol"` // grpc, http/protobuf
	Insecure        bool    `koanf:"insecure"`
	SampleRate      float64 `koanf:"sample_rate"`
}

// EmbedBatchSize returns the indexing batch size: the configured value, or
// 1000 for the in-process backend and 500 for network backends.
func (c *Config) EmbedBatchSize() int {
	if c.Ingest.BatchSize > 0 {
		return c.Ingest.BatchSize
	}
	if c.Embeddings.Provider == ProviderFastEmbed {
		return 1000
	}
	return 500
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.LLM.Provider {
	case ProviderOllama:
	case ProviderGroq, ProviderOpenAI:
		if !c.LLM.APIKey.IsSet() {
			return fmt.Errorf("llm provider %q requires an api key", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature must be between 0 and 2, got %g", c.LLM.Temperature)
	}

	switch c.Embeddings.Provider {
	case ProviderOllama, ProviderFastEmbed, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown embeddings provider %q", c.Embeddings.Provider)
	}

	switch c.VectorStore.Provider {
	case ProviderChromem, ProviderQdrant:
	default:
		return fmt.Errorf("unknown vectorstore provider %q", c.VectorStore.Provider)
	}
	if c.VectorStore.Collection == "" {
		return errors.New("vectorstore collection is required")
	}

	if c.Retrieval.K <= 0 {
		return fmt.Errorf("retrieval k must be positive, got %d", c.Retrieval.K)
	}
	if c.Retrieval.FetchK < c.Retrieval.K {
		return fmt.Errorf("retrieval fetch_k (%d) must be >= k (%d)", c.Retrieval.FetchK, c.Retrieval.K)
	}
	if c.Retrieval.Lambda <= 0 || c.Retrieval.Lambda > 1 {
		return fmt.Errorf("retrieval lambda must be in (0, 1], got %g", c.Retrieval.Lambda)
	}

	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap)
	}
	if c.Ingest.PageSize < 1 || c.Ingest.PageSize > 100 {
		return fmt.Errorf("ingest page_size must be 1-100, got %d", c.Ingest.PageSize)
	}
	if _, err := url.ParseRequestURI(c.Ingest.HubURL); err != nil {
		return fmt.Errorf("invalid ingest hub_url: %w", err)
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	return nil
}
