package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// DotEnvFile is read from the working directory before the environment
	// provider runs. Variables already set in the process win.
	DotEnvFile = ".env"

	localConfigFile = "docrag.yaml"
)

// sections are the top-level keys environment variables may target.
var sections = map[string]bool{
	"server":        true,
	"ollama":        true,
	"llm":           true,
	"embeddings":    true,
	"vectorstore":   true,
	"retrieval":     true,
	"ingest":        true,
	"logging":       true,
	"observability": true,
}

// Load loads configuration using the default file lookup.
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (OLLAMA_BASE_URL, SERVER_HTTP_PORT, ...)
//  2. Variables from ./.env that are not already set
//  3. YAML config file
//  4. Hardcoded defaults
//
// When configPath is empty, ./docrag.yaml is used if present, otherwise
// ~/.config/docrag/config.yaml. A missing file is not an error.
//
// Config files must live in the working directory, ~/.config/docrag/ or
// /etc/docrag/, must not be group or world writable and must be at most 1MB.
//
// # Environment Variable Mapping
//
// Variables split on the first underscore into section and field:
//
//	OLLAMA_BASE_URL    -> ollama.base_url
//	SERVER_HTTP_PORT   -> server.http_port
//	RETRIEVAL_FETCH_K  -> retrieval.fetch_k
//
// Variables whose prefix is not a known section are ignored.
func LoadWithFile(configPath string) (*Config, error) {
	if err := LoadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if configPath == "" {
		p, err := defaultConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv reads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// envKey maps SECTION_FIELD_NAME to section.field_name, or "" to skip.
func envKey(s string) string {
	parts := strings.SplitN(strings.ToLower(s), "_", 2)
	if len(parts) != 2 || !sections[parts[0]] || parts[1] == "" {
		return ""
	}
	return parts[0] + "." + parts[1]
}

func defaultConfigPath() (string, error) {
	if _, err := os.Stat(localConfigFile); err == nil {
		return localConfigFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml"), nil
}

// readConfigFile returns nil content when the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	// Validate through the open descriptor to avoid a TOCTOU race.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigPath checks that path resolves into an allowed directory.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Path may not exist yet.
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "docrag"),
		"/etc/docrag",
		cwd,
	}
	for _, dir := range allowedDirs {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			dir = resolved
		}
		if resolvedPath == dir || strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}

	return fmt.Errorf("config file must be in the working directory, ~/.config/docrag/ or /etc/docrag/")
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0o022 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (must not be group or world writable)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Ollama.BaseURL == "" {
		cfg.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.Ollama.Model == "" {
		cfg.Ollama.Model = "qwen2.5:7b"
	}
	if cfg.Ollama.EmbedModel == "" {
		cfg.Ollama.EmbedModel = "nomic-embed-text"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOllama
	}
	switch cfg.LLM.Provider {
	case ProviderOllama:
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = cfg.Ollama.BaseURL
		}
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = cfg.Ollama.Model
		}
	case ProviderGroq:
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
		}
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = "llama-3.3-70b-versatile"
		}
		cfg.LLM.APIKey = cfg.LLM.APIKey.OrEnv("GROQ_API_KEY")
	case ProviderOpenAI:
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = "gpt-4o-mini"
		}
		cfg.LLM.APIKey = cfg.LLM.APIKey.OrEnv("OPENAI_API_KEY")
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 500
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = ProviderOllama
	}
	switch cfg.Embeddings.Provider {
	case ProviderOllama:
		if cfg.Embeddings.BaseURL == "" {
			cfg.Embeddings.BaseURL = cfg.Ollama.BaseURL
		}
		if cfg.Embeddings.Model == "" {
			cfg.Embeddings.Model = cfg.Ollama.EmbedModel
		}
	case ProviderFastEmbed:
		if cfg.Embeddings.Model == "" {
			cfg.Embeddings.Model = "sentence-transformers/all-MiniLM-L6-v2"
		}
	case ProviderOpenAI:
		if cfg.Embeddings.Model == "" {
			cfg.Embeddings.Model = "text-embedding-3-small"
		}
		cfg.Embeddings.APIKey = cfg.Embeddings.APIKey.OrEnv("OPENAI_API_KEY")
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = ProviderChromem
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = "chroma_db"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "epstein"
	}
	if cfg.VectorStore.QdrantHost == "" {
		cfg.VectorStore.QdrantHost = "localhost"
	}
	if cfg.VectorStore.QdrantPort == 0 {
		cfg.VectorStore.QdrantPort = 6334
	}

	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 12
	}
	if cfg.Retrieval.FetchK == 0 {
		cfg.Retrieval.FetchK = 60
	}
	if cfg.Retrieval.Lambda == 0 {
		cfg.Retrieval.Lambda = 0.5
	}

	if cfg.Ingest.Dataset == "" {
		cfg.Ingest.Dataset = "teyler/epstein-files-20k"
	}
	if cfg.Ingest.ConfigName == "" {
		cfg.Ingest.ConfigName = "default"
	}
	if cfg.Ingest.Split == "" {
		cfg.Ingest.Split = "train"
	}
	if cfg.Ingest.HubURL == "" {
		cfg.Ingest.HubURL = "https://datasets-server.huggingface.co"
	}
	cfg.Ingest.HFToken = cfg.Ingest.HFToken.OrEnv("HF_TOKEN")
	if cfg.Ingest.PageSize == 0 {
		cfg.Ingest.PageSize = 100
	}
	if cfg.Ingest.RequestsPerSecond == 0 {
		cfg.Ingest.RequestsPerSecond = 5
	}
	if cfg.Ingest.DataDir == "" {
		cfg.Ingest.DataDir = "data"
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 400
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 80
	}
	if cfg.Ingest.MinDocLength == 0 {
		cfg.Ingest.MinDocLength = 100
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "docrag"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "grpc"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}
}
