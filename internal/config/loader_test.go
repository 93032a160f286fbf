package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setupTestDirs points HOME and the working directory at fresh temp dirs.
func setupTestDirs(t *testing.T) (home, work string) {
	t.Helper()
	home = t.TempDir()
	work = t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(work)
	return home, work
}

func TestLoad_Defaults(t *testing.T) {
	setupTestDirs(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.LLM.Provider != ProviderOllama || cfg.LLM.Model != "qwen2.5:7b" {
		t.Errorf("LLM = %s/%s, want ollama/qwen2.5:7b", cfg.LLM.Provider, cfg.LLM.Model)
	}
	if cfg.Embeddings.Model != "nomic-embed-text" {
		t.Errorf("Embeddings.Model = %q, want nomic-embed-text", cfg.Embeddings.Model)
	}
	if cfg.Retrieval.K != 12 || cfg.Retrieval.FetchK != 60 || cfg.Retrieval.Lambda != 0.5 {
		t.Errorf("Retrieval = %+v", cfg.Retrieval)
	}
	if cfg.VectorStore.Path != "chroma_db" || cfg.VectorStore.Collection != "epstein" {
		t.Errorf("VectorStore = %+v", cfg.VectorStore)
	}
	if cfg.Ingest.ChunkSize != 400 || cfg.Ingest.ChunkOverlap != 80 || cfg.Ingest.MinDocLength != 100 {
		t.Errorf("Ingest chunking = %d/%d/%d", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, cfg.Ingest.MinDocLength)
	}
	if cfg.LLM.Temperature != 0 || cfg.LLM.MaxTokens != 500 {
		t.Errorf("LLM decoding = %g/%d, want 0/500", cfg.LLM.Temperature, cfg.LLM.MaxTokens)
	}
	if got := cfg.EmbedBatchSize(); got != 500 {
		t.Errorf("EmbedBatchSize() = %d, want 500", got)
	}
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	_, work := setupTestDirs(t)

	configPath := filepath.Join(work, "docrag.yaml")
	yamlContent := `server:
  http_port: 9000
  shutdown_timeout: 3s
retrieval:
  k: 4
  fetch_k: 20
vectorstore:
  provider: qdrant
  collection: files
embeddings:
  provider: fastembed
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 3*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 3s", cfg.Server.ShutdownTimeout.Duration())
	}
	if cfg.Retrieval.K != 4 || cfg.Retrieval.FetchK != 20 {
		t.Errorf("Retrieval = %+v", cfg.Retrieval)
	}
	if cfg.VectorStore.Provider != ProviderQdrant || cfg.VectorStore.Collection != "files" {
		t.Errorf("VectorStore = %+v", cfg.VectorStore)
	}
	if cfg.Embeddings.Model != "sentence-transformers/all-MiniLM-L6-v2" {
		t.Errorf("Embeddings.Model = %q", cfg.Embeddings.Model)
	}
	if got := cfg.EmbedBatchSize(); got != 1000 {
		t.Errorf("EmbedBatchSize() = %d, want 1000", got)
	}
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	_, work := setupTestDirs(t)

	configPath := filepath.Join(work, "docrag.yaml")
	if err := os.WriteFile(configPath, []byte("ollama:\n  model: from-yaml\n"), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434")
	t.Setenv("OLLAMA_MODEL", "llama3.1:8b")
	t.Setenv("OLLAMA_EMBED_MODEL", "mxbai-embed-large")
	t.Setenv("RETRIEVAL_FETCH_K", "80")

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}

	if cfg.Ollama.BaseURL != "http://gpu-box:11434" || cfg.LLM.BaseURL != "http://gpu-box:11434" {
		t.Errorf("base url not overridden: ollama=%q llm=%q", cfg.Ollama.BaseURL, cfg.LLM.BaseURL)
	}
	if cfg.LLM.Model != "llama3.1:8b" {
		t.Errorf("LLM.Model = %q, want env value", cfg.LLM.Model)
	}
	if cfg.Embeddings.Model != "mxbai-embed-large" {
		t.Errorf("Embeddings.Model = %q, want env value", cfg.Embeddings.Model)
	}
	if cfg.Retrieval.FetchK != 80 {
		t.Errorf("Retrieval.FetchK = %d, want 80", cfg.Retrieval.FetchK)
	}
}

func TestLoadWithFile_DotEnv(t *testing.T) {
	_, work := setupTestDirs(t)

	os.Unsetenv("OLLAMA_EMBED_MODEL")
	t.Cleanup(func() { os.Unsetenv("OLLAMA_EMBED_MODEL") })
	t.Setenv("OLLAMA_MODEL", "process-wins")

	dotenv := "OLLAMA_EMBED_MODEL=from-dotenv\nOLLAMA_MODEL=ignored\n"
	if err := os.WriteFile(filepath.Join(work, DotEnvFile), []byte(dotenv), 0600); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ollama.EmbedModel != "from-dotenv" {
		t.Errorf("Ollama.EmbedModel = %q, want from-dotenv", cfg.Ollama.EmbedModel)
	}
	if cfg.Ollama.Model != "process-wins" {
		t.Errorf("Ollama.Model = %q, want process-wins", cfg.Ollama.Model)
	}
}

func TestLoad_GroqProvider(t *testing.T) {
	setupTestDirs(t)
	t.Setenv("LLM_PROVIDER", "groq")
	t.Setenv("GROQ_API_KEY", "gsk_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.BaseURL != "https://api.groq.com/openai/v1" {
		t.Errorf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Model != "llama-3.3-70b-versatile" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey.Value() != "gsk_test" {
		t.Errorf("LLM.APIKey not taken from GROQ_API_KEY")
	}
}

func TestLoad_GroqRequiresKey(t *testing.T) {
	setupTestDirs(t)
	t.Setenv("LLM_PROVIDER", "groq")
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("LLM_API_KEY", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "requires an api key") {
		t.Fatalf("Load() error = %v, want api key error", err)
	}
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	_, work := setupTestDirs(t)

	configPath := filepath.Join(work, "docrag.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  http_port: 9000\n"), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if err := os.Chmod(configPath, 0666); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	_, err := LoadWithFile(configPath)
	if err == nil || !strings.Contains(err.Error(), "insecure config file permissions") {
		t.Fatalf("LoadWithFile() error = %v, want permissions error", err)
	}
}

func TestLoadWithFile_PathOutsideAllowedDirs(t *testing.T) {
	setupTestDirs(t)
	outside := filepath.Join(t.TempDir(), "config.yaml")

	_, err := LoadWithFile(outside)
	if err == nil || !strings.Contains(err.Error(), "config path validation failed") {
		t.Fatalf("LoadWithFile() error = %v, want path validation error", err)
	}
}

func TestLoadWithFile_HomeConfigDir(t *testing.T) {
	home, _ := setupTestDirs(t)

	configDir := filepath.Join(home, ".config", "docrag")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("ingest:\n  data_dir: /srv/data\n"), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ingest.DataDir != "/srv/data" {
		t.Errorf("Ingest.DataDir = %q, want /srv/data", cfg.Ingest.DataDir)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"OLLAMA_BASE_URL":        "ollama.base_url",
		"SERVER_HTTP_PORT":       "server.http_port",
		"RETRIEVAL_FETCH_K":      "retrieval.fetch_k",
		"VECTORSTORE_PATH":       "vectorstore.path",
		"PATH":                   "",
		"HOME_DIR":               "",
		"OLLAMA_":                "",
		"GROQ_API_KEY":           "",
		"INGEST_HF_TOKEN":        "ingest.hf_token",
		"OBSERVABILITY_ENDPOINT": "observability.endpoint",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"fetch_k below k", func(c *Config) { c.Retrieval.FetchK = 5 }, "fetch_k"},
		{"lambda above one", func(c *Config) { c.Retrieval.Lambda = 1.5 }, "lambda"},
		{"overlap too large", func(c *Config) { c.Ingest.ChunkOverlap = 400 }, "chunk_overlap"},
		{"unknown llm", func(c *Config) { c.LLM.Provider = "bard" }, "unknown llm provider"},
		{"unknown store", func(c *Config) { c.VectorStore.Provider = "pinecone" }, "unknown vectorstore provider"},
		{"page size", func(c *Config) { c.Ingest.PageSize = 500 }, "page_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
