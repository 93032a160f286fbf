// Package llm builds the chat model used for answer synthesis.
package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider names.
const (
	ProviderOllama = "ollama"
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
)

// GroqBaseURL is Groq's OpenAI compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("invalid llm configuration")

// Config selects a chat model.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	switch c.Provider {
	case ProviderOllama:
		if c.BaseURL == "" {
			return fmt.Errorf("%w: ollama base URL required", ErrInvalidConfig)
		}
	case ProviderGroq, ProviderOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("%w: %s requires an API key", ErrInvalidConfig, c.Provider)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}
	return nil
}

// New creates the chat model. Groq is reached through the OpenAI client.
func New(cfg Config) (llms.Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderOllama:
		m, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("creating ollama model: %w", err)
		}
		return m, nil

	default:
		baseURL := cfg.BaseURL
		if baseURL == "" && cfg.Provider == ProviderGroq {
			baseURL = GroqBaseURL
		}
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(cfg.APIKey),
		}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(strings.TrimSuffix(baseURL, "/")))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating %s model: %w", cfg.Provider, err)
		}
		return m, nil
	}
}
