package logging

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level      zapcore.Level     `koanf:"level"`
	Format     string            `koanf:"format"`
	Output     OutputConfig      `koanf:"output"`
	Sampling   SamplingConfig    `koanf:"sampling"`
	Caller     CallerConfig      `koanf:"caller"`
	Stacktrace StacktraceConfig  `koanf:"stacktrace"`
	Fields     map[string]string `koanf:"fields"`
	Redaction  RedactionConfig   `koanf:"redaction"`
}

// OutputConfig controls where logs are written.
// Stdout and Stderr are mutually exclusive; the CLI logs to stderr so that
// stage summaries on stdout stay clean.
type OutputConfig struct {
	Stdout bool `koanf:"stdout"`
	Stderr bool `koanf:"stderr"`
	OTEL   bool `koanf:"otel"`
}

// SamplingConfig controls log volume reduction below Error.
type SamplingConfig struct {
	Enabled    bool            `koanf:"enabled"`
	Tick       config.Duration `koanf:"tick"`
	Initial    int             `koanf:"initial"`
	Thereafter int             `koanf:"thereafter"`
}

// CallerConfig controls caller information in logs.
type CallerConfig struct {
	Enabled bool `koanf:"enabled"`
	Skip    int  `koanf:"skip"`
}

// StacktraceConfig controls stacktrace inclusion.
type StacktraceConfig struct {
	Level zapcore.Level `koanf:"level"`
}

// RedactionConfig controls sensitive data redaction.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{
			Stdout: true,
		},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       config.Duration(time.Second),
			Initial:    100,
			Thereafter: 10,
		},
		Caller: CallerConfig{
			Enabled: true,
			Skip:    1,
		},
		Stacktrace: StacktraceConfig{
			Level: zapcore.ErrorLevel,
		},
		Fields: map[string]string{
			"service": "docrag",
		},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"api_key", "token", "hf_token", "authorization", "bearer", "secret",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`gsk_[A-Za-z0-9]{20,}`,
				`hf_[A-Za-z0-9]{20,}`,
			},
		},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Output.Stdout && !c.Output.Stderr && !c.Output.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout, stderr or otel)")
	}
	if c.Output.Stdout && c.Output.Stderr {
		return fmt.Errorf("stdout and stderr outputs are mutually exclusive")
	}
	if c.Sampling.Enabled && c.Sampling.Tick.Duration() <= 0 {
		return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
	}
	if c.Caller.Enabled && c.Caller.Skip < 0 {
		return fmt.Errorf("caller skip must be >= 0, got %d", c.Caller.Skip)
	}

	if c.Redaction.Enabled {
		if _, err := newRedactor(c.Redaction); err != nil {
			return err
		}
	}
	for k := range c.Fields {
		if k == "" {
			return fmt.Errorf("static field key cannot be empty")
		}
	}
	return nil
}

// FromAppConfig applies the operator facing logging section to the
// defaults. toStderr routes output to stderr instead of stdout.
func FromAppConfig(app config.LoggingConfig, toStderr bool) (*Config, error) {
	cfg := NewDefaultConfig()
	if app.Level != "" {
		level, err := zapcore.ParseLevel(app.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", app.Level, err)
		}
		cfg.Level = level
	}
	if app.Format != "" {
		cfg.Format = app.Format
	}
	if toStderr {
		cfg.Output.Stdout = false
		cfg.Output.Stderr = true
	}
	return cfg, cfg.Validate()
}

// New builds a binary's logger from the logging section. Entries are also
// bridged into lp when it is non-nil, which is how telemetry receives them.
func New(app config.LoggingConfig, toStderr bool, lp log.LoggerProvider) (*Logger, error) {
	cfg, err := FromAppConfig(app, toStderr)
	if err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}
	cfg.Output.OTEL = lp != nil
	return NewLogger(cfg, lp)
}
