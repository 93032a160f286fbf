package telemetry

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.Nil(t, tel.tracers)
	assert.Nil(t, tel.meters)
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Degraded())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")
}

func TestNew_EnabledLocalCollector(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	// Exporters connect lazily, so a missing collector does not fail New.
	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, tel.tracers)
	assert.NotNil(t, tel.meters)
	assert.NotNil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Degraded())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = tel.Shutdown(ctx)
}

func TestNilTelemetry(t *testing.T) {
	var tel *Telemetry
	assert.NoError(t, tel.Degraded())
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"disabled skips checks", func(c *Config) { c.Endpoint = "" }, ""},
		{"enabled local", func(c *Config) { c.Enabled = true }, ""},
		{"insecure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, "insecure"},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, "protocol"},
		{"bad rate", func(c *Config) { c.Enabled = true; c.SampleRate = 2 }, "sample rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(config.ObservabilityConfig{
		EnableTelemetry: true,
		ServiceName:     "docragd",
		Endpoint:        "http://127.0.0.1:4318",
		Protocol:        "http/protobuf",
		SampleRate:      0.25,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, 0.25, cfg.SampleRate)
	assert.NoError(t, cfg.Validate())
}

func TestIsLocalEndpoint(t *testing.T) {
	assert.True(t, isLocalEndpoint("localhost:4317"))
	assert.True(t, isLocalEndpoint("127.0.0.1:4317"))
	assert.True(t, isLocalEndpoint("[::1]:4317"))
	assert.True(t, isLocalEndpoint("http://localhost:4318"))
	assert.False(t, isLocalEndpoint("collector.internal:4317"))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased{0.5}")
}

func TestHasScheme(t *testing.T) {
	assert.True(t, hasScheme("http://localhost:4318"))
	assert.False(t, hasScheme("localhost:4317"))
	assert.Equal(t, "localhost:4318", stripScheme("https://localhost:4318"))
}

func TestNew_EnabledHTTPCollector(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Protocol = ProtocolHTTP
	cfg.Endpoint = "http://localhost:4318"

	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, tel.Degraded())
	assert.NotNil(t, tel.LoggerProvider())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = tel.Shutdown(ctx)
}
