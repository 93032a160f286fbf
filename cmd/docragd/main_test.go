package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points config lookup at empty temp directories.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func TestSetup_InvalidConfiguration(t *testing.T) {
	isolate(t)
	t.Setenv("LLM_PROVIDER", "bard")

	_, err := setup(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading configuration")
}

func TestSetup_BuildsServices(t *testing.T) {
	isolate(t)
	t.Setenv("VECTORSTORE_PATH", filepath.Join(t.TempDir(), "chroma_db"))
	t.Setenv("LOGGING_LEVEL", "error")

	rt, err := setup(context.Background(), true)
	require.NoError(t, err)
	defer rt.Close()

	assert.NotNil(t, rt.registry.RAG())
	assert.Equal(t, "qwen2.5:7b", rt.cfg.LLM.Model)
}

func TestSetup_TelemetryFeedsLogger(t *testing.T) {
	isolate(t)
	t.Setenv("VECTORSTORE_PATH", filepath.Join(t.TempDir(), "chroma_db"))
	t.Setenv("OBSERVABILITY_ENABLE_TELEMETRY", "true")
	t.Setenv("OBSERVABILITY_ENDPOINT", "localhost:4317")

	rt, err := setup(context.Background(), true)
	require.NoError(t, err)
	defer rt.Close()

	assert.NotNil(t, rt.telemetry.LoggerProvider())
	assert.NoError(t, rt.telemetry.Degraded())

	// No collector is listening; flush with a cancelled context so the
	// exporters give up immediately.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = rt.telemetry.Shutdown(ctx)
}
