package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docrag/internal/documents"
	"github.com/fyrsmithlabs/docrag/pkg/client"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"ask", "health", "tui", "ingest"} {
		assert.True(t, names[want], "missing %s command", want)
	}

	stages := map[string]bool{}
	for _, cmd := range ingestCmd.Commands() {
		stages[cmd.Name()] = true
	}
	for _, want := range []string{"download", "clean", "chunk", "embed", "all"} {
		assert.True(t, stages[want], "missing ingest %s command", want)
	}
}

func TestRootCmd_Flags(t *testing.T) {
	f := rootCmd.PersistentFlags()
	require.NotNil(t, f.Lookup("server"))
	assert.Equal(t, client.DefaultServerURL, f.Lookup("server").DefValue)
	assert.NotNil(t, f.Lookup("config"))
	assert.NotNil(t, f.Lookup("data-dir"))
	assert.Equal(t, "2m0s", f.Lookup("timeout").DefValue)
}

func TestAskCmd_PrintsAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ask", r.URL.Path)
		assert.Equal(t, "who flew?", r.URL.Query().Get("question"))
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": "Nobody in the excerpts."})
	}))
	defer srv.Close()

	out, err := execute(t, "ask", "--server", srv.URL, "who flew?")
	require.NoError(t, err)
	assert.Equal(t, "Nobody in the excerpts.\n", out)
}

func TestAskCmd_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	out, err := execute(t, "ask", "--server", srv.URL, "anything")
	require.Error(t, err)
	assert.Equal(t, client.ServerErrorMessage+"\n", out)
}

func TestAskCmd_ConnectionFailed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out, err := execute(t, "ask", "--server", url, "anything")
	require.Error(t, err)
	assert.Contains(t, out, client.ConnectionFailedPrefix)
}

func TestHealthCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(client.HealthResponse{Status: "ok", OllamaURL: "http://localhost:11434", Model: "qwen2.5:7b"})
	}))
	defer srv.Close()

	out, err := execute(t, "health", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Status: ok")
	assert.Contains(t, out, "Model:  qwen2.5:7b")
}

func TestIngestClean_FromRawFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("LOGGING_LEVEL", "error")

	dir := t.TempDir()
	require.NoError(t, documents.WriteJSON(filepath.Join(dir, documents.RawFile), []documents.RawRecord{
		{Text: "filename,text", File: documents.UnknownFile},
		{Text: "a.txt,The flight log lists a departure from Palm Beach and an arrival in Teterboro with four passengers aboard.", File: documents.UnknownFile},
	}))

	out, err := execute(t, "ingest", "clean", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Docs: 1")

	docs, err := documents.ReadCleaned(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a.txt", docs[0].File)
}

func TestIngestChunk_MissingInput(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("LOGGING_LEVEL", "error")

	_, err := execute(t, "ingest", "chunk", "--data-dir", t.TempDir())
	require.Error(t, err)
}
