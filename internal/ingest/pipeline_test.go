package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/documents"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

var corpus = []string{
	"FileName,Text",
	"flights.txt,The flight log for March lists four passengers travelling from Palm Beach to Teterboro on the morning flight.",
	"The return leg the following week carried only the crew and two of the original passengers.",
	"notes.txt,Short.",
	"calendar.txt,Meetings were scheduled every Tuesday at the office on Madison Avenue, according to the desk calendar pages.",
}

// fakeHub serves corpus through the /rows endpoint.
func fakeHub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rows := make([]map[string]any, 0, len(corpus))
		for i, text := range corpus {
			rows = append(rows, map[string]any{
				"row_idx": i,
				"row":     map[string]any{"text": text, "file_name": "EFTA-1.txt"},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"rows": rows, "num_rows_total": len(rows)})
	}))
}

// hashEmbedder derives a deterministic vector from each text.
type hashEmbedder struct {
	failWith error
}

func (h *hashEmbedder) vector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	v := make([]float32, 8)
	for i := range v {
		v[i] = float32(sum[i]) + 1
	}
	return v
}

func (h *hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if h.failWith != nil {
		return nil, h.failWith
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *hashEmbedder) Dimension() int { return 8 }
func (h *hashEmbedder) Close() error   { return nil }

func testConfig(t *testing.T, hubURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Ingest.HubURL = hubURL
	cfg.Ingest.Dataset = "teyler/epstein-files-20k"
	cfg.Ingest.Split = "train"
	cfg.Ingest.PageSize = 100
	cfg.Ingest.RequestsPerSecond = 100
	cfg.Ingest.DataDir = filepath.Join(dir, "data")
	cfg.Ingest.MinDocLength = 100
	cfg.Ingest.ChunkSize = 400
	cfg.Ingest.ChunkOverlap = 80
	cfg.Ingest.BatchSize = 2
	cfg.Embeddings.Provider = config.ProviderFastEmbed
	cfg.VectorStore.Provider = config.ProviderChromem
	cfg.VectorStore.Path = filepath.Join(dir, "chroma_db")
	cfg.VectorStore.Collection = "epstein"
	cfg.Retrieval.Lambda = 0.5
	return cfg
}

func newTestPipeline(cfg *config.Config, out *bytes.Buffer, embedder *hashEmbedder) *Pipeline {
	return New(cfg, out, zap.NewNop(),
		WithEmbedderFactory(func(context.Context, *config.Config, *zap.Logger) (embeddings.Provider, error) {
			return embedder, nil
		}),
	)
}

func TestPipeline_All(t *testing.T) {
	hub := fakeHub(t)
	defer hub.Close()

	cfg := testConfig(t, hub.URL)
	var out bytes.Buffer
	require.NoError(t, newTestPipeline(cfg, &out, &hashEmbedder{}).All(context.Background()))

	raw, err := documents.ReadRaw(cfg.Ingest.DataDir)
	require.NoError(t, err)
	assert.Len(t, raw, len(corpus))

	docs, err := documents.ReadCleaned(cfg.Ingest.DataDir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "flights.txt", docs[0].File)
	assert.Equal(t, "calendar.txt", docs[1].File)

	chunks, err := documents.ReadChunks(cfg.Ingest.DataDir)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	store, err := vectorstore.NewStore(cfg, nil)
	require.NoError(t, err)
	defer store.Close()
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	summary := out.String()
	assert.Contains(t, summary, "Total records: 5")
	assert.Contains(t, summary, "Docs: 2")
	assert.Contains(t, summary, "Chunks: 2")
	assert.Contains(t, summary, "Indexed 2 chunks in 1 batches")
}

func TestPipeline_StagesRunAlone(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	require.NoError(t, documents.WriteJSON(filepath.Join(cfg.Ingest.DataDir, documents.RawFile), []documents.RawRecord{
		{Text: "a.txt," + strings.Repeat("alpha beta gamma ", 10), File: "x"},
	}))

	var out bytes.Buffer
	p := newTestPipeline(cfg, &out, &hashEmbedder{})

	n, err := p.Clean(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = p.Chunk(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPipeline_MissingInput(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	p := newTestPipeline(cfg, &bytes.Buffer{}, &hashEmbedder{})

	_, err := p.Clean(context.Background())
	assert.ErrorContains(t, err, documents.RawFile)

	_, err = p.Embed(context.Background())
	assert.ErrorContains(t, err, documents.ChunksFile)
}

func TestPipeline_EmbedFailureAborts(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	require.NoError(t, documents.WriteJSON(filepath.Join(cfg.Ingest.DataDir, documents.ChunksFile), []documents.Chunk{
		{Text: "one", Metadata: documents.ChunkMetadata{Source: "a.txt"}},
	}))

	_, err := newTestPipeline(cfg, &bytes.Buffer{}, &hashEmbedder{failWith: errors.New("ollama down")}).
		Embed(context.Background())
	assert.ErrorContains(t, err, "ollama down")
}

func TestPipeline_DownloadFailure(t *testing.T) {
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer hub.Close()

	cfg := testConfig(t, hub.URL)
	err := newTestPipeline(cfg, &bytes.Buffer{}, &hashEmbedder{}).All(context.Background())
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(cfg.Ingest.DataDir, documents.RawFile))
}
