package indexer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fyrsmithlabs/docrag/internal/documents"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== MOCKS =====

type mockStore struct {
	resets   int
	batches  [][]vectorstore.Record
	indexErr error
	failOn   int
}

func (m *mockStore) Reset(context.Context) error {
	m.resets++
	m.batches = nil
	return nil
}

func (m *mockStore) Index(_ context.Context, records []vectorstore.Record) error {
	if m.indexErr != nil && len(m.batches) == m.failOn {
		return m.indexErr
	}
	m.batches = append(m.batches, records)
	return nil
}

func (m *mockStore) Search(context.Context, []float32, int, int) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (m *mockStore) Count(context.Context) (int, error) {
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n, nil
}

func (m *mockStore) Close() error { return nil }

type mockEmbedder struct {
	calls [][]string
	err   error
	short bool
}

func (m *mockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.calls = append(m.calls, texts)
	n := len(texts)
	if m.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i + 1), 0, 1}
	}
	return out, nil
}

func makeChunks(n int) []documents.Chunk {
	chunks := make([]documents.Chunk, n)
	for i := range chunks {
		chunks[i] = documents.Chunk{
			Text:     fmt.Sprintf("chunk text %d", i),
			Metadata: documents.ChunkMetadata{Source: fmt.Sprintf("f%d.txt", i/3), Chunk: i % 3},
		}
	}
	return chunks
}

// ===== TESTS =====

func TestRun_BatchesSequentially(t *testing.T) {
	store := &mockStore{}
	emb := &mockEmbedder{}
	log := logging.NewTestLogger()

	stats, err := New(store, emb, WithBatchSize(4), WithLogger(log.Underlying())).Run(context.Background(), makeChunks(10))
	require.NoError(t, err)

	assert.Equal(t, 1, store.resets)
	assert.Equal(t, 10, stats.Chunks)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 3, stats.Dimension)
	require.Len(t, emb.calls, 3)
	assert.Len(t, emb.calls[0], 4)
	assert.Len(t, emb.calls[2], 2)

	// Order and metadata survive.
	first := store.batches[0][0]
	assert.Equal(t, "chunk text 0", first.Content)
	assert.Equal(t, documents.ChunkMetadata{Source: "f0.txt", Chunk: 0}, first.Metadata)
	assert.Equal(t, "chunk text 9", store.batches[2][1].Content)

	assert.Equal(t, 3, log.FilterMessage("indexed batch").Len())
}

func TestRun_ResetsEvenWithoutChunks(t *testing.T) {
	store := &mockStore{batches: [][]vectorstore.Record{{{ID: "stale"}}}}

	stats, err := New(store, &mockEmbedder{}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, store.resets)
	assert.Zero(t, stats.Chunks)

	n, _ := store.Count(context.Background())
	assert.Zero(t, n)
}

func TestRun_StoreFailureKeepsEarlierBatches(t *testing.T) {
	store := &mockStore{indexErr: errors.New("disk full"), failOn: 1}

	stats, err := New(store, &mockEmbedder{}, WithBatchSize(5)).Run(context.Background(), makeChunks(12))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 2/3")
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, 5, stats.Chunks)
	assert.Len(t, store.batches, 1)
}

func TestRun_EmbedderFailureAborts(t *testing.T) {
	store := &mockStore{}
	_, err := New(store, &mockEmbedder{err: errors.New("ollama down")}).Run(context.Background(), makeChunks(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding")
	assert.Empty(t, store.batches)
}

func TestRun_EmbeddingCountMismatch(t *testing.T) {
	_, err := New(&mockStore{}, &mockEmbedder{short: true}).Run(context.Background(), makeChunks(3))
	assert.ErrorIs(t, err, ErrEmbeddingCount)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&mockStore{}, &mockEmbedder{}).Run(ctx, makeChunks(3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ChromemEndToEnd(t *testing.T) {
	ctx := context.Background()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: t.TempDir(), Collection: "epstein"})
	require.NoError(t, err)

	idx := New(store, &mockEmbedder{}, WithBatchSize(2))
	_, err = idx.Run(ctx, makeChunks(5))
	require.NoError(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// A second run replaces rather than appends.
	_, err = idx.Run(ctx, makeChunks(3))
	require.NoError(t, err)
	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRecordID(t *testing.T) {
	id := RecordID("Some Chunk")
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	assert.Equal(t, id, RecordID("Some Chunk"))
	assert.Equal(t, id, RecordID("some chunk"))
	assert.NotEqual(t, id, RecordID("other chunk"))
}
