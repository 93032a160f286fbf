package vectorstore

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/docrag/internal/documents"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQdrantConfig_ApplyDefaults(t *testing.T) {
	cfg := QdrantConfig{}
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, "epstein", cfg.Collection)
	assert.Equal(t, qdrant.Distance_Cosine, cfg.Distance)
	assert.NoError(t, cfg.Validate())
}

func TestQdrantConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  QdrantConfig
	}{
		{"missing host", QdrantConfig{Port: 6334, Collection: "c"}},
		{"bad port", QdrantConfig{Host: "h", Port: 70000, Collection: "c"}},
		{"bad collection", QdrantConfig{Host: "h", Port: 6334, Collection: "Bad-Name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestPointID(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, id, pointID(id))

	derived := pointID("a.txt#3")
	_, err := uuid.Parse(derived)
	assert.NoError(t, err)
	assert.Equal(t, derived, pointID("a.txt#3"))
	assert.NotEqual(t, derived, pointID("a.txt#4"))
}

func TestFromScoredPoint(t *testing.T) {
	r := Record{
		ID:       "chunk-1",
		Content:  "some text",
		Metadata: documents.ChunkMetadata{Source: "a.txt", Chunk: 7},
	}
	p := &qdrant.ScoredPoint{
		Id:      qdrant.NewIDUUID(pointID(r.ID)),
		Payload: toPayload(r),
		Score:   0.75,
	}

	got := fromScoredPoint(p)
	assert.Equal(t, "chunk-1", got.ID)
	assert.Equal(t, "some text", got.Content)
	assert.Equal(t, r.Metadata, got.Metadata)
	assert.Equal(t, float32(0.75), got.Score)
	assert.Nil(t, got.embedding)
}

// newIntegrationStore connects to the Qdrant gRPC endpoint at QDRANT_HOST
// and QDRANT_PORT (default localhost:6334) using a fresh collection, and
// skips the test when no server answers.
func newIntegrationStore(t *testing.T) *QdrantStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := QdrantConfig{
		Host:       os.Getenv("QDRANT_HOST"),
		Collection: "docrag_it_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
	}
	if port, err := strconv.Atoi(os.Getenv("QDRANT_PORT")); err == nil {
		cfg.Port = port
	}

	store, err := NewQdrantStore(cfg)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	t.Cleanup(func() {
		_ = store.client.DeleteCollection(context.Background(), store.config.Collection)
		_ = store.Close()
	})
	return store
}

func qdrantRecords() []Record {
	return []Record{
		{ID: uuid.NewString(), Content: "flight logs", Metadata: documents.ChunkMetadata{Source: "a.txt", Chunk: 0}, Embedding: []float32{1, 0, 0}},
		{ID: uuid.NewString(), Content: "court filing", Metadata: documents.ChunkMetadata{Source: "b.txt", Chunk: 2}, Embedding: []float32{0, 1, 0}},
		{ID: uuid.NewString(), Content: "deposition", Metadata: documents.ChunkMetadata{Source: "c.txt", Chunk: 1}, Embedding: []float32{0, 0, 1}},
	}
}

func TestQdrantStore_SearchMissingCollection(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	results, err := store.Search(ctx, []float32{1, 0, 0}, 12, 60)
	require.NoError(t, err)
	assert.Empty(t, results)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQdrantStore_IndexCreatesCollection(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	exists, err := store.client.CollectionExists(ctx, store.config.Collection)
	require.NoError(t, err)
	require.False(t, exists)

	records := qdrantRecords()
	require.NoError(t, store.Index(ctx, records))

	exists, err = store.client.CollectionExists(ctx, store.config.Collection)
	require.NoError(t, err)
	assert.True(t, exists)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Upserting the same ids overwrites instead of duplicating.
	require.NoError(t, store.Index(ctx, records))
	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := store.Search(ctx, []float32{0.9, 0.1, 0}, 2, 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, records[0].ID, results[0].ID)
	assert.Equal(t, "flight logs", results[0].Content)
	assert.Equal(t, records[0].Metadata, results[0].Metadata)
}

func TestQdrantStore_Reset(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	// Resetting before anything was indexed is a no-op.
	require.NoError(t, store.Reset(ctx))

	require.NoError(t, store.Index(ctx, qdrantRecords()))
	require.NoError(t, store.Reset(ctx))

	exists, err := store.client.CollectionExists(ctx, store.config.Collection)
	require.NoError(t, err)
	assert.False(t, exists)

	results, err := store.Search(ctx, []float32{1, 0, 0}, 12, 60)
	require.NoError(t, err)
	assert.Empty(t, results)

	// The next Index recreates the collection.
	require.NoError(t, store.Index(ctx, qdrantRecords()[:1]))
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
