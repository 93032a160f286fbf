package documents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON_PrettyUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", CleanedFile)

	docs := []Document{{File: "a.txt", Text: "Café <b> & done"}}
	require.NoError(t, WriteJSON(path, docs))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"file\": \"a.txt\",\n    \"text\": \"Café <b> & done\"\n  }\n]\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

func TestWriteJSON_WorldReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), RawFile)

	require.NoError(t, WriteJSON(path, []RawRecord{{Text: "a", File: "a.txt"}}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	// Overwriting an existing stage file keeps the mode.
	require.NoError(t, WriteJSON(path, []RawRecord{}))
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestReadChunks(t *testing.T) {
	dir := t.TempDir()
	chunks := []Chunk{
		{Text: "first", Metadata: ChunkMetadata{Source: "a.txt", Chunk: 0}},
		{Text: "third", Metadata: ChunkMetadata{Source: "a.txt", Chunk: 2}},
	}
	require.NoError(t, WriteJSON(filepath.Join(dir, ChunksFile), chunks))

	got, err := ReadChunks(dir)
	require.NoError(t, err)
	assert.Equal(t, chunks, got)
	assert.Equal(t, []string{"first", "third"}, Texts(got))
}

func TestReadRaw_Missing(t *testing.T) {
	_, err := ReadRaw(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadCleaned_Malformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CleanedFile), []byte("{not json"), 0o600))

	_, err := ReadCleaned(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}
