package embeddings

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient returns [len(text), 1] for every text and records batch sizes.
type fakeClient struct {
	mu      sync.Mutex
	batches []int
	texts   []string
	err     error
}

func (c *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.batches = append(c.batches, len(texts))
	c.texts = append(c.texts, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func TestLangchainProvider_EmbedDocuments(t *testing.T) {
	client := &fakeClient{}
	p, err := NewLangchainProvider(client, "nomic-embed-text", 2, nil)
	require.NoError(t, err)
	assert.Zero(t, p.Dimension())

	vectors, err := p.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc", "dddd", "e"})
	require.NoError(t, err)

	require.Len(t, vectors, 5)
	assert.Equal(t, []float32{3, 1}, vectors[2])
	assert.ElementsMatch(t, []int{2, 2, 1}, client.batches)
	assert.Equal(t, 2, p.Dimension())
}

func TestLangchainProvider_KeepsNewlines(t *testing.T) {
	client := &fakeClient{}
	p, err := NewLangchainProvider(client, "m", 0, nil)
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"first\n\nsecond"})
	require.NoError(t, err)
	require.Len(t, client.texts, 1)
	assert.True(t, strings.Contains(client.texts[0], "\n\n"))
}

func TestLangchainProvider_EmbedQuery(t *testing.T) {
	p, err := NewLangchainProvider(&fakeClient{}, "m", 0, nil)
	require.NoError(t, err)

	v, err := p.EmbedQuery(context.Background(), "who?")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 1}, v)

	_, err = p.EmbedQuery(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestLangchainProvider_Errors(t *testing.T) {
	p, err := NewLangchainProvider(&fakeClient{err: errors.New("connection refused")}, "m", 0, nil)
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedDocuments(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "connection refused")

	_, err = NewLangchainProvider(nil, "m", 0, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), ProviderConfig{
		Provider: ProviderOllama,
		BaseURL:  "http://localhost:11434",
		Model:    "nomic-embed-text",
	}, nil)
	require.NoError(t, err)
	_, ok := p.(*LangchainProvider)
	assert.True(t, ok)

	p, err = NewProvider(context.Background(), ProviderConfig{
		Provider: ProviderOpenAI,
		BaseURL:  "http://localhost:8080/v1",
		Model:    "text-embedding-3-small",
		APIKey:   "sk-test",
	}, nil)
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = NewProvider(context.Background(), ProviderConfig{Provider: "word2vec"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewProvider(context.Background(), ProviderConfig{Provider: ProviderOllama}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
