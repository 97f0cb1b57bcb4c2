package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbedServer(t *testing.T, dims int, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		if calls != nil {
			*calls++
		}

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embedResponse{}
		for i := range req.Input {
			vec := make([]float64, dims)
			vec[i%dims] = 1
			resp.Embeddings = append(resp.Embeddings, vec)
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	server := newEmbedServer(t, 4, nil)
	defer server.Close()

	e := NewOllamaEmbedder(Config{Host: server.URL})
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], 4)

	// Dimensions auto-detect from the first response.
	assert.Equal(t, 4, e.Dimensions())
}

func TestOllamaEmbedder_BatchSplitting(t *testing.T) {
	calls := 0
	server := newEmbedServer(t, 2, &calls)
	defer server.Close()

	e := NewOllamaEmbedder(Config{Host: server.URL, BatchSize: 2})
	texts := []string{"a", "b", "c", "d", "e"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, 3, calls)
}

func TestOllamaEmbedder_UnavailableError(t *testing.T) {
	e := NewOllamaEmbedder(Config{Host: "http://127.0.0.1:1"})
	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.False(t, e.Available(context.Background()))
}

type countingEmbedder struct {
	calls int
	dims  int
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	return make([]float32, c.dims), nil
}

func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = make([]float32, c.dims)
	}
	return vecs, nil
}

func (c *countingEmbedder) Dimensions() int                  { return c.dims }
func (c *countingEmbedder) ModelName() string                { return "counting" }
func (c *countingEmbedder) Available(_ context.Context) bool { return true }
func (c *countingEmbedder) Close() error                     { return nil }

func TestCachedEmbedder_Hit(t *testing.T) {
	inner := &countingEmbedder{dims: 3}
	cached, err := NewCachedEmbedder(inner, 10)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = cached.Embed(ctx, "same text")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "same text")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedder_BatchPartialMiss(t *testing.T) {
	inner := &countingEmbedder{dims: 3}
	cached, err := NewCachedEmbedder(inner, 10)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = cached.Embed(ctx, "warm")
	require.NoError(t, err)
	inner.calls = 0

	vecs, err := cached.EmbedBatch(ctx, []string{"cold1", "warm", "cold2"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	// One batch call covers both misses.
	assert.Equal(t, 1, inner.calls)
}
