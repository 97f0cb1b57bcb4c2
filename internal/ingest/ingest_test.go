package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotaeru-ai/kensaku/internal/chunk"
	"github.com/kotaeru-ai/kensaku/internal/store"
)

type fakeEmbedder struct {
	dims  int
	fail  bool
	calls atomic.Int64
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, errors.New("embedder down")
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dims)
		vec[i%f.dims] = 1
		vecs[i] = vec
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimensions() int                    { return f.dims }
func (f *fakeEmbedder) ModelName() string                  { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return !f.fail }
func (f *fakeEmbedder) Close() error                       { return nil }

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *store.SQLiteStore, *store.KeywordIndex) {
	t.Helper()

	corpus, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { corpus.Close() })

	keyword, err := store.NewKeywordIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { keyword.Close() })

	chunker := chunk.New(chunk.Options{})
	p, err := NewPipeline(corpus, keyword, chunker, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Close)

	return p, corpus, keyword
}

func TestIngestDocument(t *testing.T) {
	vector, err := store.NewVectorIndex(store.VectorIndexConfig{Dimensions: 4})
	require.NoError(t, err)
	defer vector.Close()

	emb := &fakeEmbedder{dims: 4}
	p, corpus, keyword := newTestPipeline(t,
		WithEmbedder(emb),
		WithVectorIndex(vector),
	)

	ctx := context.Background()
	doc := &store.Document{ID: "manual", TenantID: "acme", Name: "manual.txt"}
	report, err := p.IngestDocument(ctx, doc, "ワイヤレスマウスのおすすめ設定について説明します。", chunk.HintFreeform)
	require.NoError(t, err)

	assert.Equal(t, "manual", report.DocumentID)
	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, 1, report.Embedded)

	stored, err := corpus.Document(ctx, "acme", "manual")
	require.NoError(t, err)
	assert.True(t, stored.Active, "ingested documents start searchable")

	chunks, err := corpus.ChunksByTenant(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Len(t, chunks[0].Embedding, 4)

	hits, err := keyword.Search(ctx, "acme", []string{"マウス"}, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)

	assert.Equal(t, 1, vector.Count())
}

func TestIngestDocument_EmbedderDown(t *testing.T) {
	p, corpus, _ := newTestPipeline(t, WithEmbedder(&fakeEmbedder{dims: 4, fail: true}))

	ctx := context.Background()
	doc := &store.Document{ID: "doc-1", TenantID: "acme"}
	report, err := p.IngestDocument(ctx, doc, "plain text without vectors", chunk.HintFreeform)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, 0, report.Embedded)

	chunks, err := corpus.ChunksByTenant(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].Embedding)
}

func TestIngestDocument_NoEmbedder(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	report, err := p.IngestDocument(context.Background(),
		&store.Document{ID: "doc-1", TenantID: "acme"}, "no embedder configured", chunk.HintFreeform)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Embedded)
}

func TestIngestDocument_Validation(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.IngestDocument(ctx, &store.Document{TenantID: "acme"}, "text", chunk.HintAuto)
	assert.Error(t, err)

	_, err = p.IngestDocument(ctx, &store.Document{ID: "doc-1", TenantID: "acme"}, "", chunk.HintAuto)
	assert.Error(t, err)
}

func TestIngestDocument_ReingestReplacesChunks(t *testing.T) {
	p, corpus, keyword := newTestPipeline(t)
	ctx := context.Background()
	doc := &store.Document{ID: "doc-1", TenantID: "acme"}

	long := ""
	for i := 0; i < 40; i++ {
		long += "The quick brown fox jumps over the lazy dog near the river bank.\n"
	}
	first, err := p.IngestDocument(ctx, doc, long, chunk.HintFreeform)
	require.NoError(t, err)
	require.Greater(t, first.Chunks, 1)

	second, err := p.IngestDocument(ctx, doc, "short replacement", chunk.HintFreeform)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Chunks)

	chunks, err := corpus.ChunksByTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)

	hits, err := keyword.Search(ctx, "acme", []string{"fox"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDeleteDocument(t *testing.T) {
	p, corpus, keyword := newTestPipeline(t)
	ctx := context.Background()

	doc := &store.Document{ID: "doc-1", TenantID: "acme"}
	_, err := p.IngestDocument(ctx, doc, "content to be removed later", chunk.HintFreeform)
	require.NoError(t, err)

	require.NoError(t, p.DeleteDocument(ctx, "acme", "doc-1"))

	chunks, err := corpus.ChunksByTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	hits, err := keyword.Search(ctx, "acme", []string{"content"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIngestDocument_BatchSplitting(t *testing.T) {
	emb := &fakeEmbedder{dims: 4}
	p, _, _ := newTestPipeline(t, WithEmbedder(emb), WithBatchSize(1))
	ctx := context.Background()

	long := ""
	for i := 0; i < 40; i++ {
		long += "Records and freeform paragraphs both flow through the same pool.\n"
	}
	report, err := p.IngestDocument(ctx, &store.Document{ID: "doc-1", TenantID: "acme"}, long, chunk.HintFreeform)
	require.NoError(t, err)
	require.Greater(t, report.Chunks, 1)
	assert.Equal(t, int64(report.Chunks), emb.calls.Load())
	assert.Equal(t, report.Chunks, report.Embedded)
}
