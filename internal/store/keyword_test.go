package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeywordIndex(t *testing.T) *KeywordIndex {
	t.Helper()
	idx, err := NewKeywordIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func kwChunk(id, tenant, content string) *Chunk {
	return &Chunk{
		ID: id, DocumentID: "doc", TenantID: tenant,
		Content: content, CreatedAt: time.Now(),
	}
}

func TestKeywordIndex_SearchScopedByTenant(t *testing.T) {
	idx := newTestKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Chunk{
		kwChunk("c1", "tenant-a", "ワイヤレスマウスの商品説明"),
		kwChunk("c2", "tenant-b", "マウスの商品説明"),
		kwChunk("c3", "tenant-a", "キーボードの商品説明"),
	}))

	hits, err := idx.Search(ctx, "tenant-a", []string{"マウス"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestKeywordIndex_MultipleTermsAnyMatch(t *testing.T) {
	idx := newTestKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Chunk{
		kwChunk("c1", "t", "product code ABC100 in stock"),
		kwChunk("c2", "t", "unrelated paragraph about shipping"),
	}))

	hits, err := idx.Search(ctx, "t", []string{"abc100", "stock"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
	assert.NotEmpty(t, hits[0].MatchedTerms)
}

func TestKeywordIndex_Delete(t *testing.T) {
	idx := newTestKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Chunk{kwChunk("c1", "t", "searchable text")}))
	require.NoError(t, idx.Delete(ctx, []string{"c1"}))

	hits, err := idx.Search(ctx, "t", []string{"searchable"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestKeywordIndex_EmptyTerms(t *testing.T) {
	idx := newTestKeywordIndex(t)
	hits, err := idx.Search(context.Background(), "t", nil, 10)
	require.NoError(t, err)
	assert.Nil(t, hits)
}
