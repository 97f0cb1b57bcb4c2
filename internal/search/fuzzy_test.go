package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotaeru-ai/kensaku/internal/store"
)

func newSeededStore(t *testing.T, tenant string, docs map[string][]string) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	for docID, contents := range docs {
		require.NoError(t, s.SaveDocument(ctx, &store.Document{
			ID: docID, TenantID: tenant, Name: docID,
			ContentType: "text", Active: true, CreatedAt: time.Now(),
		}))
		chunks := make([]*store.Chunk, len(contents))
		for i, content := range contents {
			chunks[i] = &store.Chunk{
				ID:         docID + "-" + string(rune('0'+i)),
				DocumentID: docID, TenantID: tenant,
				Index: i, Content: content, CreatedAt: time.Now(),
			}
		}
		require.NoError(t, s.SaveChunks(ctx, chunks))
	}
	return s
}

func TestTrigramSimilarity(t *testing.T) {
	a := trigramSet("wireless mouse")
	assert.InDelta(t, 1.0, trigramSimilarity(a, trigramSet("wireless mouse")), 1e-9)
	assert.Equal(t, 0.0, trigramSimilarity(a, trigramSet("")))

	partial := trigramSimilarity(a, trigramSet("wireless house"))
	assert.Greater(t, partial, 0.0)
	assert.Less(t, partial, 1.0)
}

func TestFuzzyStrategy_WidthMismatchStillMatches(t *testing.T) {
	s := newSeededStore(t, "t", map[string][]string{
		"doc1": {"マウス一覧", "全く関係のない別の話題の文章"},
	})
	fuzzy := NewFuzzyStrategy(s, 0.3, 0.002)

	// Full-width query against half-width-normalized content.
	got, err := fuzzy.Search(context.Background(), Input{
		TenantID: "t",
		Query:    "ﾏｳｽ一覧",
		Variants: []string{"ﾏｳｽ一覧"},
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc1-0", got[0].ChunkID)
	// Exact normalized equality gets the 0.4 bonus on top of full overlap.
	assert.Greater(t, got[0].Score, 1.0)
}

func TestFuzzyStrategy_KanaScriptMismatchStillMatches(t *testing.T) {
	s := newSeededStore(t, "t", map[string][]string{
		"doc1": {"まうす一覧", "全く関係のない別の話題の文章"},
	})
	fuzzy := NewFuzzyStrategy(s, 0.3, 0.002)

	// Katakana query against hiragana content.
	got, err := fuzzy.Search(context.Background(), Input{
		TenantID: "t",
		Query:    "マウス一覧",
		Variants: []string{"マウス一覧"},
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc1-0", got[0].ChunkID)
	assert.Greater(t, got[0].Score, 1.0)
}

func TestFuzzyStrategy_ThresholdDropsWeakMatches(t *testing.T) {
	s := newSeededStore(t, "t", map[string][]string{
		"doc1": {"completely unrelated text about logistics"},
	})
	fuzzy := NewFuzzyStrategy(s, 0.3, 0.002)

	got, err := fuzzy.Search(context.Background(), Input{
		TenantID: "t", Query: "マウス", Variants: []string{"マウス"}, Limit: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFuzzyStrategy_LengthPenaltyOrdersResults(t *testing.T) {
	long := "wireless mouse " // repeated below to build a long chunk
	s := newSeededStore(t, "t", map[string][]string{
		"doc1": {"wireless mouse", long + long + long + long + "and extensive additional catalog text"},
	})
	fuzzy := NewFuzzyStrategy(s, 0.1, 0.002)

	got, err := fuzzy.Search(context.Background(), Input{
		TenantID: "t", Query: "wireless mouse", Variants: []string{"wireless mouse"}, Limit: 10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "doc1-0", got[0].ChunkID)
}
