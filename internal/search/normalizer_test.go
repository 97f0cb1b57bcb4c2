package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotaeru-ai/kensaku/internal/store"
)

func newTestNormalizer(t *testing.T) (*Normalizer, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewNormalizer(s, nil), s
}

func TestNormalize_NoStatsDefaultsToHalf(t *testing.T) {
	n, _ := newTestNormalizer(t)

	results := map[string][]*Candidate{
		StrategyFuzzy: {cand("c1", "d", 0, 0.73)},
	}
	n.Normalize(context.Background(), "t", results)
	assert.Equal(t, 0.5, results[StrategyFuzzy][0].Score)
}

func TestNormalize_MinMaxMapping(t *testing.T) {
	n, _ := newTestNormalizer(t)
	ctx := context.Background()

	// Observe a batch establishing the range 0.2..0.8.
	n.Observe(ctx, "t", map[string][]float64{
		StrategyFuzzy: {0.2, 0.5, 0.8},
	})

	results := map[string][]*Candidate{
		StrategyFuzzy: {
			cand("lo", "d", 0, 0.2),
			cand("mid", "d", 1, 0.5),
			cand("hi", "d", 2, 0.8),
			cand("above", "d", 3, 0.9),
		},
	}
	n.Normalize(ctx, "t", results)

	assert.InDelta(t, 0.0, results[StrategyFuzzy][0].Score, 1e-9)
	assert.InDelta(t, 0.5, results[StrategyFuzzy][1].Score, 1e-9)
	assert.InDelta(t, 1.0, results[StrategyFuzzy][2].Score, 1e-9)
	// Out-of-range scores clamp.
	assert.InDelta(t, 1.0, results[StrategyFuzzy][3].Score, 1e-9)
}

func TestObserve_MinMaxOnlyWiden(t *testing.T) {
	n, s := newTestNormalizer(t)
	ctx := context.Background()

	n.Observe(ctx, "t", map[string][]float64{StrategyFuzzy: {0.2, 0.8}})
	n.Observe(ctx, "t", map[string][]float64{StrategyFuzzy: {0.4, 0.6}})

	stats, err := s.ScoreStats(ctx, StrategyFuzzy, "t")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 0.2, stats.Min)
	assert.Equal(t, 0.8, stats.Max)
	assert.Equal(t, int64(4), stats.Count)

	n.Observe(ctx, "t", map[string][]float64{StrategyFuzzy: {0.1, 0.9}})
	stats, err = s.ScoreStats(ctx, StrategyFuzzy, "t")
	require.NoError(t, err)
	assert.Equal(t, 0.1, stats.Min)
	assert.Equal(t, 0.9, stats.Max)
}

func TestObserve_CountWeightedMean(t *testing.T) {
	n, s := newTestNormalizer(t)
	ctx := context.Background()

	n.Observe(ctx, "t", map[string][]float64{StrategyExact: {1.0, 1.0, 1.0}})
	n.Observe(ctx, "t", map[string][]float64{StrategyExact: {0.0}})

	stats, err := s.ScoreStats(ctx, StrategyExact, "t")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, stats.Mean, 1e-9)
	assert.Equal(t, int64(4), stats.Count)
}

func TestNormalize_PerTenantIsolation(t *testing.T) {
	n, _ := newTestNormalizer(t)
	ctx := context.Background()

	n.Observe(ctx, "tenant-a", map[string][]float64{StrategyFuzzy: {0.0, 1.0}})

	results := map[string][]*Candidate{StrategyFuzzy: {cand("c", "d", 0, 1.0)}}
	n.Normalize(ctx, "tenant-b", results)
	// tenant-b has no stats, so the default applies.
	assert.Equal(t, 0.5, results[StrategyFuzzy][0].Score)
}

func TestNormalize_DegenerateRange(t *testing.T) {
	n, _ := newTestNormalizer(t)
	ctx := context.Background()

	n.Observe(ctx, "t", map[string][]float64{StrategyExact: {1.0, 1.0}})

	results := map[string][]*Candidate{StrategyExact: {cand("c", "d", 0, 1.0)}}
	n.Normalize(ctx, "t", results)
	assert.Equal(t, 0.5, results[StrategyExact][0].Score)
}
