package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCache_RoundTrip(t *testing.T) {
	c := NewResultCache(16, time.Minute)
	key := c.Key("query", "tenant", []string{StrategyExact, StrategyFuzzy})

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, []*Result{{ChunkID: "c1", Score: 0.9, Strategies: []string{StrategyExact}}})
	got, ok := c.Get(key)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ChunkID)
}

func TestResultCache_KeyComponents(t *testing.T) {
	c := NewResultCache(16, time.Minute)
	base := c.Key("query", "tenant", []string{StrategyExact, StrategyFuzzy})

	// Strategy order is irrelevant.
	assert.Equal(t, base, c.Key("query", "tenant", []string{StrategyFuzzy, StrategyExact}))

	assert.NotEqual(t, base, c.Key("other query", "tenant", []string{StrategyExact, StrategyFuzzy}))
	assert.NotEqual(t, base, c.Key("query", "other-tenant", []string{StrategyExact, StrategyFuzzy}))
	assert.NotEqual(t, base, c.Key("query", "tenant", []string{StrategyExact}))
}

func TestResultCache_CopiesAreIndependent(t *testing.T) {
	c := NewResultCache(16, time.Minute)
	key := c.Key("q", "t", []string{StrategyExact})
	c.Put(key, []*Result{{ChunkID: "c1", Score: 0.9, Strategies: []string{StrategyExact}}})

	first, ok := c.Get(key)
	require.True(t, ok)
	first[0].Score = 0.0
	first[0].Strategies[0] = "mutated"

	second, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, 0.9, second[0].Score)
	assert.Equal(t, StrategyExact, second[0].Strategies[0])
}

func TestResultCache_TTLExpiry(t *testing.T) {
	c := NewResultCache(16, 20*time.Millisecond)
	key := c.Key("q", "t", []string{StrategyExact})
	c.Put(key, []*Result{{ChunkID: "c1"}})

	_, ok := c.Get(key)
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	_, ok = c.Get(key)
	assert.False(t, ok)
}
