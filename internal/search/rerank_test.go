package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	output string
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	return f.output, f.err
}
func (f *fakeGenerator) Available(_ context.Context) bool { return f.err == nil }
func (f *fakeGenerator) Close() error                     { return nil }

func rerankPool() []*Candidate {
	return []*Candidate{
		cand("c0", "docA", 0, 0.9),
		cand("c1", "docB", 0, 0.8),
		cand("c2", "docC", 0, 0.7),
	}
}

func TestRerank_ReordersAndBlends(t *testing.T) {
	r := NewLLMReranker(&fakeGenerator{output: "[2, 0, 1]"}, 20, 0.3, nil)

	got, err := r.Rerank(context.Background(), "query", rerankPool())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c2", got[0].ChunkID)
	assert.Equal(t, "c0", got[1].ChunkID)
	assert.Equal(t, "c1", got[2].ChunkID)

	// Blend: 0.3 * rank + 0.7 * prior. c2 at rank 0 of 3: 0.3*1.0 + 0.7*0.7.
	assert.InDelta(t, 0.79, got[0].Score, 1e-9)
}

func TestRerank_MalformedOutputKeepsOrder(t *testing.T) {
	for _, output := range []string{
		"sorry, I cannot rank these",
		"[0, 0, 1]",
		"[5, 1, 0]",
		"[]",
	} {
		r := NewLLMReranker(&fakeGenerator{output: output}, 20, 0.3, nil)
		pool := rerankPool()
		got, err := r.Rerank(context.Background(), "query", pool)
		require.Error(t, err, "output %q", output)
		assert.True(t, errors.Is(err, ErrMalformedRerank))
		assert.Equal(t, pool, got, "order must be unchanged for %q", output)
	}
}

func TestRerank_GeneratorErrorKeepsOrder(t *testing.T) {
	r := NewLLMReranker(&fakeGenerator{err: errors.New("down")}, 20, 0.3, nil)
	pool := rerankPool()
	got, err := r.Rerank(context.Background(), "query", pool)
	require.Error(t, err)
	assert.Equal(t, pool, got)
}

func TestRerank_PartialIndexListCompletes(t *testing.T) {
	// Only one index returned; the rest follow in input order.
	r := NewLLMReranker(&fakeGenerator{output: "[1]"}, 20, 0.3, nil)
	got, err := r.Rerank(context.Background(), "query", rerankPool())
	require.NoError(t, err)
	assert.Equal(t, "c1", got[0].ChunkID)
	assert.Equal(t, "c0", got[1].ChunkID)
	assert.Equal(t, "c2", got[2].ChunkID)
}

func TestRerank_SingleCandidatePassthrough(t *testing.T) {
	r := NewLLMReranker(&fakeGenerator{output: "[0]"}, 20, 0.3, nil)
	pool := []*Candidate{cand("only", "doc", 0, 0.5)}
	got, err := r.Rerank(context.Background(), "query", pool)
	require.NoError(t, err)
	assert.Equal(t, pool, got)
}
