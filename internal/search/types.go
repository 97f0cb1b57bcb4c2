// Package search implements the query pipeline: variant expansion, four
// concurrent retrieval strategies, score normalization, position-bias
// correction, document diversity, merging, optional rerank, and a
// read-through result cache.
package search

import (
	"context"
	"time"
)

// Strategy names. These key ScoreStats persistence and the cache's
// strategy-set hash, so they are stable identifiers.
const (
	StrategyExact   = "exact"
	StrategyFuzzy   = "fuzzy"
	StrategyKeyword = "keyword"
	StrategyVector  = "vector"
)

// Request is one search invocation.
type Request struct {
	Query    string
	TenantID string
	Limit    int
}

// Candidate is a raw strategy hit before normalization and merging.
// Query-local, never persisted.
type Candidate struct {
	ChunkID    string
	DocumentID string
	ChunkIndex int
	Content    string
	Score      float64
	Strategy   string
	// Strategies is the contributing set after merging; before the
	// merge it holds only Strategy.
	Strategies []string
	// Coverage is filled by the position corrector.
	Coverage float64
	Metadata map[string]string
}

// Result is one final ranked item.
type Result struct {
	ChunkID    string   `json:"chunk_id"`
	DocumentID string   `json:"document_id"`
	ChunkIndex int      `json:"chunk_index"`
	Content    string   `json:"content"`
	Score      float64  `json:"score"`
	Strategies []string `json:"strategies"`
	// Coverage is the chunk's relative position in its document, 0..1.
	Coverage float64 `json:"coverage"`
}

// Diagnostics reports which strategies actually contributed, so callers
// can tell degraded answers from empty corpora.
type Diagnostics struct {
	Variants           []string       `json:"variants"`
	StrategiesRun      []string       `json:"strategies_run"`
	StrategiesFailed   []string       `json:"strategies_failed,omitempty"`
	CandidatesPerStage map[string]int `json:"candidates_per_stage,omitempty"`
	CacheHit           bool           `json:"cache_hit"`
	Reranked           bool           `json:"reranked"`
	Elapsed            time.Duration  `json:"elapsed"`
}

// Response is the pipeline output: always a list, possibly empty, never
// a hard failure for a single degraded dependency.
type Response struct {
	Results     []*Result   `json:"results"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Input carries everything a strategy needs for one query execution.
type Input struct {
	TenantID string
	Query    string
	Variants []string
	Limit    int
}

// Strategy is one retrieval backend. Implementations return raw,
// un-normalized scores; errors and timeouts cost only that strategy's
// contribution.
type Strategy interface {
	Name() string
	Search(ctx context.Context, in Input) ([]*Candidate, error)
}
