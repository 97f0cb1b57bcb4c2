package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kotaeru-ai/kensaku/internal/genai"
)

// Rerank defaults.
const (
	DefaultRerankTopK   = 20
	DefaultRerankWeight = 0.3
	rerankSnippetLen    = 200
)

// Reranker reorders a candidate prefix. Implementations must be
// best-effort: any failure leaves the input order intact.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []*Candidate) ([]*Candidate, error)
}

// LLMReranker asks a generative model for a relevance-ordered index
// list over the top candidates and blends the derived rank score with
// the prior score.
type LLMReranker struct {
	llm    genai.Generator
	topK   int
	weight float64
	logger *slog.Logger
}

var _ Reranker = (*LLMReranker)(nil)

// NewLLMReranker creates a reranker. weight is the blend factor for the
// rank-derived score; the prior keeps the remainder.
func NewLLMReranker(llm genai.Generator, topK int, weight float64, logger *slog.Logger) *LLMReranker {
	if topK <= 0 {
		topK = DefaultRerankTopK
	}
	if weight <= 0 || weight > 1 {
		weight = DefaultRerankWeight
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMReranker{llm: llm, topK: topK, weight: weight, logger: logger}
}

const rerankPromptTemplate = `Rank the passages below by relevance to the query.

Query: %s

%s
Output ONLY a JSON array of passage numbers, most relevant first, e.g. [2, 0, 1]. No explanation.`

// Rerank returns candidates with the top prefix reordered. Malformed
// model output returns ErrMalformedRerank with the input unchanged.
func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []*Candidate) ([]*Candidate, error) {
	if len(candidates) < 2 {
		return candidates, nil
	}

	topK := r.topK
	if topK > len(candidates) {
		topK = len(candidates)
	}
	head := candidates[:topK]

	var sb strings.Builder
	for i, c := range head {
		snippet := c.Content
		if runes := []rune(snippet); len(runes) > rerankSnippetLen {
			snippet = string(runes[:rerankSnippetLen])
		}
		fmt.Fprintf(&sb, "[%d] %s\n", i, snippet)
	}

	out, err := r.llm.Generate(ctx, fmt.Sprintf(rerankPromptTemplate, query, sb.String()))
	if err != nil {
		return candidates, fmt.Errorf("rerank generation: %w", err)
	}

	order, err := parseIndexList(out, topK)
	if err != nil {
		return candidates, fmt.Errorf("%w: %v", ErrMalformedRerank, err)
	}

	// Blend: rank-derived score carries r.weight, the prior the rest.
	reordered := make([]*Candidate, 0, len(candidates))
	for pos, idx := range order {
		c := head[idx]
		rankScore := float64(topK-pos) / float64(topK)
		c.Score = r.weight*rankScore + (1-r.weight)*c.Score
		reordered = append(reordered, c)
	}
	reordered = append(reordered, candidates[topK:]...)
	return reordered, nil
}

// parseIndexList extracts a permutation-compatible index list from
// model output. Missing indices are appended in input order; out-of-
// range or duplicate entries invalidate the output.
func parseIndexList(out string, n int) ([]int, error) {
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in output")
	}

	var indices []int
	if err := json.Unmarshal([]byte(out[start:end+1]), &indices); err != nil {
		return nil, fmt.Errorf("parse index array: %w", err)
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("empty index array")
	}

	seen := make(map[int]struct{}, n)
	order := make([]int, 0, n)
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("index %d out of range 0..%d", idx, n-1)
		}
		if _, ok := seen[idx]; ok {
			return nil, fmt.Errorf("duplicate index %d", idx)
		}
		seen[idx] = struct{}{}
		order = append(order, idx)
	}
	for i := 0; i < n; i++ {
		if _, ok := seen[i]; !ok {
			order = append(order, i)
		}
	}
	return order, nil
}
