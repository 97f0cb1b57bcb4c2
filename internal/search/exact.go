package search

import (
	"context"

	"github.com/kotaeru-ai/kensaku/internal/store"
)

// ExactStrategy matches the full query or variant text inside chunk
// content, case-insensitively. Every hit scores 1.0; the store orders
// ties by shorter content first.
type ExactStrategy struct {
	store store.CorpusStore
}

var _ Strategy = (*ExactStrategy)(nil)

// NewExactStrategy creates the exact-match strategy.
func NewExactStrategy(s store.CorpusStore) *ExactStrategy {
	return &ExactStrategy{store: s}
}

func (s *ExactStrategy) Name() string { return StrategyExact }

// Search runs the containment test for each variant, deduplicating by
// chunk while preserving first-hit order.
func (s *ExactStrategy) Search(ctx context.Context, in Input) ([]*Candidate, error) {
	seen := make(map[string]struct{})
	var candidates []*Candidate

	for _, text := range in.Variants {
		chunks, err := s.store.SearchContains(ctx, in.TenantID, text, in.Limit)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			candidates = append(candidates, &Candidate{
				ChunkID:    c.ID,
				DocumentID: c.DocumentID,
				ChunkIndex: c.Index,
				Content:    c.Content,
				Score:      1.0,
				Strategy:   StrategyExact,
				Metadata:   map[string]string{"matched": text},
			})
			if len(candidates) >= in.Limit {
				return candidates, nil
			}
		}
	}
	return candidates, nil
}
