package search

import (
	"context"
	"sort"
	"strings"

	"github.com/kotaeru-ai/kensaku/internal/store"
	"github.com/kotaeru-ai/kensaku/internal/variant"
)

// KeywordStrategy retrieves candidates from the keyword index and
// re-scores them by a weighted keyword sum. Identifier-style keywords
// (product codes) dominate generic lexical keywords.
type KeywordStrategy struct {
	store            store.CorpusStore
	index            *store.KeywordIndex
	threshold        float64
	identifierWeight float64
}

var _ Strategy = (*KeywordStrategy)(nil)

// NewKeywordStrategy creates the keyword-score strategy.
func NewKeywordStrategy(s store.CorpusStore, index *store.KeywordIndex, threshold, identifierWeight float64) *KeywordStrategy {
	if identifierWeight <= 0 {
		identifierWeight = 3.0
	}
	return &KeywordStrategy{
		store:            s,
		index:            index,
		threshold:        threshold,
		identifierWeight: identifierWeight,
	}
}

func (s *KeywordStrategy) Name() string { return StrategyKeyword }

// Search extracts keywords from the query and its variants, fetches
// index candidates, and scores each by matched-keyword weight over the
// theoretical maximum.
func (s *KeywordStrategy) Search(ctx context.Context, in Input) ([]*Candidate, error) {
	keywords := extractKeywords(in.Variants...)
	if len(keywords) == 0 {
		return nil, nil
	}

	maxWeight := 0.0
	terms := make([]string, len(keywords))
	for i, kw := range keywords {
		terms[i] = kw.Text
		maxWeight += s.weight(kw)
	}

	// Over-fetch so re-scoring can reorder the index's ranking.
	hits, err := s.index.Search(ctx, in.TenantID, terms, in.Limit*4)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	chunks, err := s.store.ChunksByIDs(ctx, in.TenantID, ids)
	if err != nil {
		return nil, err
	}

	var candidates []*Candidate
	for _, c := range chunks {
		// Same fold extractKeywords applies, so CJK terms match either
		// width form in content.
		normContent := strings.ToLower(variant.FoldWidth(c.Content))

		matched := 0.0
		var matchedTerms []string
		for _, kw := range keywords {
			if strings.Contains(normContent, kw.Text) {
				matched += s.weight(kw)
				matchedTerms = append(matchedTerms, kw.Text)
			}
		}

		score := matched / maxWeight
		if score < s.threshold {
			continue
		}
		candidates = append(candidates, &Candidate{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Score:      score,
			Strategy:   StrategyKeyword,
			Metadata:   map[string]string{"matched": strings.Join(matchedTerms, " ")},
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > in.Limit {
		candidates = candidates[:in.Limit]
	}
	return candidates, nil
}

func (s *KeywordStrategy) weight(kw Keyword) float64 {
	if kw.Identifier {
		return s.identifierWeight
	}
	return 1.0
}
