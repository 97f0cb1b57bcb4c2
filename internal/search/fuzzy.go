package search

import (
	"context"
	"sort"
	"strings"

	"github.com/kotaeru-ai/kensaku/internal/store"
)

// Fuzzy scoring bonuses.
const (
	fuzzyExactBonus  = 0.4
	fuzzyPrefixBonus = 0.2
)

// FuzzyStrategy scores chunks by trigram overlap against the normalized
// query, penalizing length differences and rewarding exact or prefix
// equality. Catches half-width/full-width and minor surface mismatches
// that exact match misses.
type FuzzyStrategy struct {
	store         store.CorpusStore
	threshold     float64
	lengthPenalty float64
}

var _ Strategy = (*FuzzyStrategy)(nil)

// NewFuzzyStrategy creates the fuzzy-similarity strategy.
func NewFuzzyStrategy(s store.CorpusStore, threshold, lengthPenalty float64) *FuzzyStrategy {
	return &FuzzyStrategy{store: s, threshold: threshold, lengthPenalty: lengthPenalty}
}

func (s *FuzzyStrategy) Name() string { return StrategyFuzzy }

// Search scores every active chunk against each variant and keeps the
// best variant's score per chunk.
func (s *FuzzyStrategy) Search(ctx context.Context, in Input) ([]*Candidate, error) {
	chunks, err := s.store.ChunksByTenant(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}

	normVariants := make([]string, len(in.Variants))
	variantGrams := make([]map[string]struct{}, len(in.Variants))
	for i, v := range in.Variants {
		normVariants[i] = normalizeText(v)
		variantGrams[i] = trigramSet(normVariants[i])
	}

	var candidates []*Candidate
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		normContent := normalizeText(c.Content)
		contentGrams := trigramSet(normContent)

		best := 0.0
		bestVariant := ""
		for i, nv := range normVariants {
			if nv == "" {
				continue
			}
			score := trigramSimilarity(variantGrams[i], contentGrams)
			score -= s.lengthPenalty * float64(absInt(len([]rune(normContent))-len([]rune(nv))))
			switch {
			case normContent == nv:
				score += fuzzyExactBonus
			case strings.HasPrefix(normContent, nv):
				score += fuzzyPrefixBonus
			}
			if score > best {
				best = score
				bestVariant = in.Variants[i]
			}
		}

		if best < s.threshold {
			continue
		}
		candidates = append(candidates, &Candidate{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Score:      best,
			Strategy:   StrategyFuzzy,
			Metadata:   map[string]string{"matched": bestVariant},
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

// trigramSet builds the rune-trigram set of s. Strings shorter than
// three runes contribute themselves as a single gram.
func trigramSet(s string) map[string]struct{} {
	runes := []rune(s)
	grams := make(map[string]struct{})
	if len(runes) == 0 {
		return grams
	}
	if len(runes) < 3 {
		grams[string(runes)] = struct{}{}
		return grams
	}
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = struct{}{}
	}
	return grams
}

// trigramSimilarity is Jaccard overlap of two trigram sets.
func trigramSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	shared := 0
	for g := range small {
		if _, ok := large[g]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
