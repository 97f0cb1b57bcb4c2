package search

import (
	"sort"
	"strings"
)

// Merger deduplicates candidates across strategies by chunk identity,
// keeping the highest corrected score and the union of contributing
// strategies, then adds a word-overlap bonus against the query.
type Merger struct {
	jaccardWeight float64
}

// NewMerger creates a merger. jaccardWeight scales the word-overlap
// bonus; 0.1 is the standard setting.
func NewMerger(jaccardWeight float64) *Merger {
	return &Merger{jaccardWeight: jaccardWeight}
}

// Merge combines per-strategy candidate lists. The result is sorted by
// score and independent of strategy arrival order.
func (m *Merger) Merge(query string, results map[string][]*Candidate) []*Candidate {
	queryWords := wordSet(query)

	byChunk := make(map[string]*Candidate)
	for _, candidates := range results {
		for _, c := range candidates {
			existing, ok := byChunk[c.ChunkID]
			if !ok {
				merged := *c
				merged.Strategies = []string{c.Strategy}
				byChunk[c.ChunkID] = &merged
				continue
			}
			if c.Score > existing.Score {
				existing.Score = c.Score
				existing.Coverage = c.Coverage
			}
			existing.Strategies = appendUnique(existing.Strategies, c.Strategy)
		}
	}

	merged := make([]*Candidate, 0, len(byChunk))
	for _, c := range byChunk {
		if m.jaccardWeight > 0 {
			c.Score += m.jaccardWeight * jaccardSimilarity(queryWords, wordSet(c.Content))
		}
		sort.Strings(c.Strategies)
		merged = append(merged, c)
	}

	// Chunk ID tie-break keeps the order deterministic regardless of
	// map iteration.
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ChunkID < merged[j].ChunkID
	})
	return merged
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// wordSet tokenizes text into lowercased alphanumeric and CJK runs.
func wordSet(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, m := range alnumRunRe.FindAllString(text, -1) {
		words[strings.ToLower(m)] = struct{}{}
	}
	for _, m := range cjkRunRe.FindAllString(text, -1) {
		words[m] = struct{}{}
	}
	return words
}

func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	shared := 0
	for w := range small {
		if _, ok := large[w]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}
