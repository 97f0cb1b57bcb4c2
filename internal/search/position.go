package search

import "sort"

// PositionCorrector counteracts the strategies' bias toward a
// document's opening content and enforces per-document diversity in
// the final pool.
type PositionCorrector struct {
	maxBonus       float64
	largeDocBoost  float64
	largeDocChunks int
	perDocCap      int
}

// NewPositionCorrector creates a corrector. Zero values fall back to
// the standard curve: 0.15 cap, 1.5x boost past 10 chunks, 3 per
// document.
func NewPositionCorrector(maxBonus, largeDocBoost float64, largeDocChunks, perDocCap int) *PositionCorrector {
	if maxBonus <= 0 {
		maxBonus = 0.15
	}
	if largeDocBoost <= 0 {
		largeDocBoost = 1.5
	}
	if largeDocChunks <= 0 {
		largeDocChunks = 10
	}
	if perDocCap <= 0 {
		perDocCap = 3
	}
	return &PositionCorrector{
		maxBonus:       maxBonus,
		largeDocBoost:  largeDocBoost,
		largeDocChunks: largeDocChunks,
		perDocCap:      perDocCap,
	}
}

// ApplyBonus adds the position bonus to each candidate in place and
// records its document coverage. chunkCounts maps document ID to its
// total chunk count.
func (p *PositionCorrector) ApplyBonus(candidates []*Candidate, chunkCounts map[string]int) {
	for _, c := range candidates {
		total := chunkCounts[c.DocumentID]
		denominator := total - 1
		if denominator < 1 {
			denominator = 1
		}
		coverage := float64(c.ChunkIndex) / float64(denominator)
		c.Coverage = coverage

		if coverage <= 0.5 {
			continue
		}
		// Zero at coverage 0.5, maxBonus at 1.0.
		bonus := p.maxBonus * (coverage - 0.5) * 2
		if total > p.largeDocChunks {
			bonus *= p.largeDocBoost
		}
		c.Score += bonus
	}
}

// Diversify selects up to limit candidates: every contributing document
// gets at least one slot while budget allows, the rest fill by score,
// and no document exceeds the per-document cap.
func (p *PositionCorrector) Diversify(candidates []*Candidate, limit int) []*Candidate {
	if limit <= 0 || len(candidates) == 0 {
		return nil
	}

	sorted := make([]*Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	picked := make([]*Candidate, 0, limit)
	pickedSet := make(map[*Candidate]struct{})
	perDoc := make(map[string]int)

	// First pass: best candidate of each document.
	for _, c := range sorted {
		if len(picked) >= limit {
			break
		}
		if perDoc[c.DocumentID] > 0 {
			continue
		}
		picked = append(picked, c)
		pickedSet[c] = struct{}{}
		perDoc[c.DocumentID]++
	}

	// Second pass: fill by score under the per-document cap.
	for _, c := range sorted {
		if len(picked) >= limit {
			break
		}
		if _, ok := pickedSet[c]; ok {
			continue
		}
		if perDoc[c.DocumentID] >= p.perDocCap {
			continue
		}
		picked = append(picked, c)
		pickedSet[c] = struct{}{}
		perDoc[c.DocumentID]++
	}

	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].Score > picked[j].Score
	})
	return picked
}
