package search

import (
	"context"
	"math"
	"sort"

	"github.com/kotaeru-ai/kensaku/internal/embed"
	"github.com/kotaeru-ai/kensaku/internal/store"
)

// VectorStrategy embeds the query and ranks chunks by cosine
// similarity. The HNSW index serves the computation when present;
// otherwise embeddings are fetched and compared in-process.
type VectorStrategy struct {
	store     store.CorpusStore
	index     *store.VectorIndex
	embedder  embed.Embedder
	threshold float64
}

var _ Strategy = (*VectorStrategy)(nil)

// NewVectorStrategy creates the vector-similarity strategy. index may
// be nil to force the in-process path. Hits scoring below threshold
// (cosine similarity mapped to 0..1) are dropped.
func NewVectorStrategy(s store.CorpusStore, index *store.VectorIndex, embedder embed.Embedder, threshold float64) *VectorStrategy {
	return &VectorStrategy{store: s, index: index, embedder: embedder, threshold: threshold}
}

func (s *VectorStrategy) Name() string { return StrategyVector }

// Search embeds the original query and returns the nearest chunks. An
// unavailable embedding service fails only this strategy.
func (s *VectorStrategy) Search(ctx context.Context, in Input) ([]*Candidate, error) {
	queryVec, err := s.embedder.Embed(ctx, in.Query)
	if err != nil {
		return nil, err
	}

	if s.index != nil && s.index.Count() > 0 {
		return s.searchIndex(ctx, in, queryVec)
	}
	return s.searchBruteForce(ctx, in, queryVec)
}

func (s *VectorStrategy) searchIndex(ctx context.Context, in Input, queryVec []float32) ([]*Candidate, error) {
	hits, err := s.index.Search(ctx, in.TenantID, queryVec, in.Limit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(hits))
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		if h.Score < s.threshold {
			continue
		}
		ids = append(ids, h.ChunkID)
		scores[h.ChunkID] = h.Score
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// The ID fetch also drops hits whose document went inactive after
	// indexing.
	chunks, err := s.store.ChunksByIDs(ctx, in.TenantID, ids)
	if err != nil {
		return nil, err
	}

	candidates := make([]*Candidate, 0, len(chunks))
	for _, c := range chunks {
		candidates = append(candidates, s.candidate(c, scores[c.ID]))
	}
	return candidates, nil
}

func (s *VectorStrategy) searchBruteForce(ctx context.Context, in Input, queryVec []float32) ([]*Candidate, error) {
	chunks, err := s.store.ChunksWithEmbeddings(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}

	var candidates []*Candidate
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sim := cosineSimilarity(queryVec, c.Embedding)
		if math.IsNaN(sim) {
			continue
		}
		// Map -1..1 to 0..1 to match the index scoring.
		score := (sim + 1) / 2
		if score < s.threshold {
			continue
		}
		candidates = append(candidates, s.candidate(c, score))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > in.Limit {
		candidates = candidates[:in.Limit]
	}
	return candidates, nil
}

func (s *VectorStrategy) candidate(c *store.Chunk, score float64) *Candidate {
	return &Candidate{
		ChunkID:    c.ID,
		DocumentID: c.DocumentID,
		ChunkIndex: c.Index,
		Content:    c.Content,
		Score:      score,
		Strategy:   StrategyVector,
	}
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.NaN()
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return math.NaN()
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
