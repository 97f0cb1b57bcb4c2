// Package store persists the tenant-scoped corpus: documents, chunks,
// chunk embeddings, and per-strategy score statistics. SQLite holds the
// relational data, bleve the keyword index, and an HNSW graph the
// vectors.
package store

import (
	"context"
	"time"
)

// Document is an ingested source, immutable once chunked except for the
// Active flag.
type Document struct {
	ID          string
	TenantID    string
	Name        string
	ContentType string
	Active      bool
	CreatedAt   time.Time
}

// Chunk is one retrievable piece of a document. Index values within a
// document run 0..N-1 without gaps. Embedding may be nil when the
// embedding service was unavailable at ingestion.
type Chunk struct {
	ID         string
	DocumentID string
	TenantID   string
	Index      int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// ScoreStats is the running raw-score distribution for one
// (strategy, tenant) pair. Min and Max only widen over time.
type ScoreStats struct {
	Min   float64
	Max   float64
	Mean  float64
	Std   float64
	Count int64
}

// CorpusStore is the mandatory persistence dependency. A structural
// failure here is the only fatal error in the query path.
type CorpusStore interface {
	SaveDocument(ctx context.Context, doc *Document) error
	Document(ctx context.Context, tenantID, id string) (*Document, error)
	Documents(ctx context.Context, tenantID string) ([]*Document, error)
	SetDocumentActive(ctx context.Context, tenantID, id string, active bool) error
	// DeleteDocument removes a document and cascades to its chunks.
	DeleteDocument(ctx context.Context, tenantID, id string) error

	SaveChunks(ctx context.Context, chunks []*Chunk) error
	Chunk(ctx context.Context, tenantID, id string) (*Chunk, error)
	ChunksByIDs(ctx context.Context, tenantID string, ids []string) ([]*Chunk, error)
	// ChunksByTenant returns chunks of active documents only, ordered by
	// document and index.
	ChunksByTenant(ctx context.Context, tenantID string) ([]*Chunk, error)
	// ChunksWithEmbeddings returns active chunks that carry a vector.
	ChunksWithEmbeddings(ctx context.Context, tenantID string) ([]*Chunk, error)
	// SearchContains returns active chunks whose content contains needle,
	// case-insensitively, shortest content first.
	SearchContains(ctx context.Context, tenantID, needle string, limit int) ([]*Chunk, error)
	// DocumentChunkCounts maps document ID to its total chunk count.
	DocumentChunkCounts(ctx context.Context, tenantID string) (map[string]int, error)

	Close() error
}

// StatsStore persists ScoreStats across process lifetimes.
type StatsStore interface {
	// ScoreStats returns nil when no stats exist for the key yet.
	ScoreStats(ctx context.Context, strategy, tenantID string) (*ScoreStats, error)
	SaveScoreStats(ctx context.Context, strategy, tenantID string, stats *ScoreStats) error
}

// KeywordHit is one keyword-index match.
type KeywordHit struct {
	ChunkID      string
	Score        float64
	MatchedTerms []string
}

// VectorHit is one vector-index match.
type VectorHit struct {
	ChunkID string
	Score   float64
}
