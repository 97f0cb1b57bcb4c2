// Package ingest turns raw documents into chunked, embedded, indexed
// corpus entries. Chunking and indexing are mandatory; embedding is
// best-effort and a failed embedding service leaves chunks stored
// without vectors.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kotaeru-ai/kensaku/internal/chunk"
	"github.com/kotaeru-ai/kensaku/internal/embed"
	kerrors "github.com/kotaeru-ai/kensaku/internal/errors"
	"github.com/kotaeru-ai/kensaku/internal/store"
)

// Pipeline ingests documents into the corpus store and indexes.
type Pipeline struct {
	corpus    store.CorpusStore
	keyword   *store.KeywordIndex
	vector    *store.VectorIndex
	embedder  embed.Embedder
	chunker   *chunk.Chunker
	pool      *ants.Pool
	batchSize int
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the embedding worker pool size. Default is
// runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many chunks go into one embedding request.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size > 0 {
			p.batchSize = size
		}
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// WithEmbedder sets the embedding service. A nil embedder stores
// chunks without vectors.
func WithEmbedder(e embed.Embedder) Option {
	return func(p *Pipeline) error {
		p.embedder = e
		return nil
	}
}

// WithVectorIndex sets the vector index to populate at ingestion.
func WithVectorIndex(v *store.VectorIndex) Option {
	return func(p *Pipeline) error {
		p.vector = v
		return nil
	}
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(corpus store.CorpusStore, keyword *store.KeywordIndex, chunker *chunk.Chunker, opts ...Option) (*Pipeline, error) {
	defaultSize := runtime.NumCPU() / 2
	if defaultSize < 1 {
		defaultSize = 1
	}
	pool, err := ants.NewPool(defaultSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		corpus:    corpus,
		keyword:   keyword,
		chunker:   chunker,
		pool:      pool,
		batchSize: embed.DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.pool.Release()
			return nil, err
		}
	}
	return p, nil
}

// Report summarizes one document ingestion.
type Report struct {
	DocumentID string
	Chunks     int
	Embedded   int
	Elapsed    time.Duration
}

// IngestDocument chunks text, stores the document with its chunks, and
// populates the keyword and vector indexes. chunk_index values run
// 0..N-1; a re-ingest under the same document ID replaces prior chunks.
func (p *Pipeline) IngestDocument(ctx context.Context, doc *store.Document, text string, hint chunk.Hint) (*Report, error) {
	start := time.Now()
	if doc.ID == "" || doc.TenantID == "" {
		return nil, kerrors.New(kerrors.ErrCodeInvalidInput, "document id and tenant are required", nil)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	// A freshly ingested document is searchable; deactivation is an
	// explicit admin action afterwards.
	doc.Active = true

	pieces := p.chunker.Split(text, hint)
	if len(pieces) == 0 {
		return nil, kerrors.New(kerrors.ErrCodeChunkingFailed, "document produced no chunks", nil)
	}

	chunks := make([]*store.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &store.Chunk{
			ID:         chunkID(doc.TenantID, doc.ID, piece.Index),
			DocumentID: doc.ID,
			TenantID:   doc.TenantID,
			Index:      piece.Index,
			Content:    piece.Content,
			CreatedAt:  doc.CreatedAt,
		}
	}

	embedded := p.embedChunks(ctx, chunks)

	stale, err := p.staleChunkIDs(ctx, doc, chunks)
	if err != nil {
		return nil, err
	}

	// Replacing the document cascades away any previous chunk set, so a
	// re-ingest never leaves index gaps.
	if err := p.corpus.DeleteDocument(ctx, doc.TenantID, doc.ID); err != nil {
		return nil, kerrors.StorageError("replace document", err)
	}
	if err := p.corpus.SaveDocument(ctx, doc); err != nil {
		return nil, kerrors.StorageError("save document", err)
	}
	if err := p.corpus.SaveChunks(ctx, chunks); err != nil {
		return nil, kerrors.StorageError("save chunks", err)
	}

	if err := p.keyword.Index(ctx, chunks); err != nil {
		return nil, kerrors.New(kerrors.ErrCodeIndexWrite, "keyword indexing failed", err)
	}
	if p.vector != nil && embedded > 0 {
		if err := p.vector.Add(ctx, chunks); err != nil {
			return nil, kerrors.New(kerrors.ErrCodeIndexWrite, "vector indexing failed", err)
		}
	}
	if err := p.dropFromIndexes(ctx, stale); err != nil {
		return nil, err
	}

	report := &Report{
		DocumentID: doc.ID,
		Chunks:     len(chunks),
		Embedded:   embedded,
		Elapsed:    time.Since(start),
	}
	p.logger.Info("document ingested",
		"tenant", doc.TenantID,
		"document", doc.ID,
		"chunks", report.Chunks,
		"embedded", report.Embedded,
		"elapsed", report.Elapsed)
	return report, nil
}

// embedChunks fills chunk embeddings via the worker pool. Returns the
// number of chunks that received a vector; failures leave the affected
// batch without vectors.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*store.Chunk) int {
	if p.embedder == nil {
		return 0
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	embedded := 0

	for batchStart := 0; batchStart < len(chunks); batchStart += p.batchSize {
		batchEnd := batchStart + p.batchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}
		batch := chunks[batchStart:batchEnd]

		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()

			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Content
			}
			vecs, err := p.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				p.logger.Warn("embedding batch failed, chunks stored without vectors",
					"chunks", len(batch), "error", err)
				return
			}
			for i, vec := range vecs {
				batch[i].Embedding = vec
			}
			mu.Lock()
			embedded += len(batch)
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			p.logger.Warn("embedding submit failed", "error", err)
		}
	}
	wg.Wait()
	return embedded
}

// staleChunkIDs returns prior chunk IDs for doc that the replacement
// set no longer contains. Stale IDs must leave the indexes or searches
// would surface deleted content.
func (p *Pipeline) staleChunkIDs(ctx context.Context, doc *store.Document, replacement []*store.Chunk) ([]string, error) {
	existing, err := p.corpus.ChunksByTenant(ctx, doc.TenantID)
	if err != nil {
		return nil, kerrors.StorageError("list chunks", err)
	}
	keep := make(map[string]struct{}, len(replacement))
	for _, c := range replacement {
		keep[c.ID] = struct{}{}
	}
	var stale []string
	for _, c := range existing {
		if c.DocumentID != doc.ID {
			continue
		}
		if _, ok := keep[c.ID]; !ok {
			stale = append(stale, c.ID)
		}
	}
	return stale, nil
}

func (p *Pipeline) dropFromIndexes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := p.keyword.Delete(ctx, ids); err != nil {
		return kerrors.New(kerrors.ErrCodeIndexWrite, "keyword delete failed", err)
	}
	if p.vector != nil {
		if err := p.vector.Delete(ctx, ids); err != nil {
			return kerrors.New(kerrors.ErrCodeIndexWrite, "vector delete failed", err)
		}
	}
	return nil
}

// DeleteDocument removes a document and all its chunks from the store
// and both indexes.
func (p *Pipeline) DeleteDocument(ctx context.Context, tenantID, docID string) error {
	chunks, err := p.corpus.ChunksByTenant(ctx, tenantID)
	if err != nil {
		return kerrors.StorageError("list chunks", err)
	}
	var ids []string
	for _, c := range chunks {
		if c.DocumentID == docID {
			ids = append(ids, c.ID)
		}
	}

	if err := p.corpus.DeleteDocument(ctx, tenantID, docID); err != nil {
		return kerrors.StorageError("delete document", err)
	}
	return p.dropFromIndexes(ctx, ids)
}

// Close releases the worker pool.
func (p *Pipeline) Close() {
	p.pool.Release()
}

// chunkID derives a stable chunk identifier from tenant, document, and
// index.
func chunkID(tenantID, docID string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%s/%d", tenantID, docID, index)))
	return hex.EncodeToString(sum[:8])
}
