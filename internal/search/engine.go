package search

import (
	"context"
	"log/slog"
	"time"

	kerrors "github.com/kotaeru-ai/kensaku/internal/errors"
	"github.com/kotaeru-ai/kensaku/internal/store"
	"github.com/kotaeru-ai/kensaku/internal/variant"
)

// Engine limits.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// EngineConfig tunes the pipeline around the injected components.
type EngineConfig struct {
	DefaultLimit int
	MaxLimit     int
	QueryTimeout time.Duration
	Rerank       bool
}

// Engine runs the full query pipeline: cache lookup, variant expansion,
// concurrent strategies, normalization, position correction, merge,
// diversity, optional rerank. Callers always get a ranked list
// (possibly empty); only corpus-store failure is fatal.
type Engine struct {
	config     EngineConfig
	corpus     store.CorpusStore
	variants   *variant.Generator
	runner     *Runner
	normalizer *Normalizer
	corrector  *PositionCorrector
	merger     *Merger
	reranker   Reranker
	cache      *ResultCache
	logger     *slog.Logger
}

// NewEngine wires the pipeline. reranker and cache may be nil to
// disable those stages.
func NewEngine(
	config EngineConfig,
	corpus store.CorpusStore,
	variants *variant.Generator,
	runner *Runner,
	normalizer *Normalizer,
	corrector *PositionCorrector,
	merger *Merger,
	reranker Reranker,
	cache *ResultCache,
	logger *slog.Logger,
) *Engine {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = DefaultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = MaxLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		config:     config,
		corpus:     corpus,
		variants:   variants,
		runner:     runner,
		normalizer: normalizer,
		corrector:  corrector,
		merger:     merger,
		reranker:   reranker,
		cache:      cache,
		logger:     logger,
	}
}

// Search executes one query.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if req.Query == "" {
		return nil, kerrors.New(kerrors.ErrCodeInvalidQuery, "query must not be empty", nil)
	}
	if req.TenantID == "" {
		return nil, kerrors.New(kerrors.ErrCodeInvalidTenant, "tenant scope is required", nil)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	if limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}

	if e.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.QueryTimeout)
		defer cancel()
	}

	strategyNames := e.runner.Names()

	var cacheKey string
	if e.cache != nil {
		cacheKey = e.cache.Key(req.Query, req.TenantID, strategyNames)
		if cached, ok := e.cache.Get(cacheKey); ok {
			e.logger.Debug("cache hit", "tenant", req.TenantID, "query", req.Query)
			return &Response{
				Results: trimResults(cached, limit),
				Diagnostics: Diagnostics{
					CacheHit: true,
					Elapsed:  time.Since(start),
				},
			}, nil
		}
	}

	variants := e.variants.Expand(ctx, req.Query)

	in := Input{
		TenantID: req.TenantID,
		Query:    req.Query,
		Variants: variants,
		Limit:    limit * 3,
	}
	results, failed := e.runner.Run(ctx, in)

	// Only strategy work honors the query deadline. Bookkeeping against
	// the corpus store runs detached from it, so a straggler strategy
	// exhausting the budget cannot turn a healthy store into an error.
	bookCtx := context.WithoutCancel(ctx)

	// The chunk-count lookup doubles as the corpus-store liveness probe:
	// its failure is the one fatal outcome of the query path.
	chunkCounts, err := e.corpus.DocumentChunkCounts(bookCtx, req.TenantID)
	if err != nil {
		return nil, kerrors.StorageError("corpus store query failed", err)
	}

	rawScores := make(map[string][]float64, len(results))
	total := 0
	for name, candidates := range results {
		scores := make([]float64, len(candidates))
		for i, c := range candidates {
			scores[i] = c.Score
		}
		rawScores[name] = scores
		total += len(candidates)
	}

	e.normalizer.Normalize(bookCtx, req.TenantID, results)
	for _, candidates := range results {
		e.corrector.ApplyBonus(candidates, chunkCounts)
	}

	merged := e.merger.Merge(req.Query, results)
	diversified := e.corrector.Diversify(merged, limit)

	reranked := false
	if e.config.Rerank && e.reranker != nil && len(diversified) > 1 {
		ranked, rerr := e.reranker.Rerank(ctx, req.Query, diversified)
		if rerr != nil {
			e.logger.Warn("rerank skipped", "error", rerr)
		} else {
			diversified = ranked
			reranked = true
		}
	}

	finalResults := make([]*Result, 0, len(diversified))
	for _, c := range diversified {
		finalResults = append(finalResults, &Result{
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
			Score:      c.Score,
			Strategies: c.Strategies,
			Coverage:   c.Coverage,
		})
	}
	finalResults = trimResults(finalResults, limit)

	e.normalizer.Observe(bookCtx, req.TenantID, rawScores)

	if e.cache != nil && len(finalResults) > 0 {
		e.cache.Put(cacheKey, finalResults)
	}

	contributed := make([]string, 0, len(results))
	for _, name := range strategyNames {
		if candidates, ok := results[name]; ok && len(candidates) > 0 {
			contributed = append(contributed, name)
		}
	}

	return &Response{
		Results: finalResults,
		Diagnostics: Diagnostics{
			Variants:         variants,
			StrategiesRun:    contributed,
			StrategiesFailed: failed,
			CandidatesPerStage: map[string]int{
				"retrieved": total,
				"merged":    len(merged),
				"final":     len(finalResults),
			},
			Reranked: reranked,
			Elapsed:  time.Since(start),
		},
	}, nil
}

func trimResults(results []*Result, limit int) []*Result {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
