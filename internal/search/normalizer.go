package search

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/kotaeru-ai/kensaku/internal/store"
)

// defaultNormalized is used when no stats exist yet or the observed
// range is degenerate.
const defaultNormalized = 0.5

// Normalizer maps raw strategy scores into 0..1 via min-max over the
// persisted per-(strategy, tenant) score distribution. Min and max only
// widen; mean and std merge by sample-count weighting. Updates are
// atomic per key; concurrent last-writer-wins is acceptable since the
// statistics are approximate.
type Normalizer struct {
	statsStore store.StatsStore
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string]*store.ScoreStats
}

// NewNormalizer creates a normalizer backed by persisted stats.
func NewNormalizer(statsStore store.StatsStore, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		statsStore: statsStore,
		logger:     logger,
		cache:      make(map[string]*store.ScoreStats),
	}
}

func statsKey(strategy, tenantID string) string {
	return strategy + "\x00" + tenantID
}

// Normalize rewrites candidate scores in place using each strategy's
// stats. Missing stats yield the 0.5 default.
func (n *Normalizer) Normalize(ctx context.Context, tenantID string, results map[string][]*Candidate) {
	for strategy, candidates := range results {
		stats := n.stats(ctx, strategy, tenantID)
		for _, c := range candidates {
			c.Score = normalizeScore(c.Score, stats)
		}
	}
}

// Observe folds a query batch's raw scores into the persisted stats.
// Persistence failures degrade to a warning; the in-memory stats still
// advance.
func (n *Normalizer) Observe(ctx context.Context, tenantID string, rawScores map[string][]float64) {
	for strategy, scores := range rawScores {
		if len(scores) == 0 {
			continue
		}
		n.observeOne(ctx, strategy, tenantID, scores)
	}
}

func (n *Normalizer) observeOne(ctx context.Context, strategy, tenantID string, scores []float64) {
	batchMin, batchMax := scores[0], scores[0]
	sum := 0.0
	for _, s := range scores {
		if s < batchMin {
			batchMin = s
		}
		if s > batchMax {
			batchMax = s
		}
		sum += s
	}
	batchMean := sum / float64(len(scores))
	variance := 0.0
	for _, s := range scores {
		variance += (s - batchMean) * (s - batchMean)
	}
	batchStd := math.Sqrt(variance / float64(len(scores)))
	batchCount := int64(len(scores))

	key := statsKey(strategy, tenantID)

	n.mu.Lock()
	current, ok := n.cache[key]
	if !ok {
		current = n.load(ctx, strategy, tenantID)
	}

	var merged store.ScoreStats
	if current == nil {
		merged = store.ScoreStats{
			Min: batchMin, Max: batchMax,
			Mean: batchMean, Std: batchStd, Count: batchCount,
		}
	} else {
		merged = *current
		// Min and max widen monotonically.
		if batchMin < merged.Min {
			merged.Min = batchMin
		}
		if batchMax > merged.Max {
			merged.Max = batchMax
		}
		total := merged.Count + batchCount
		merged.Mean = (merged.Mean*float64(merged.Count) + batchMean*float64(batchCount)) / float64(total)
		merged.Std = (merged.Std*float64(merged.Count) + batchStd*float64(batchCount)) / float64(total)
		merged.Count = total
	}
	n.cache[key] = &merged
	n.mu.Unlock()

	if err := n.statsStore.SaveScoreStats(ctx, strategy, tenantID, &merged); err != nil {
		n.logger.Warn("score stats persistence failed",
			"strategy", strategy, "tenant", tenantID, "error", err)
	}
}

// stats returns cached or persisted stats, nil when none exist.
func (n *Normalizer) stats(ctx context.Context, strategy, tenantID string) *store.ScoreStats {
	key := statsKey(strategy, tenantID)

	n.mu.Lock()
	defer n.mu.Unlock()
	if stats, ok := n.cache[key]; ok {
		return stats
	}
	stats := n.load(ctx, strategy, tenantID)
	if stats != nil {
		n.cache[key] = stats
	}
	return stats
}

// load reads persisted stats; callers hold the mutex.
func (n *Normalizer) load(ctx context.Context, strategy, tenantID string) *store.ScoreStats {
	stats, err := n.statsStore.ScoreStats(ctx, strategy, tenantID)
	if err != nil {
		n.logger.Warn("score stats load failed",
			"strategy", strategy, "tenant", tenantID, "error", err)
		return nil
	}
	return stats
}

func normalizeScore(raw float64, stats *store.ScoreStats) float64 {
	if stats == nil || stats.Max <= stats.Min {
		return defaultNormalized
	}
	normalized := (raw - stats.Min) / (stats.Max - stats.Min)
	return math.Max(0, math.Min(1, normalized))
}
