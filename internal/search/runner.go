package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kotaeru-ai/kensaku/internal/embed"
)

// Runner executes the enabled strategies concurrently. Each strategy
// gets its own timeout; a timeout or error costs only that strategy's
// contribution. The pipeline proceeds with whatever completed.
type Runner struct {
	strategies []Strategy
	timeout    time.Duration
	logger     *slog.Logger
}

// NewRunner creates a strategy runner.
func NewRunner(strategies []Strategy, timeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{strategies: strategies, timeout: timeout, logger: logger}
}

// Names returns the enabled strategy names in registration order.
func (r *Runner) Names() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Run fans out to all strategies and gathers their candidates keyed by
// strategy name. failed lists strategies that returned no result due to
// error or timeout.
func (r *Runner) Run(ctx context.Context, in Input) (results map[string][]*Candidate, failed []string) {
	results = make(map[string][]*Candidate, len(r.strategies))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, strategy := range r.strategies {
		strategy := strategy
		g.Go(func() error {
			sctx := gctx
			if r.timeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(gctx, r.timeout)
				defer cancel()
			}

			start := time.Now()
			candidates, err := strategy.Search(sctx, in)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, strategy.Name())
				r.logStrategyError(strategy.Name(), err, time.Since(start))
				// Degradation, not failure: the group keeps running.
				return nil
			}
			results[strategy.Name()] = candidates
			r.logger.Debug("strategy completed",
				"strategy", strategy.Name(),
				"candidates", len(candidates),
				"elapsed", time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	return results, failed
}

func (r *Runner) logStrategyError(name string, err error, elapsed time.Duration) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		r.logger.Warn("strategy timed out",
			"strategy", name, "elapsed", elapsed, "error", ErrStrategyTimeout)
	case errors.Is(err, embed.ErrUnavailable):
		r.logger.Warn("embedding service unavailable, strategy skipped",
			"strategy", name)
	default:
		r.logger.Warn("strategy failed",
			"strategy", name, "elapsed", elapsed, "error", err)
	}
}
