package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kotaeru-ai/kensaku/internal/output"
	"github.com/kotaeru-ai/kensaku/internal/search"
)

func newStatsCmd() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and score statistics for a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, tenant)
		},
	}

	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Tenant ID (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func runStats(cmd *cobra.Command, tenant string) error {
	ctx := cmd.Context()
	cfg := configFromContext(ctx)
	out := output.New(cmd.OutOrStdout())

	a, err := openApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	counts, err := a.corpus.DocumentChunkCounts(ctx, tenant)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}
	totalChunks := 0
	for _, n := range counts {
		totalChunks += n
	}

	out.Statusf("📊", "Tenant %q:", tenant)
	out.Statusf("", "Documents: %d", len(counts))
	out.Statusf("", "Chunks: %d", totalChunks)
	if a.vector != nil {
		out.Statusf("", "Vectors indexed: %d (dims %d)", a.vector.Count(), a.vector.Dimensions())
	} else {
		out.Status("", "Vectors indexed: 0 (no vector index)")
	}
	out.Newline()

	out.Status("", "Score statistics (used for normalization):")
	for _, strategy := range []string{
		search.StrategyExact, search.StrategyFuzzy, search.StrategyKeyword, search.StrategyVector,
	} {
		stats, err := a.corpus.ScoreStats(ctx, strategy, tenant)
		if err != nil {
			return fmt.Errorf("load score stats: %w", err)
		}
		if stats == nil {
			out.Statusf("", "%-8s no observations yet", strategy)
			continue
		}
		out.Statusf("", "%-8s min %.3f  max %.3f  mean %.3f  std %.3f  (n=%d)",
			strategy, stats.Min, stats.Max, stats.Mean, stats.Std, stats.Count)
	}
	return nil
}
