package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kotaeru-ai/kensaku/internal/output"
	"github.com/kotaeru-ai/kensaku/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	tenant  string
	limit   int
	format  string
	explain bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a tenant's corpus",
		Long: `Search a tenant's corpus with all enabled strategies.

The query is expanded into variants, each strategy runs concurrently
over every variant, and results are normalized, position-corrected,
and merged into one ranked list.

Examples:
  kensaku search --tenant acme "マウス おすすめ"
  kensaku search --tenant acme --limit 5 "wireless mouse"
  kensaku search --tenant acme --format json "SKU-1042"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.tenant, "tenant", "t", "", "Tenant ID (required)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show variants, strategy outcomes, and timings")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	ctx := cmd.Context()
	cfg := configFromContext(ctx)
	out := output.New(cmd.OutOrStdout())

	a, err := openApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	llm := newGenerator(cfg)
	if llm != nil {
		defer func() { _ = llm.Close() }()
	}
	engine := newEngine(a, llm, slog.Default())

	resp, err := engine.Search(ctx, search.Request{
		Query:    query,
		TenantID: opts.tenant,
		Limit:    opts.limit,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if opts.explain {
		printDiagnostics(out, resp.Diagnostics)
	}

	if len(resp.Results) == 0 {
		out.Statusf("", "No results found for %q", query)
		return nil
	}

	out.Statusf("🔍", "Found %d results for %q:", len(resp.Results), query)
	out.Newline()
	for i, r := range resp.Results {
		out.Statusf("", "%d. %s #%d (score: %.3f, via %s)",
			i+1, r.DocumentID, r.ChunkIndex, r.Score, strings.Join(r.Strategies, "+"))
		for _, line := range snippet(r.Content, 3) {
			out.Status("", "   "+line)
		}
		out.Newline()
	}
	return nil
}

func printDiagnostics(out *output.Writer, d search.Diagnostics) {
	out.Statusf("", "Variants: %s", strings.Join(d.Variants, " | "))
	out.Statusf("", "Strategies run: %s", strings.Join(d.StrategiesRun, ", "))
	if len(d.StrategiesFailed) > 0 {
		out.Warningf("Strategies failed: %s", strings.Join(d.StrategiesFailed, ", "))
	}
	for stage, n := range d.CandidatesPerStage {
		out.Statusf("", "Candidates after %s: %d", stage, n)
	}
	out.Statusf("", "Cache hit: %v, reranked: %v, elapsed: %s", d.CacheHit, d.Reranked, d.Elapsed)
	out.Newline()
}

// snippet returns the first n non-empty trailing-trimmed lines.
func snippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
