package variant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kotaeru-ai/kensaku/internal/genai"
)

// MaxVariants is the default cap on the expansion of one query.
const MaxVariants = 10

const expandPromptTemplate = `Generate up to %d surface-form variations of the search query below.

Allowed variations: spacing changes, half-width/full-width character conversion, hiragana/katakana conversion, legal entity abbreviations (株式会社 <-> (株) etc.), punctuation changes.
Never change the meaning of the query. Never add or remove words.

Output ONLY a JSON array of strings. No explanation.

Query: %s

JSON array:`

// Generator expands a query into surface-form variants. The generative
// model is the primary path; a deterministic transform set covers model
// unavailability and unparseable output.
type Generator struct {
	llm     genai.Generator
	logger  *slog.Logger
	max     int
	timeout time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxVariants caps the number of variants per query. Non-positive
// values keep the default.
func WithMaxVariants(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.max = n
		}
	}
}

// WithTimeout bounds each model call. Zero means no extra bound beyond
// the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGenerator creates a variant generator. llm may be nil, in which case
// only the deterministic path is used.
func NewGenerator(llm genai.Generator, logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{llm: llm, logger: logger, max: MaxVariants}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Expand returns the original query followed by its variants, deduplicated
// and capped at the configured maximum. Expand never fails: any model or
// parse error degrades to the deterministic transform set.
func (g *Generator) Expand(ctx context.Context, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	variants := g.fromModel(ctx, query)
	if variants == nil {
		variants = deterministicVariants(query)
	}

	return finalize(query, variants, g.max)
}

// fromModel asks the generative model for variants. Returns nil when the
// model is unavailable or its output cannot be parsed.
func (g *Generator) fromModel(ctx context.Context, query string) []string {
	if g.llm == nil {
		return nil
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(expandPromptTemplate, g.max, query)
	out, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		g.logger.Warn("variant generation failed, using deterministic fallback", "error", err)
		return nil
	}

	variants, err := parseVariantList(out)
	if err != nil {
		g.logger.Warn("variant output unparseable, using deterministic fallback", "error", err)
		return nil
	}
	return variants
}

// parseVariantList extracts a JSON string array from model output. The
// model may wrap the array in prose or code fences; only the outermost
// bracket pair is considered.
func parseVariantList(out string) ([]string, error) {
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in output")
	}

	var variants []string
	if err := json.Unmarshal([]byte(out[start:end+1]), &variants); err != nil {
		return nil, fmt.Errorf("parse variant array: %w", err)
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("empty variant array")
	}
	return variants, nil
}

// deterministicVariants is the fixed fallback transform set.
func deterministicVariants(query string) []string {
	return []string{
		StripSpaces(query),
		NarrowWidth(query),
		WidenWidth(query),
		SwapKana(query),
	}
}

// finalize applies the organization spacing rule, deduplicates preserving
// order with the original query first, and caps the result.
func finalize(query string, variants []string, max int) []string {
	seen := make(map[string]struct{}, len(variants)+1)
	result := make([]string, 0, len(variants)+1)

	add := func(v string) {
		v = strings.TrimSpace(NormalizeOrgSpacing(v))
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}

	add(query)
	for _, v := range variants {
		if len(result) >= max {
			break
		}
		add(v)
	}
	if len(result) > max {
		result = result[:max]
	}
	return result
}
