package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kotaeru-ai/kensaku/internal/config"
	"github.com/kotaeru-ai/kensaku/internal/embed"
	"github.com/kotaeru-ai/kensaku/internal/genai"
	"github.com/kotaeru-ai/kensaku/internal/search"
	"github.com/kotaeru-ai/kensaku/internal/store"
	"github.com/kotaeru-ai/kensaku/internal/variant"
)

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// configFromContext returns the config installed by the root command.
func configFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.NewConfig()
}

// app bundles the stores and service clients a command needs. Writers
// hold the data-dir lock; read-only commands open without it.
type app struct {
	cfg      *config.Config
	corpus   *store.SQLiteStore
	keyword  *store.KeywordIndex
	vector   *store.VectorIndex
	embedder embed.Embedder
	lock     *store.DataLock
}

func (a *app) vectorPath() string {
	return filepath.Join(a.cfg.DataDir, "vectors.hnsw")
}

// openApp opens the corpus store and indexes under cfg.DataDir.
// withLock acquires the exclusive data-dir lock for write commands.
func openApp(cfg *config.Config, withLock bool) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	a := &app{cfg: cfg}

	if withLock {
		a.lock = store.NewDataLock(cfg.DataDir)
		acquired, err := a.lock.TryLock()
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, fmt.Errorf("data directory %s is in use by another kensaku process", cfg.DataDir)
		}
	}

	corpus, err := store.NewSQLiteStore(filepath.Join(cfg.DataDir, "corpus.db"))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open corpus store: %w", err)
	}
	a.corpus = corpus

	keyword, err := store.NewKeywordIndex(filepath.Join(cfg.DataDir, "keyword.bleve"))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open keyword index: %w", err)
	}
	a.keyword = keyword

	if err := a.openVector(); err != nil {
		a.close()
		return nil, err
	}

	ollama := embed.NewOllamaEmbedder(embed.Config{
		Host:       cfg.Embeddings.Host,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		Timeout:    cfg.Embeddings.Timeout,
	})
	cached, err := embed.NewCachedEmbedder(ollama, cfg.Embeddings.CacheSize)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	a.embedder = cached

	return a, nil
}

// openVector restores the saved vector index, or creates a fresh one
// when embedding dimensions are configured. With auto-detected
// dimensions and no saved index, vector search starts after the first
// ingest persists an index.
func (a *app) openVector() error {
	path := a.vectorPath()
	dims := a.cfg.Embeddings.Dimensions

	if _, err := os.Stat(path + ".meta"); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("stat vector index: %w", err)
		}
		if dims <= 0 {
			return nil
		}
	}

	cfg := store.VectorIndexConfig{Dimensions: dims}
	if cfg.Dimensions <= 0 {
		// OpenVectorIndex takes the saved configuration; the
		// placeholder only satisfies construction.
		cfg.Dimensions = 1
	}
	vector, err := store.OpenVectorIndex(path, cfg)
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}
	a.vector = vector
	return nil
}

// ensureVector creates the vector index on first use once embedding
// dimensions are known.
func (a *app) ensureVector(dims int) error {
	if a.vector != nil || dims <= 0 {
		return nil
	}
	vector, err := store.NewVectorIndex(store.VectorIndexConfig{Dimensions: dims})
	if err != nil {
		return err
	}
	a.vector = vector
	return nil
}

// saveVector persists the vector index after a write command.
func (a *app) saveVector() error {
	if a.vector == nil {
		return nil
	}
	return a.vector.Save(a.vectorPath())
}

func (a *app) close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.vector != nil {
		_ = a.vector.Close()
	}
	if a.keyword != nil {
		_ = a.keyword.Close()
	}
	if a.corpus != nil {
		_ = a.corpus.Close()
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
}

// newGenerator creates the generative model client when any feature
// needs it. Returns nil when neither variants nor rerank use the model.
func newGenerator(cfg *config.Config) genai.Generator {
	if !cfg.Variants.UseGenerator && !cfg.Search.Rerank {
		return nil
	}
	return genai.NewOllamaGenerator(genai.Config{
		Host:    cfg.Generator.Host,
		Model:   cfg.Generator.Model,
		Timeout: cfg.Generator.Timeout,
	})
}

// newEngine assembles the query pipeline from the opened app.
func newEngine(a *app, llm genai.Generator, logger *slog.Logger) *search.Engine {
	cfg := a.cfg
	s := cfg.Search

	var strategies []search.Strategy
	if s.Exact.Enabled {
		strategies = append(strategies, search.NewExactStrategy(a.corpus))
	}
	if s.Fuzzy.Enabled {
		strategies = append(strategies, search.NewFuzzyStrategy(a.corpus, s.Fuzzy.Threshold, s.FuzzyLengthPenalty))
	}
	if s.Keyword.Enabled {
		strategies = append(strategies, search.NewKeywordStrategy(a.corpus, a.keyword, s.Keyword.Threshold, s.KeywordIdentifierWeight))
	}
	if s.Vector.Enabled {
		strategies = append(strategies, search.NewVectorStrategy(a.corpus, a.vector, a.embedder, s.Vector.Threshold))
	}

	var variantLLM genai.Generator
	if cfg.Variants.UseGenerator {
		variantLLM = llm
	}

	var reranker search.Reranker
	if s.Rerank && llm != nil {
		reranker = search.NewLLMReranker(llm, s.RerankTopK, s.RerankWeight, logger)
	}

	var cache *search.ResultCache
	if s.CacheEnabled {
		cache = search.NewResultCache(s.CacheSize, s.CacheTTL)
	}

	return search.NewEngine(
		search.EngineConfig{
			DefaultLimit: s.DefaultLimit,
			MaxLimit:     s.MaxLimit,
			QueryTimeout: s.QueryTimeout,
			Rerank:       s.Rerank,
		},
		a.corpus,
		variant.NewGenerator(variantLLM, logger,
			variant.WithMaxVariants(cfg.Variants.MaxVariants),
			variant.WithTimeout(cfg.Variants.Timeout)),
		search.NewRunner(strategies, s.StrategyTimeout, logger),
		search.NewNormalizer(a.corpus, logger),
		search.NewPositionCorrector(s.MaxPositionBonus, s.LargeDocBoost, s.LargeDocChunks, s.PerDocumentCap),
		search.NewMerger(s.JaccardWeight),
		reranker,
		cache,
		logger,
	)
}
