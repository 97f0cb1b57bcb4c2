// Package config loads and validates the kensaku configuration.
// Configuration comes from a single YAML file with defaults applied for
// anything unset, plus a small set of environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete kensaku configuration.
type Config struct {
	Version    int              `yaml:"version"`
	DataDir    string           `yaml:"data_dir"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Variants   VariantsConfig   `yaml:"variants"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Ingest     IngestConfig     `yaml:"ingest"`
	LogLevel   string           `yaml:"log_level"`
}

// ChunkingConfig configures document segmentation. All sizes are UTF-8
// bytes; cuts never split a rune.
type ChunkingConfig struct {
	// TargetSize is the preferred chunk size for free-form text.
	TargetSize int `yaml:"target_size"`
	// MaxSize is the absolute maximum chunk size. Only an atomic record may exceed it.
	MaxSize int `yaml:"max_size"`
	// MinCut is the smallest acceptable size when backing off from a hard cut.
	MinCut int `yaml:"min_cut"`
	// Overlap is the number of bytes shared between consecutive free-form chunks.
	Overlap int `yaml:"overlap"`
	// MinRecordSize is the minimum chunk size before an identifier change
	// forces a boundary in record-oriented text.
	MinRecordSize int `yaml:"min_record_size"`
}

// VariantsConfig configures query variant generation.
type VariantsConfig struct {
	// UseGenerator enables model-backed variant generation. When false or the
	// generator is unreachable, the deterministic fallback set is used.
	UseGenerator bool `yaml:"use_generator"`
	// MaxVariants caps the number of variants per query (default: 10).
	MaxVariants int `yaml:"max_variants"`
	// Timeout bounds the generator call.
	Timeout time.Duration `yaml:"timeout"`
}

// StrategyConfig is the static per-strategy enable switch plus its score
// threshold. Which strategies run is decided once at startup, not per call.
type StrategyConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
}

// ToggleConfig is an enable switch for strategies without a threshold.
type ToggleConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SearchConfig configures the query pipeline.
type SearchConfig struct {
	// DefaultLimit is the default number of results (default: 10).
	DefaultLimit int `yaml:"default_limit"`
	// MaxLimit is the maximum allowed results (default: 100).
	MaxLimit int `yaml:"max_limit"`

	// Exact, Fuzzy, Keyword, Vector enable/tune the four strategies.
	// Exact matching is binary so it carries no threshold; the vector
	// threshold is the minimum cosine similarity a hit must reach.
	Exact   ToggleConfig   `yaml:"exact"`
	Fuzzy   StrategyConfig `yaml:"fuzzy"`
	Keyword StrategyConfig `yaml:"keyword"`
	Vector  StrategyConfig `yaml:"vector"`

	// StrategyTimeout bounds each strategy individually.
	StrategyTimeout time.Duration `yaml:"strategy_timeout"`
	// QueryTimeout bounds the whole pipeline; strategies still running when it
	// elapses are dropped and the pipeline proceeds with what completed.
	QueryTimeout time.Duration `yaml:"query_timeout"`

	// FuzzyLengthPenalty is the per-character penalty k in the fuzzy score.
	FuzzyLengthPenalty float64 `yaml:"fuzzy_length_penalty"`
	// KeywordIdentifierWeight is the weight of identifier-pattern keywords
	// relative to generic keywords (weight 1.0).
	KeywordIdentifierWeight float64 `yaml:"keyword_identifier_weight"`

	// MaxPositionBonus caps the late-document position bonus.
	MaxPositionBonus float64 `yaml:"max_position_bonus"`
	// LargeDocBoost amplifies the position bonus for documents with more than
	// LargeDocChunks chunks.
	LargeDocBoost  float64 `yaml:"large_doc_boost"`
	LargeDocChunks int     `yaml:"large_doc_chunks"`

	// PerDocumentCap limits how many final results one document may supply.
	PerDocumentCap int `yaml:"per_document_cap"`

	// JaccardWeight scales the query/chunk word-overlap bonus at merge time.
	JaccardWeight float64 `yaml:"jaccard_weight"`

	// Rerank enables the generative rerank pass over the top candidates.
	Rerank bool `yaml:"rerank"`
	// RerankTopK is how many candidates are sent to the model (default: 20).
	RerankTopK int `yaml:"rerank_top_k"`
	// RerankWeight blends the rerank-derived score with the prior score.
	RerankWeight float64 `yaml:"rerank_weight"`

	// CacheEnabled turns the result cache on.
	CacheEnabled bool `yaml:"cache_enabled"`
	// CacheTTL bounds how long a cached result list is served.
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// CacheSize is the maximum number of cached query results.
	CacheSize int `yaml:"cache_size"`
}

// EmbeddingsConfig configures the embedding service client.
type EmbeddingsConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string `yaml:"host"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions is the embedding dimension; 0 auto-detects from the service.
	Dimensions int `yaml:"dimensions"`
	// BatchSize is texts per embedding request.
	BatchSize int `yaml:"batch_size"`
	// Timeout bounds each embedding call.
	Timeout time.Duration `yaml:"timeout"`
	// CacheSize is the LRU size for query embedding reuse.
	CacheSize int `yaml:"cache_size"`
}

// GeneratorConfig configures the generative model client used for query
// variants and reranking. The service is best-effort; the pipeline runs
// without it.
type GeneratorConfig struct {
	Host    string        `yaml:"host"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	// Workers is the embedding worker pool size.
	Workers int `yaml:"workers"`
	// EmbedBatchSize is chunks per embedding batch.
	EmbedBatchSize int `yaml:"embed_batch_size"`
}

// NewConfig creates a Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Chunking: ChunkingConfig{
			TargetSize:    700,
			MaxSize:       800,
			MinCut:        600,
			Overlap:       50,
			MinRecordSize: 400,
		},
		Variants: VariantsConfig{
			UseGenerator: true,
			MaxVariants:  10,
			Timeout:      5 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit:            10,
			MaxLimit:                100,
			Exact:                   ToggleConfig{Enabled: true},
			Fuzzy:                   StrategyConfig{Enabled: true, Threshold: 0.3},
			Keyword:                 StrategyConfig{Enabled: true, Threshold: 0.2},
			Vector:                  StrategyConfig{Enabled: true, Threshold: 0},
			StrategyTimeout:         3 * time.Second,
			QueryTimeout:            10 * time.Second,
			FuzzyLengthPenalty:      0.002,
			KeywordIdentifierWeight: 3.0,
			MaxPositionBonus:        0.15,
			LargeDocBoost:           1.5,
			LargeDocChunks:          10,
			PerDocumentCap:          3,
			JaccardWeight:           0.1,
			Rerank:                  false,
			RerankTopK:              20,
			RerankWeight:            0.3,
			CacheEnabled:            true,
			CacheTTL:                time.Hour,
			CacheSize:               1024,
		},
		Embeddings: EmbeddingsConfig{
			Host:       "http://localhost:11434",
			Model:      "bge-m3",
			Dimensions: 0,
			BatchSize:  32,
			Timeout:    60 * time.Second,
			CacheSize:  1000,
		},
		Generator: GeneratorConfig{
			Host:    "http://localhost:11434",
			Model:   "qwen3:4b",
			Timeout: 8 * time.Second,
		},
		Ingest: IngestConfig{
			Workers:        maxInt(1, runtime.NumCPU()/2),
			EmbedBatchSize: 32,
		},
		LogLevel: "info",
	}
}

// Load reads the config file at path, applies defaults for unset fields,
// then applies environment overrides and validates.
// A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies environment variable overrides. Env vars win over file
// values so deployments can tune without editing config.
func (c *Config) applyEnv() {
	if v := os.Getenv("KENSAKU_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("KENSAKU_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("KENSAKU_OLLAMA_HOST"); v != "" {
		c.Embeddings.Host = v
		c.Generator.Host = v
	}
	if v := os.Getenv("KENSAKU_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Search.CacheTTL = d
		}
	}
	if v := os.Getenv("KENSAKU_RERANK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Search.Rerank = b
		}
	}
}

// Validate checks invariants the pipeline depends on.
func (c *Config) Validate() error {
	ch := c.Chunking
	if ch.MaxSize <= 0 || ch.TargetSize <= 0 {
		return fmt.Errorf("chunking sizes must be positive")
	}
	if ch.TargetSize > ch.MaxSize {
		return fmt.Errorf("chunking target_size %d exceeds max_size %d", ch.TargetSize, ch.MaxSize)
	}
	if ch.MinCut > ch.MaxSize {
		return fmt.Errorf("chunking min_cut %d exceeds max_size %d", ch.MinCut, ch.MaxSize)
	}
	if ch.Overlap < 0 || ch.Overlap >= ch.TargetSize {
		return fmt.Errorf("chunking overlap %d must be in [0, target_size)", ch.Overlap)
	}

	s := c.Search
	if s.DefaultLimit <= 0 || s.MaxLimit < s.DefaultLimit {
		return fmt.Errorf("search limits invalid: default %d, max %d", s.DefaultLimit, s.MaxLimit)
	}
	if s.Fuzzy.Threshold < 0 || s.Fuzzy.Threshold > 1 {
		return fmt.Errorf("fuzzy threshold %.2f must be in [0, 1]", s.Fuzzy.Threshold)
	}
	if s.Keyword.Threshold < 0 || s.Keyword.Threshold > 1 {
		return fmt.Errorf("keyword threshold %.2f must be in [0, 1]", s.Keyword.Threshold)
	}
	if s.Vector.Threshold < 0 || s.Vector.Threshold > 1 {
		return fmt.Errorf("vector threshold %.2f must be in [0, 1]", s.Vector.Threshold)
	}
	if s.PerDocumentCap <= 0 {
		return fmt.Errorf("per_document_cap must be positive")
	}
	if s.RerankWeight < 0 || s.RerankWeight > 1 {
		return fmt.Errorf("rerank_weight %.2f must be in [0, 1]", s.RerankWeight)
	}
	if !s.Exact.Enabled && !s.Fuzzy.Enabled && !s.Keyword.Enabled && !s.Vector.Enabled {
		return fmt.Errorf("at least one search strategy must be enabled")
	}
	return nil
}

// Save writes the config as YAML to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".kensaku")
	}
	return filepath.Join(home, ".kensaku")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
