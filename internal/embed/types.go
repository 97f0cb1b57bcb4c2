// Package embed provides the embedding service client used at ingestion
// (chunk embeddings) and query time (query embeddings).
package embed

import (
	"context"
	"errors"
	"time"
)

// Default Ollama embedder configuration.
const (
	DefaultHost       = "http://localhost:11434"
	DefaultModel      = "bge-m3"
	DefaultBatchSize  = 32
	DefaultTimeout    = 60 * time.Second
	DefaultDimensions = 1024
)

// ErrUnavailable marks the embedding service as unreachable. The vector
// strategy skips itself when it sees this; other strategies proceed.
var ErrUnavailable = errors.New("embedding service unavailable")

// Embedder generates fixed-dimension embedding vectors.
type Embedder interface {
	// Embed generates an embedding for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector width this embedder produces.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the service is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Config configures the Ollama embedder.
type Config struct {
	Host       string
	Model      string
	Dimensions int // 0 auto-detects from the first embedding
	BatchSize  int
	Timeout    time.Duration
}
