package embed

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Embedding errors
var (
	ErrEmptyInput = errors.New("no texts to embed")
)

// Embedder maps text to fixed-dimension vectors. For a fixed model and input
// order the output is reproducible, which the caching layer relies on.
type Embedder interface {
	// Name identifies the underlying model, used to fingerprint cache artifacts.
	Name() string

	// Dimension returns the length of every vector this embedder produces.
	Dimension() int

	// Embed generates a vector embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one embedding per input text, row-aligned with the
	// input. Fails on an empty input slice.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config selects and configures the embedder implementation.
type Config struct {
	Type string // "bert", "openai" or "hash"

	// bert
	ModelPath string
	Threads   int

	// openai
	BaseURL string
	APIKey  string
	Model   string
}

// Name returns the identifier the configured embedder will report, without
// loading it. Cache fingerprints are derived from this before the model
// itself is brought up.
func (c Config) Name() string {
	switch c.Type {
	case "bert":
		return "bert:" + c.ModelPath
	case "openai":
		model := c.Model
		if model == "" {
			model = "text-embedding-3-small"
		}
		return "openai:" + model
	default:
		return "hash"
	}
}

// New creates the embedder selected by cfg.Type.
func New(cfg Config, logger *log.Logger) (Embedder, error) {
	switch cfg.Type {
	case "bert":
		return NewBertEmbedder(cfg.ModelPath, cfg.Threads, logger)
	case "openai":
		return NewOpenAIEmbedder(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		})
	case "hash", "":
		return NewHashEmbedder(), nil
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Type)
	}
}
