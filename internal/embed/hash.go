package embed

import (
	"context"
	"math"
	"math/rand"
)

// HashEmbedder generates deterministic pseudo-embeddings seeded from the text.
// It needs no model file, which makes it the fallback provider and the one
// used in tests. Identical texts always map to identical vectors.
type HashEmbedder struct {
	vectorSize int
}

// NewHashEmbedder creates a new hash embedder instance.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{
		vectorSize: 384, // Matches the sentence-BERT models this stands in for
	}
}

// Name returns the identifier of this embedder implementation.
func (e *HashEmbedder) Name() string { return "hash" }

// Dimension returns the dimensionality of the embeddings.
func (e *HashEmbedder) Dimension() int { return e.vectorSize }

// Embed generates a vector embedding for the given text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	// Check context cancellation
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	embedding := make([]float32, e.vectorSize)

	// Use the text as a seed for reproducibility
	seed := int64(0)
	for _, c := range text {
		seed = seed*31 + int64(c)
	}

	r := rand.New(rand.NewSource(seed))

	for i := 0; i < e.vectorSize; i++ {
		embedding[i] = float32(r.NormFloat64())
	}

	// Normalize the vector
	var sum float64
	for _, v := range embedding {
		sum += float64(v * v)
	}

	norm := float32(math.Sqrt(sum))
	if norm > 0 {
		for i := 0; i < e.vectorSize; i++ {
			embedding[i] /= norm
		}
	}

	return embedding, nil
}

// EmbedBatch generates one embedding per input text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}

	return vectors, nil
}
