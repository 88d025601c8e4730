package embed

import (
	"context"
	"errors"
	"fmt"
	"log"

	bert "github.com/go-skynet/go-bert.cpp"
)

// BertEmbedder runs a local sentence-BERT model through bert.cpp.
type BertEmbedder struct {
	model     *bert.Bert
	modelName string
	threads   int
	dimension int
	logger    *log.Logger
}

// NewBertEmbedder loads the GGML model at modelPath. The embedding dimension
// is probed with a single inference call so callers never see a zero Dimension.
func NewBertEmbedder(modelPath string, threads int, logger *log.Logger) (*BertEmbedder, error) {
	if modelPath == "" {
		return nil, errors.New("bert embedder requires a model path")
	}
	if threads <= 0 {
		threads = 4
	}

	model, err := bert.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load bert model from %s: %w", modelPath, err)
	}

	probe, err := model.Embeddings("dimension probe", bert.SetThreads(threads))
	if err != nil {
		model.Free()
		return nil, fmt.Errorf("bert model loaded but inference failed: %w", err)
	}

	logger.Printf("Loaded bert model %s (dimension %d)", modelPath, len(probe))

	return &BertEmbedder{
		model:     model,
		modelName: modelPath,
		threads:   threads,
		dimension: len(probe),
		logger:    logger,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *BertEmbedder) Name() string { return "bert:" + e.modelName }

// Dimension returns the dimensionality of the embeddings.
func (e *BertEmbedder) Dimension() int { return e.dimension }

// Embed generates a vector embedding for the given text.
func (e *BertEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	embedding, err := e.model.Embeddings(text, bert.SetThreads(e.threads))
	if err != nil {
		return nil, fmt.Errorf("bert inference failed: %w", err)
	}

	return embedding, nil
}

// EmbedBatch generates one embedding per input text. bert.cpp has no batch
// API, so the batch is fed through the model sequentially.
func (e *BertEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		vectors[i] = vector
	}

	return vectors, nil
}

// Close releases the model.
func (e *BertEmbedder) Close() {
	e.model.Free()
}
