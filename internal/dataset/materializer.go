package dataset

import (
	"context"
	"fmt"
	"log"

	"github.com/tedxsdg/talksearch/internal/cache"
	"github.com/tedxsdg/talksearch/internal/embed"
)

// Materializer produces the in-memory talk dataset with every derived column
// present: cached copies are reused, anything missing is computed exactly
// once and written back through the cache store.
type Materializer struct {
	sourcePath  string
	cachePath   string
	store       *cache.Store
	fingerprint cache.Fingerprint
	logger      *log.Logger
}

// NewMaterializer creates a new dataset materializer. The fingerprint names
// the embedder the cached vectors must have been computed with.
func NewMaterializer(sourcePath, cachePath string, store *cache.Store, fingerprint cache.Fingerprint, logger *log.Logger) *Materializer {
	return &Materializer{
		sourcePath:  sourcePath,
		cachePath:   cachePath,
		store:       store,
		fingerprint: fingerprint,
		logger:      logger,
	}
}

// Load returns the dataset and whether it came from cache. On a cache miss
// the raw CSV source is parsed instead; a missing source file is the one
// fatal error of the pipeline. Every returned record has a non-nil tag list.
func (m *Materializer) Load(ctx context.Context) (*Dataset, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	var cached Dataset
	ok, err := m.store.Load(m.cachePath, m.fingerprint, &cached)
	if err != nil {
		return nil, false, err
	}
	if ok {
		m.logger.Printf("Loaded dataset from cache (%d talks)", cached.Len())
		fillMissingTags(&cached)
		return &cached, true, nil
	}

	m.logger.Printf("Loading talk dataset from %s", m.sourcePath)
	data, err := LoadCSV(m.sourcePath)
	if err != nil {
		return nil, false, err
	}
	m.logger.Printf("Talk dataset loaded successfully (%d talks)", data.Len())
	fillMissingTags(data)

	return data, false, nil
}

// NeedsVectors reports whether any record is missing a description vector. A
// non-positive dimension checks presence only; otherwise the vector must also
// have the embedder's width.
func (m *Materializer) NeedsVectors(data *Dataset, dimension int) bool {
	for i := range data.Records {
		vector := data.Records[i].DescriptionVector
		if len(vector) == 0 {
			return true
		}
		if dimension > 0 && len(vector) != dimension {
			return true
		}
	}
	return false
}

// ComputeVectors embeds every description in one batched call, assigns the
// vectors back row-aligned, and persists the full updated dataset.
func (m *Materializer) ComputeVectors(ctx context.Context, data *Dataset, embedder embed.Embedder) error {
	m.logger.Printf("Computing description embeddings for %d talks", data.Len())

	descriptions := make([]string, data.Len())
	for i := range data.Records {
		descriptions[i] = data.Records[i].Description
	}

	vectors, err := embedder.EmbedBatch(ctx, descriptions)
	if err != nil {
		return fmt.Errorf("failed to embed descriptions: %w", err)
	}
	for i := range data.Records {
		data.Records[i].DescriptionVector = vectors[i]
	}

	if err := m.store.Save(m.cachePath, m.fingerprint, data); err != nil {
		return fmt.Errorf("failed to cache dataset: %w", err)
	}
	m.logger.Printf("Description vectors computed and dataset cached at %s", m.cachePath)

	return nil
}

// Materialize runs the full load-then-embed-if-missing sequence. The
// initializer drives the phases separately; this form serves everything else.
func (m *Materializer) Materialize(ctx context.Context, embedder embed.Embedder) (*Dataset, error) {
	data, _, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	if m.NeedsVectors(data, embedder.Dimension()) {
		if err := m.ComputeVectors(ctx, data, embedder); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// fillMissingTags is schema completion, not computation: sdg_tags is always
// present, possibly empty, never nil.
func fillMissingTags(data *Dataset) {
	for i := range data.Records {
		if data.Records[i].SdgTags == nil {
			data.Records[i].SdgTags = []string{}
		}
	}
}
