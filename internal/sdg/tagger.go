package sdg

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/tedxsdg/talksearch/internal/cache"
	"github.com/tedxsdg/talksearch/internal/embed"
	"github.com/tedxsdg/talksearch/pkg/vectormath"
)

// Embeddings holds one vector per SDG category, aligned with Keywords() order.
type Embeddings struct {
	IDs     []string
	Vectors [][]float32
}

// TagPolicy turns a row of similarity scores into a discrete tag assignment:
// every category scoring at least MinSimilarity is kept, capped to the TopN
// highest. TopN <= 0 means uncapped.
type TagPolicy struct {
	MinSimilarity float64
	TopN          int
}

// fingerprint is the cache identity of the policy. Tags computed under a
// different policy must be recomputed, not served.
func (p TagPolicy) fingerprint() string {
	return fmt.Sprintf("min=%g,top=%d", p.MinSimilarity, p.TopN)
}

// Tagger computes SDG category embeddings and per-talk tag assignments,
// caching both so each is computed at most once per cache lifetime.
type Tagger struct {
	store               *cache.Store
	fingerprint         cache.Fingerprint
	tagsFingerprint     cache.Fingerprint
	embeddingsCachePath string
	tagsCachePath       string
	policy              TagPolicy
	logger              *log.Logger
}

// NewTagger creates a new tagging engine. The tags artifact additionally
// carries the policy in its fingerprint: changing MinSimilarity or TopN
// invalidates cached assignments, while the keyword embeddings stay valid.
func NewTagger(store *cache.Store, fingerprint cache.Fingerprint, embeddingsCachePath, tagsCachePath string, policy TagPolicy, logger *log.Logger) *Tagger {
	tagsFingerprint := fingerprint
	tagsFingerprint.Policy = policy.fingerprint()
	return &Tagger{
		store:               store,
		fingerprint:         fingerprint,
		tagsFingerprint:     tagsFingerprint,
		embeddingsCachePath: embeddingsCachePath,
		tagsCachePath:       tagsCachePath,
		policy:              policy,
		logger:              logger,
	}
}

// ComputeEmbeddings loads the SDG category embeddings from cache, or embeds
// each category's joined keyword list in one batch call and caches the
// result. An encode failure returns the error so the caller can degrade to
// tagless operation; it must not abort the pipeline.
func (t *Tagger) ComputeEmbeddings(ctx context.Context, embedder embed.Embedder) (*Embeddings, error) {
	var cached Embeddings
	ok, err := t.store.Load(t.embeddingsCachePath, t.fingerprint, &cached)
	if err != nil {
		return nil, err
	}
	if ok && len(cached.IDs) == len(Keywords()) {
		t.logger.Printf("Loaded SDG keyword embeddings from cache")
		return &cached, nil
	}

	t.logger.Printf("Computing SDG keyword embeddings")
	keywordSets := Keywords()
	texts := make([]string, len(keywordSets))
	ids := make([]string, len(keywordSets))
	for i, set := range keywordSets {
		texts[i] = set.Text()
		ids[i] = set.ID
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode SDG keywords: %w", err)
	}

	embeddings := &Embeddings{IDs: ids, Vectors: vectors}
	if err := t.store.Save(t.embeddingsCachePath, t.fingerprint, embeddings); err != nil {
		return nil, fmt.Errorf("failed to cache SDG embeddings: %w", err)
	}
	t.logger.Printf("SDG embeddings computed and cached at %s", t.embeddingsCachePath)

	return embeddings, nil
}

// ComputeTags assigns SDG tags to every description vector via the full
// talk x category cosine similarity matrix, caching the assignment. A nil
// embeddings argument degrades: a matching cached assignment is still
// served, otherwise every talk gets an empty, non-nil tag list.
func (t *Tagger) ComputeTags(ctx context.Context, descriptionVectors [][]float32, embeddings *Embeddings) ([][]string, error) {
	if embeddings == nil {
		if cached, ok, _ := t.loadCachedTags(len(descriptionVectors)); ok {
			t.logger.Printf("SDG embeddings unavailable, serving cached SDG tags")
			return cached, nil
		}
		t.logger.Printf("SDG embeddings unavailable, skipping tagging")
		tags := make([][]string, len(descriptionVectors))
		for i := range tags {
			tags[i] = []string{}
		}
		return tags, nil
	}

	cached, ok, err := t.loadCachedTags(len(descriptionVectors))
	if err != nil {
		return nil, err
	}
	if ok {
		t.logger.Printf("Loaded SDG tags from cache")
		return cached, nil
	}

	t.logger.Printf("Computing SDG tags for %d talks", len(descriptionVectors))
	tags := make([][]string, len(descriptionVectors))
	for i, vector := range descriptionVectors {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		tags[i] = t.assign(vector, embeddings)
	}

	if err := t.store.Save(t.tagsCachePath, t.tagsFingerprint, tags); err != nil {
		return nil, fmt.Errorf("failed to cache SDG tags: %w", err)
	}
	t.logger.Printf("SDG tags computed and cached at %s", t.tagsCachePath)

	return tags, nil
}

// loadCachedTags returns the cached assignment when it matches the current
// fingerprint, policy and corpus size.
func (t *Tagger) loadCachedTags(count int) ([][]string, bool, error) {
	var cached [][]string
	ok, err := t.store.Load(t.tagsCachePath, t.tagsFingerprint, &cached)
	if err != nil || !ok || len(cached) != count {
		return nil, false, err
	}
	// gob decodes empty lists as nil; tags must be present even when empty.
	for i := range cached {
		if cached[i] == nil {
			cached[i] = []string{}
		}
	}
	return cached, true, nil
}

// assign applies the tag policy to one similarity row.
func (t *Tagger) assign(vector []float32, embeddings *Embeddings) []string {
	type candidate struct {
		id    string
		score float64
	}

	var kept []candidate
	for j, categoryVector := range embeddings.Vectors {
		score := vectormath.CosineSimilarity(vector, categoryVector)
		if score >= t.policy.MinSimilarity {
			kept = append(kept, candidate{id: embeddings.IDs[j], score: score})
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].score > kept[j].score
	})
	if t.policy.TopN > 0 && len(kept) > t.policy.TopN {
		kept = kept[:t.policy.TopN]
	}

	tags := make([]string, len(kept))
	for i, c := range kept {
		tags[i] = c.id
	}
	return tags
}
