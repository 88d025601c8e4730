package resources

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tedxsdg/talksearch/internal/cache"
	"github.com/tedxsdg/talksearch/internal/dataset"
	"github.com/tedxsdg/talksearch/internal/embed"
	"github.com/tedxsdg/talksearch/internal/sdg"
)

type fixture struct {
	initializer        *Initializer
	datasetCache       string
	sdgEmbeddingsCache string
	sdgTagsCache       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := log.New(io.Discard, "", 0)

	sourcePath := filepath.Join(dir, "talks.csv")
	csv := "title,description,url\n" +
		"AI for climate action,Machine learning against climate change and carbon emissions,https://ted.com/1\n" +
		"Baking bread,The joy of sourdough,https://ted.com/2\n"
	require.NoError(t, os.WriteFile(sourcePath, []byte(csv), 0o644))

	f := &fixture{
		datasetCache:       filepath.Join(dir, "talks.gob"),
		sdgEmbeddingsCache: filepath.Join(dir, "sdg_embeddings.gob"),
		sdgTagsCache:       filepath.Join(dir, "sdg_tags.gob"),
	}

	store := cache.NewStore(logger)
	fp := cache.Fingerprint{SchemaVersion: cache.SchemaVersion, Embedder: "hash"}
	materializer := dataset.NewMaterializer(sourcePath, f.datasetCache, store, fp, logger)
	tagger := sdg.NewTagger(store, fp, f.sdgEmbeddingsCache, f.sdgTagsCache, sdg.TagPolicy{MinSimilarity: 0.1, TopN: 3}, logger)

	loadEmbedder := func(ctx context.Context) (embed.Embedder, error) {
		return embed.NewHashEmbedder(), nil
	}
	f.initializer = NewInitializer(materializer, tagger, loadEmbedder, logger)
	return f
}

func awaitWithTimeout(t *testing.T, i *Initializer) (*Bundle, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return i.Await(ctx)
}

func TestInitializerColdStartCreatesArtifacts(t *testing.T) {
	f := newFixture(t)
	f.initializer.Start()

	bundle, err := awaitWithTimeout(t, f.initializer)
	require.NoError(t, err)
	require.NotNil(t, bundle)

	assert.Equal(t, StateReady, f.initializer.State())
	assert.True(t, f.initializer.Ready())

	// All three cache artifacts exist after a cold start.
	for _, path := range []string{f.datasetCache, f.sdgEmbeddingsCache, f.sdgTagsCache} {
		_, err := os.Stat(path)
		assert.NoError(t, err, "expected artifact at %s", path)
	}

	// Every record has a vector of the model's dimension and non-nil tags.
	for _, record := range bundle.Data.Records {
		assert.Len(t, record.DescriptionVector, bundle.Embedder.Dimension())
		assert.NotNil(t, record.SdgTags)
	}
}

func TestInitializerStartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.initializer.Start()
	f.initializer.Start()
	f.initializer.Start()

	_, err := awaitWithTimeout(t, f.initializer)
	require.NoError(t, err)
	assert.Equal(t, StateReady, f.initializer.State())
}

func TestInitializerReadinessMonotonicWithConcurrentWaiters(t *testing.T) {
	f := newFixture(t)

	const waiters = 16
	var wg sync.WaitGroup
	bundles := make([]*Bundle, waiters)
	errs := make([]error, waiters)

	// Waiters arrive before Start: they must suspend, not error.
	for n := 0; n < waiters; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			bundles[n], errs[n] = awaitWithTimeout(t, f.initializer)
		}(n)
	}

	f.initializer.Start()
	wg.Wait()

	for n := 0; n < waiters; n++ {
		require.NoError(t, errs[n])
		require.NotNil(t, bundles[n])
		// Single transition: every waiter observes the identical bundle.
		assert.Same(t, bundles[0], bundles[n])
	}

	// Once signaled, never un-signaled.
	assert.True(t, f.initializer.Ready())
	bundle, err := awaitWithTimeout(t, f.initializer)
	require.NoError(t, err)
	assert.Same(t, bundles[0], bundle)
}

func TestInitializerWarmStartMakesNoSDGModelCalls(t *testing.T) {
	cold := newFixture(t)
	cold.initializer.Start()
	_, err := awaitWithTimeout(t, cold.initializer)
	require.NoError(t, err)

	// Second process lifetime over the same caches.
	logger := log.New(io.Discard, "", 0)
	store := cache.NewStore(logger)
	fp := cache.Fingerprint{SchemaVersion: cache.SchemaVersion, Embedder: "hash"}
	materializer := dataset.NewMaterializer(filepath.Join(t.TempDir(), "gone.csv"), cold.datasetCache, store, fp, logger)
	tagger := sdg.NewTagger(store, fp, cold.sdgEmbeddingsCache, cold.sdgTagsCache, sdg.TagPolicy{MinSimilarity: 0.1, TopN: 3}, logger)

	embedCalls := 0
	loadEmbedder := func(ctx context.Context) (embed.Embedder, error) {
		embedCalls++
		return embed.NewHashEmbedder(), nil
	}

	initializer := NewInitializer(materializer, tagger, loadEmbedder, logger)
	initializer.Start()
	bundle, err := awaitWithTimeout(t, initializer)
	require.NoError(t, err)
	require.NotNil(t, bundle)

	// The model is loaded once, but the source CSV is gone and nothing was
	// recomputed: all three artifacts were served from cache.
	assert.Equal(t, 1, embedCalls)
	assert.Equal(t, 2, bundle.Data.Len())
}

func TestInitializerWarmStartWithUnknownWidthEmbedder(t *testing.T) {
	cold := newFixture(t)
	cold.initializer.Start()
	_, err := awaitWithTimeout(t, cold.initializer)
	require.NoError(t, err)

	// Second process lifetime with an embedder whose width is unknown until
	// the first model call: a complete cache must still serve everything.
	logger := log.New(io.Discard, "", 0)
	store := cache.NewStore(logger)
	fp := cache.Fingerprint{SchemaVersion: cache.SchemaVersion, Embedder: "hash"}
	materializer := dataset.NewMaterializer(filepath.Join(t.TempDir(), "gone.csv"), cold.datasetCache, store, fp, logger)
	tagger := sdg.NewTagger(store, fp, cold.sdgEmbeddingsCache, cold.sdgTagsCache, sdg.TagPolicy{MinSimilarity: 0.1, TopN: 3}, logger)

	embedder := &unknownWidthEmbedder{inner: embed.NewHashEmbedder()}
	warm := NewInitializer(materializer, tagger, func(ctx context.Context) (embed.Embedder, error) {
		return embedder, nil
	}, logger)

	warm.Start()
	bundle, err := awaitWithTimeout(t, warm)
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Equal(t, 0, embedder.batchCalls, "nothing may be recomputed over a complete cache")
}

func TestInitializerServesCachedTagsWhenSDGEncodeFails(t *testing.T) {
	dir := t.TempDir()
	logger := log.New(io.Discard, "", 0)

	sourcePath := filepath.Join(dir, "talks.csv")
	csv := "title,description\nAI for climate action,Machine learning against climate change\n"
	require.NoError(t, os.WriteFile(sourcePath, []byte(csv), 0o644))

	datasetCache := filepath.Join(dir, "talks.gob")
	embeddingsCache := filepath.Join(dir, "sdg_embeddings.gob")
	tagsCache := filepath.Join(dir, "sdg_tags.gob")

	store := cache.NewStore(logger)
	fp := cache.Fingerprint{SchemaVersion: cache.SchemaVersion, Embedder: "hash"}
	policy := sdg.TagPolicy{MinSimilarity: -1, TopN: 3}

	cold := NewInitializer(
		dataset.NewMaterializer(sourcePath, datasetCache, store, fp, logger),
		sdg.NewTagger(store, fp, embeddingsCache, tagsCache, policy, logger),
		func(ctx context.Context) (embed.Embedder, error) { return embed.NewHashEmbedder(), nil },
		logger,
	)
	cold.Start()
	coldBundle, err := awaitWithTimeout(t, cold)
	require.NoError(t, err)
	require.Len(t, coldBundle.Data.Records[0].SdgTags, 3)

	// Embeddings artifact gone and the keyword encode failing: the cached
	// tag assignment must still be served, not degraded to empty sets.
	require.NoError(t, os.Remove(embeddingsCache))

	calls := 0
	failing := &flakyEmbedder{inner: embed.NewHashEmbedder(), failFrom: 1, calls: &calls}
	warm := NewInitializer(
		dataset.NewMaterializer(sourcePath, datasetCache, store, fp, logger),
		sdg.NewTagger(store, fp, embeddingsCache, tagsCache, policy, logger),
		func(ctx context.Context) (embed.Embedder, error) { return failing, nil },
		logger,
	)
	warm.Start()
	bundle, err := awaitWithTimeout(t, warm)
	require.NoError(t, err)
	assert.Nil(t, bundle.SDG)
	assert.Equal(t, coldBundle.Data.Records[0].SdgTags, bundle.Data.Records[0].SdgTags)
}

func TestInitializerRecoversFromCorruptSDGCache(t *testing.T) {
	cold := newFixture(t)
	cold.initializer.Start()
	_, err := awaitWithTimeout(t, cold.initializer)
	require.NoError(t, err)

	// Corrupt the SDG embeddings artifact between process lifetimes.
	require.NoError(t, os.WriteFile(cold.sdgEmbeddingsCache, []byte("unparseable"), 0o644))

	logger := log.New(io.Discard, "", 0)
	store := cache.NewStore(logger)
	fp := cache.Fingerprint{SchemaVersion: cache.SchemaVersion, Embedder: "hash"}
	materializer := dataset.NewMaterializer(filepath.Join(t.TempDir(), "gone.csv"), cold.datasetCache, store, fp, logger)
	tagger := sdg.NewTagger(store, fp, cold.sdgEmbeddingsCache, cold.sdgTagsCache, sdg.TagPolicy{MinSimilarity: 0.1, TopN: 3}, logger)
	warm := NewInitializer(materializer, tagger, func(ctx context.Context) (embed.Embedder, error) {
		return embed.NewHashEmbedder(), nil
	}, logger)

	warm.Start()
	bundle, err := awaitWithTimeout(t, warm)
	require.NoError(t, err)
	require.NotNil(t, bundle.SDG, "corrupt cache must be recomputed, not fatal")
	assert.Equal(t, StateReady, warm.State())

	// The replacement artifact is valid again.
	var reloaded sdg.Embeddings
	ok, err := store.Load(cold.sdgEmbeddingsCache, fp, &reloaded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInitializerDegradesWhenSDGEncodeFails(t *testing.T) {
	f := newFixture(t)

	// An embedder whose batch calls fail after the description embeddings
	// have been computed: the SDG keyword encode fails, tagging degrades.
	calls := 0
	failing := &flakyEmbedder{inner: embed.NewHashEmbedder(), failFrom: 2, calls: &calls}
	initializer := NewInitializer(
		f.materializerForEmbedder(t, failing),
		f.taggerFor(t),
		func(ctx context.Context) (embed.Embedder, error) { return failing, nil },
		log.New(io.Discard, "", 0),
	)

	initializer.Start()
	bundle, err := awaitWithTimeout(t, initializer)
	require.NoError(t, err, "SDG failure must not fail the pipeline")
	require.NotNil(t, bundle)
	assert.Nil(t, bundle.SDG)
	assert.Equal(t, StateReady, initializer.State())

	for _, record := range bundle.Data.Records {
		require.NotNil(t, record.SdgTags)
		assert.Empty(t, record.SdgTags)
	}
}

func TestInitializerFatalErrorStillSignalsReadiness(t *testing.T) {
	f := newFixture(t)
	initializer := NewInitializer(
		dataset.NewMaterializer(filepath.Join(t.TempDir(), "absent.csv"), f.datasetCache, cache.NewStore(log.New(io.Discard, "", 0)), cache.Fingerprint{SchemaVersion: cache.SchemaVersion, Embedder: "hash"}, log.New(io.Discard, "", 0)),
		f.taggerFor(t),
		func(ctx context.Context) (embed.Embedder, error) { return embed.NewHashEmbedder(), nil },
		log.New(io.Discard, "", 0),
	)

	initializer.Start()
	bundle, err := awaitWithTimeout(t, initializer)
	require.Error(t, err)
	assert.Nil(t, bundle)
	assert.NotEqual(t, StateReady, initializer.State())
	assert.False(t, initializer.Ready(), "a failed pipeline is signaled but never ready")
}

func TestInitializerAwaitHonorsContext(t *testing.T) {
	f := newFixture(t)
	// Never started: Await must unblock via its context, not poll.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.initializer.Await(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

// unknownWidthEmbedder reports width 0 until its first model call, the shape
// of a remote embedder for a model whose width is not known up front.
type unknownWidthEmbedder struct {
	inner      *embed.HashEmbedder
	batchCalls int
}

func (e *unknownWidthEmbedder) Name() string { return "hash" }

func (e *unknownWidthEmbedder) Dimension() int {
	if e.batchCalls == 0 {
		return 0
	}
	return e.inner.Dimension()
}

func (e *unknownWidthEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.inner.Embed(ctx, text)
}

func (e *unknownWidthEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchCalls++
	return e.inner.EmbedBatch(ctx, texts)
}

// flakyEmbedder delegates to inner and fails every batch call from failFrom on.
type flakyEmbedder struct {
	inner    *embed.HashEmbedder
	failFrom int
	calls    *int
}

func (e *flakyEmbedder) Name() string   { return "hash" }
func (e *flakyEmbedder) Dimension() int { return e.inner.Dimension() }

func (e *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.inner.Embed(ctx, text)
}

func (e *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	*e.calls++
	if *e.calls >= e.failFrom {
		return nil, errors.New("model backend went away")
	}
	return e.inner.EmbedBatch(ctx, texts)
}

func (f *fixture) materializerForEmbedder(t *testing.T, e embed.Embedder) *dataset.Materializer {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	store := cache.NewStore(logger)
	fp := cache.Fingerprint{SchemaVersion: cache.SchemaVersion, Embedder: e.Name()}
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "talks.csv")
	csv := "title,description\nAI for climate action,Machine learning against climate change\n"
	require.NoError(t, os.WriteFile(sourcePath, []byte(csv), 0o644))
	return dataset.NewMaterializer(sourcePath, filepath.Join(dir, "talks.gob"), store, fp, logger)
}

func (f *fixture) taggerFor(t *testing.T) *sdg.Tagger {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	store := cache.NewStore(logger)
	fp := cache.Fingerprint{SchemaVersion: cache.SchemaVersion, Embedder: "hash"}
	dir := t.TempDir()
	return sdg.NewTagger(store, fp, filepath.Join(dir, "sdg_embeddings.gob"), filepath.Join(dir, "sdg_tags.gob"), sdg.TagPolicy{MinSimilarity: 0.1, TopN: 3}, logger)
}
