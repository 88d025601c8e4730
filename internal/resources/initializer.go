package resources

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tedxsdg/talksearch/internal/dataset"
	"github.com/tedxsdg/talksearch/internal/embed"
	"github.com/tedxsdg/talksearch/internal/sdg"
)

// State is one step of the initialization pipeline. Transitions are strictly
// sequential and run exactly once per process; no path re-enters an earlier
// state.
type State int

const (
	StateNotStarted State = iota
	StateLoadingDataset
	StateLoadingModel
	StateComputingDescriptionEmbeddings
	StateLoadingOrComputingSDGEmbeddings
	StateLoadingOrComputingSDGTags
	StateReady
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateLoadingDataset:
		return "loading_dataset"
	case StateLoadingModel:
		return "loading_model"
	case StateComputingDescriptionEmbeddings:
		return "computing_description_embeddings"
	case StateLoadingOrComputingSDGEmbeddings:
		return "loading_or_computing_sdg_embeddings"
	case StateLoadingOrComputingSDGTags:
		return "loading_or_computing_sdg_tags"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// EmbedderFactory loads the embedding model. Called once, inside the
// background pipeline, so an expensive model load never blocks startup.
type EmbedderFactory func(ctx context.Context) (embed.Embedder, error)

// Bundle is the immutable set of shared resources produced once by the
// initializer. After the readiness signal fires nothing writes to it, so it
// is safe for unlimited concurrent readers.
type Bundle struct {
	Data     *dataset.Dataset
	Embedder embed.Embedder
	SDG      *sdg.Embeddings // nil when tagging is degraded
}

// Initializer drives the materializer and tagging engine to a consistent
// state exactly once per process lifetime and exposes a single one-shot
// readiness signal. SDG failures degrade to empty tags; only a missing
// dataset or a failed model load puts the bundle in an error state. Either
// way readiness fires, so waiters never hang forever.
type Initializer struct {
	materializer *dataset.Materializer
	tagger       *sdg.Tagger
	loadEmbedder EmbedderFactory
	logger       *log.Logger

	startOnce sync.Once
	ready     chan struct{}

	mu     sync.Mutex
	state  State
	bundle *Bundle
	err    error

	// OnReady, if set before Start, is invoked once right before the
	// readiness signal fires. Used for metrics.
	OnReady func(initDuration time.Duration, failed bool)
}

// NewInitializer creates a new resource initializer.
func NewInitializer(materializer *dataset.Materializer, tagger *sdg.Tagger, loadEmbedder EmbedderFactory, logger *log.Logger) *Initializer {
	return &Initializer{
		materializer: materializer,
		tagger:       tagger,
		loadEmbedder: loadEmbedder,
		logger:       logger,
		ready:        make(chan struct{}),
		state:        StateNotStarted,
	}
}

// Start launches the background initialization goroutine. Only the first
// call has any effect; the pipeline is never retried or restarted.
func (i *Initializer) Start() {
	i.startOnce.Do(func() {
		go i.run(context.Background())
	})
}

// Ready reports without blocking whether initialization completed
// successfully. The one-shot signal fires even on a fatal error so waiters
// unblock, but readiness is only true once a usable bundle exists; Ready and
// State therefore always agree.
func (i *Initializer) Ready() bool {
	select {
	case <-i.ready:
	default:
		return false
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err == nil
}

// State returns the current pipeline state.
func (i *Initializer) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Await suspends until the readiness signal fires, then returns the bundle
// produced by the pipeline. It never polls and never returns a "not ready"
// error; the only early exit is context cancellation.
func (i *Initializer) Await(ctx context.Context) (*Bundle, error) {
	select {
	case <-i.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.bundle, i.err
}

func (i *Initializer) setState(s State) {
	i.mu.Lock()
	i.state = s
	i.mu.Unlock()
	i.logger.Printf("Initializer state: %s", s)
}

func (i *Initializer) run(ctx context.Context) {
	start := time.Now()
	bundle, err := i.load(ctx)

	i.mu.Lock()
	i.bundle = bundle
	i.err = err
	if err == nil {
		i.state = StateReady
	}
	i.mu.Unlock()

	if err != nil {
		i.logger.Printf("Initialization failed after %s: %v", time.Since(start), err)
	} else {
		i.logger.Printf("All resources are fully loaded and ready for use (%s)", time.Since(start))
	}

	if i.OnReady != nil {
		i.OnReady(time.Since(start), err != nil)
	}

	// One-shot: fires exactly once, never cleared. Every waiter observes a
	// single transition.
	close(i.ready)
}

func (i *Initializer) load(ctx context.Context) (*Bundle, error) {
	i.setState(StateLoadingDataset)
	data, cached, err := i.materializer.Load(ctx)
	if err != nil {
		return nil, err
	}

	i.setState(StateLoadingModel)
	embedder, err := i.loadEmbedder(ctx)
	if err != nil {
		return nil, err
	}

	if !cached || i.materializer.NeedsVectors(data, embedder.Dimension()) {
		i.setState(StateComputingDescriptionEmbeddings)
		if err := i.materializer.ComputeVectors(ctx, data, embedder); err != nil {
			return nil, err
		}
	}

	i.setState(StateLoadingOrComputingSDGEmbeddings)
	embeddings, err := i.tagger.ComputeEmbeddings(ctx, embedder)
	if err != nil {
		// Degrade to tagless operation rather than never becoming ready.
		i.logger.Printf("Failed to encode SDG keywords, continuing without tags: %v", err)
		embeddings = nil
	}

	i.setState(StateLoadingOrComputingSDGTags)
	tags, err := i.tagger.ComputeTags(ctx, data.DescriptionVectors(), embeddings)
	if err != nil {
		i.logger.Printf("Failed to compute SDG tags, continuing without tags: %v", err)
		tags = nil
	}
	if tags != nil {
		for idx := range data.Records {
			data.Records[idx].SdgTags = tags[idx]
		}
	}

	return &Bundle{Data: data, Embedder: embedder, SDG: embeddings}, nil
}
