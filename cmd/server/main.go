package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tedxsdg/talksearch/internal/api"
	"github.com/tedxsdg/talksearch/internal/auth"
	"github.com/tedxsdg/talksearch/internal/cache"
	"github.com/tedxsdg/talksearch/internal/config"
	"github.com/tedxsdg/talksearch/internal/dataset"
	"github.com/tedxsdg/talksearch/internal/embed"
	"github.com/tedxsdg/talksearch/internal/resources"
	"github.com/tedxsdg/talksearch/internal/sdg"
	"github.com/tedxsdg/talksearch/internal/search"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "TALK-SEARCH: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration from environment
	cfg := config.Load()

	embedderConfig := embed.Config{
		Type:      cfg.Embedder.Type,
		ModelPath: cfg.Embedder.BertModelPath,
		Threads:   cfg.Embedder.BertThreads,
		BaseURL:   cfg.Embedder.OpenAIBaseURL,
		APIKey:    cfg.Embedder.OpenAIAPIKey,
		Model:     cfg.Embedder.OpenAIModel,
	}

	// Cache artifacts are bound to the configured embedder; switching models
	// invalidates them.
	fingerprint := cache.Fingerprint{
		SchemaVersion: cache.SchemaVersion,
		Embedder:      embedderConfig.Name(),
	}

	// Initialize cache store and pipeline components
	store := cache.NewStore(logger)
	materializer := dataset.NewMaterializer(cfg.Data.DatasetPath, cfg.Data.DatasetCachePath, store, fingerprint, logger)
	tagger := sdg.NewTagger(
		store,
		fingerprint,
		cfg.Data.SDGEmbeddingsCachePath,
		cfg.Data.SDGTagsCachePath,
		sdg.TagPolicy{MinSimilarity: cfg.SDG.MinSimilarity, TopN: cfg.SDG.TopN},
		logger,
	)

	// The model is loaded inside the background pipeline, not here
	loadEmbedder := func(ctx context.Context) (embed.Embedder, error) {
		return embed.New(embedderConfig, logger)
	}

	// Initialize the resource pipeline and kick it off in the background
	initializer := resources.NewInitializer(materializer, tagger, loadEmbedder, logger)

	metrics := api.NewMetrics(prometheus.DefaultRegisterer)
	initializer.OnReady = metrics.ObserveInit

	initializer.Start()

	// Initialize search engine
	searchEngine := search.NewEngine(initializer, cfg.Search.TopN, logger)

	// Optional bearer auth for the API group
	var jwtManager *auth.JWTManager
	if cfg.Server.JWTSecret != "" {
		jwtManager = auth.NewJWTManager(cfg.Server.JWTSecret, time.Hour)
		logger.Printf("Bearer auth enabled for /api routes")
	}

	// Configure server
	router := api.NewRouter(searchEngine, initializer, jwtManager, metrics, cfg.Server.CORSAllowedOrigins, logger)

	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// No write timeout: a search issued before readiness legitimately
		// waits for initialization to finish.
	}

	logger.Printf("Server starting on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil {
		logger.Fatalf("Server failed to start: %v", err)
	}
}
