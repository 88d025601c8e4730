package search

import (
	"context"
	"fmt"
	"log"

	"github.com/tedxsdg/talksearch/internal/resources"
	"github.com/tedxsdg/talksearch/pkg/vectormath"
)

// Result is one ranked talk. On failure the engine returns a single Result
// carrying only Error, never a transport-level error.
type Result struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
	SdgTags     []string `json:"sdg_tags,omitempty"`
	Score       float64  `json:"score,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Engine answers free-text queries against the initialized talk dataset.
type Engine struct {
	initializer *resources.Initializer
	topN        int
	logger      *log.Logger
}

// NewEngine creates a new search engine gated behind the initializer.
func NewEngine(initializer *resources.Initializer, topN int, logger *log.Logger) *Engine {
	if topN <= 0 {
		topN = 10
	}
	return &Engine{
		initializer: initializer,
		topN:        topN,
		logger:      logger,
	}
}

// Search embeds the query, scores it against every talk description vector
// and returns the top matches ranked by descending similarity; ties keep
// dataset order. A request arriving before readiness suspends until the
// signal fires, then proceeds.
func (e *Engine) Search(ctx context.Context, query string) []Result {
	bundle, err := e.initializer.Await(ctx)
	if err != nil {
		e.logger.Printf("Search unavailable: %v", err)
		return []Result{{Error: fmt.Sprintf("Model or data not available: %v", err)}}
	}
	if bundle == nil || bundle.Data == nil || bundle.Embedder == nil {
		e.logger.Printf("Search unavailable: model or data missing from bundle")
		return []Result{{Error: "Model or data not available."}}
	}

	e.logger.Printf("Performing semantic search for the query: %q", query)

	queryVector, err := bundle.Embedder.Embed(ctx, query)
	if err != nil {
		e.logger.Printf("Failed to embed query: %v", err)
		return []Result{{Error: err.Error()}}
	}

	ranked := vectormath.RankDescending(queryVector, bundle.Data.DescriptionVectors())
	if len(ranked) > e.topN {
		ranked = ranked[:e.topN]
	}

	results := make([]Result, len(ranked))
	for i, scored := range ranked {
		record := bundle.Data.Records[scored.Index]
		results[i] = Result{
			Title:       record.Title,
			Description: record.Description,
			URL:         record.URL,
			SdgTags:     record.SdgTags,
			Score:       scored.Score,
		}
	}

	if len(results) > 0 {
		e.logger.Printf("Search results retrieved: %d talks found. For example: %s", len(results), results[0].Title)
	} else {
		e.logger.Printf("No results for query %q", query)
	}

	return results
}
