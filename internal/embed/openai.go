package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// OpenAIConfig configures the OpenAI-compatible embeddings client.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIEmbedder is an OpenAI-compatible embeddings client. Any server that
// speaks the /embeddings API works, not just api.openai.com.
type OpenAIEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int
	dimension  int
}

// NewOpenAIEmbedder creates a new embeddings client using the provided configuration.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	c := &OpenAIEmbedder{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		client:     &http.Client{Timeout: t},
		maxRetries: 5,
		dimension:  knownDimensions[cfg.Model],
	}
	if c.dimension == 0 {
		// Unknown model: probe the width with a single inference so callers
		// never see a zero Dimension.
		probe, err := c.EmbedBatch(context.Background(), []string{"dimension probe"})
		if err != nil {
			return nil, fmt.Errorf("embeddings endpoint probe failed: %w", err)
		}
		c.dimension = len(probe[0])
	}
	return c, nil
}

// knownDimensions lets construction skip the probe call for the common
// models; any other model is probed with one inference.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Name returns the identifier of this embedder implementation.
func (c *OpenAIEmbedder) Name() string { return "openai:" + c.model }

// Dimension returns the dimensionality of the produced embedding vectors.
// It is resolved at construction, from the model table or the probe call.
func (c *OpenAIEmbedder) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text.
func (c *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one embedding per input text in input order.
func (c *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	type reqBody struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	type respDatum struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	type respBody struct {
		Data []respDatum `json:"data"`
	}

	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		data, _ := json.Marshal(reqBody{Input: texts, Model: c.model})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			// Respect Retry-After if provided
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					_ = resp.Body.Close()
					time.Sleep(time.Duration(secs) * time.Second)
				} else {
					_ = resp.Body.Close()
					time.Sleep(retryDelay(attempt))
				}
			} else {
				_ = resp.Body.Close()
				time.Sleep(retryDelay(attempt))
			}
			if attempt < c.maxRetries {
				continue
			}
			return nil, fmt.Errorf("openai embeddings failed: %s", resp.Status)
		}

		if resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("openai embeddings failed: %s", resp.Status)
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, err
		}

		var parsed respBody
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return nil, fmt.Errorf("invalid embeddings response: %w", err)
		}
		if len(parsed.Data) != len(texts) {
			return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(parsed.Data), len(texts))
		}

		vectors := make([][]float32, len(texts))
		for _, datum := range parsed.Data {
			if datum.Index < 0 || datum.Index >= len(vectors) {
				return nil, fmt.Errorf("embeddings response index %d out of range", datum.Index)
			}
			vectors[datum.Index] = datum.Embedding
		}
		return vectors, nil
	}

	return nil, errors.New("openai embeddings failed: retries exhausted")
}

func retryDelay(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt)) * 500 * time.Millisecond
	if delay > 10*time.Second {
		delay = 10 * time.Second
	}
	return delay
}
