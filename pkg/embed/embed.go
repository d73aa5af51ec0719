// Package embed provides an Ollama-backed embedding client with retry and
// circuit-breaker protection. Embedding outages surface as typed errors so
// callers can degrade instead of blocking discovery.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/fn"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/resilience"
)

// Config configures the embedding client.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Retry   fn.RetryOpts
	Breaker resilience.BreakerOpts
}

// DefaultConfig returns a local-Ollama setup with short retries; the breaker
// trips after repeated failures so a dead embedder fails fast.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:11434",
		Model:   "nomic-embed-text",
		Timeout: 15 * time.Second,
		Retry: fn.RetryOpts{
			MaxAttempts: 3,
			InitialWait: 200 * time.Millisecond,
			MaxWait:     2 * time.Second,
			Jitter:      true,
		},
		Breaker: resilience.DefaultBreakerOpts,
	}
}

// Client calls Ollama's embeddings API.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	retry   fn.RetryOpts
	breaker *resilience.Breaker
}

// New creates an embedding client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultConfig().Retry
	}
	return &Client{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		http:    &http.Client{Timeout: cfg.Timeout},
		retry:   cfg.Retry,
		breaker: resilience.NewBreaker(cfg.Breaker),
	}
}

// BreakerState exposes the circuit state for health reporting.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

type ollamaEmbedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding vector for text. Transient failures are
// retried with backoff inside one breaker call; a tripped breaker or an
// exhausted retries both report ErrEmbeddingUnavailable.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	result := resilience.CallResult(c.breaker, ctx, func(ctx context.Context) fn.Result[[]float32] {
		return fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[[]float32] {
			return fn.FromPair(c.embedOnce(ctx, text))
		})
	})
	vec, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body, _ := json.Marshal(ollamaEmbedReq{Model: c.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("ollama embed: status %d", resp.StatusCode)
	}

	var result ollamaEmbedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embed: empty vector for model %s", c.model)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}
