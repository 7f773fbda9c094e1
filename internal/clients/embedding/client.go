// internal/clients/embedding/client.go
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"benefit-matcher/internal/common/http"
	"benefit-matcher/internal/common/logger"
	"benefit-matcher/internal/common/metrics"
)

var (
	ErrEmbeddingFailed   = errors.New("EMBEDDING_FAILED")
	ErrMalformedResponse = errors.New("EMBEDDING_MALFORMED_RESPONSE")
)

type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Dimension         int
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
}

type request struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type response struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Client calls an OpenAI-compatible /embeddings endpoint.
type Client struct {
	config *Config
	http   *http.Client
	logger logger.Logger
}

func NewClient(cfg *Config, log logger.Logger) *Client {
	return &Client{
		config: cfg,
		http: http.NewJSONClient(http.Config{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Timeout:           cfg.Timeout,
			MaxRetries:        cfg.MaxRetries,
			RequestsPerMinute: cfg.RequestsPerMinute,
		}),
		logger: log.WithFields(map[string]interface{}{"client": "embedding"}),
	}
}

func (c *Client) Dimension() int {
	return c.config.Dimension
}

func (c *Client) Model() string {
	return c.config.Model
}

// Embed returns one vector per text in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	start := time.Now()
	vectors, err := c.embed(ctx, texts)
	metrics.ObserveExternalCall("embedding", err, time.Since(start))
	if err != nil {
		c.logger.Warn("embedding request failed", map[string]interface{}{
			"texts": len(texts),
			"error": err,
		})
		return nil, err
	}
	return vectors, nil
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float64, error) {
	var resp response
	if err := c.http.PostJSON(ctx, "/embeddings", request{Model: c.config.Model, Input: texts}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrMalformedResponse, len(resp.Data), len(texts))
	}

	sort.SliceStable(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})
	out := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		if d.Index != i {
			return nil, fmt.Errorf("%w: unexpected index %d", ErrMalformedResponse, d.Index)
		}
		if c.config.Dimension > 0 && len(d.Embedding) != c.config.Dimension {
			return nil, fmt.Errorf("%w: dimension %d, want %d", ErrMalformedResponse, len(d.Embedding), c.config.Dimension)
		}
		out[i] = d.Embedding
	}
	return out, nil
}
