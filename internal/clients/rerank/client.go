// internal/clients/rerank/client.go
package rerank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"benefit-matcher/internal/common/http"
	"benefit-matcher/internal/common/logger"
	"benefit-matcher/internal/common/metrics"
	matchrerank "benefit-matcher/internal/matching/rerank"
)

var (
	ErrRerankFailed      = errors.New("RERANK_FAILED")
	ErrMalformedResponse = errors.New("RERANK_MALFORMED_RESPONSE")
)

type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
}

type request struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type response struct {
	Results []struct {
		Index          int      `json:"index"`
		RelevanceScore *float64 `json:"relevance_score"`
	} `json:"results"`
}

// Client calls a Cohere/Jina style /rerank endpoint.
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
		logger: log.WithFields(map[string]interface{}{"client": "rerank"}),
	}
}

func (c *Client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]matchrerank.Scored, error) {
	if len(documents) == 0 {
		return []matchrerank.Scored{}, nil
	}

	start := time.Now()
	results, err := c.rerank(ctx, query, documents, topN)
	metrics.ObserveExternalCall("rerank", err, time.Since(start))
	if err != nil {
		c.logger.Warn("rerank request failed", map[string]interface{}{
			"documents": len(documents),
			"error":     err,
		})
		return nil, err
	}
	return results, nil
}

func (c *Client) rerank(ctx context.Context, query string, documents []string, topN int) ([]matchrerank.Scored, error) {
	var resp response
	req := request{Model: c.config.Model, Query: query, Documents: documents, TopN: topN}
	if err := c.http.PostJSON(ctx, "/rerank", req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRerankFailed, err)
	}

	out := make([]matchrerank.Scored, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.RelevanceScore == nil {
			return nil, fmt.Errorf("%w: result %d has no relevance_score", ErrMalformedResponse, r.Index)
		}
		out = append(out, matchrerank.Scored{Index: r.Index, RelevanceScore: *r.RelevanceScore})
	}
	return out, nil
}
