// internal/clients/llm/client.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"benefit-matcher/internal/common/http"
	"benefit-matcher/internal/common/logger"
	"benefit-matcher/internal/common/metrics"
)

var (
	ErrCompletionFailed  = errors.New("COMPLETION_FAILED")
	ErrMalformedResponse = errors.New("COMPLETION_MALFORMED_RESPONSE")
)

type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
	MaxTokens         int
	Temperature       float64
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type response struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// Client calls an OpenAI-compatible /chat/completions endpoint.
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
		logger: log.WithFields(map[string]interface{}{"client": "llm"}),
	}
}

// Complete sends one system and one user message and returns the text of
// the first choice.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()
	text, err := c.complete(ctx, systemPrompt, userPrompt)
	metrics.ObserveExternalCall("llm", err, time.Since(start))
	if err != nil {
		c.logger.Warn("completion request failed", map[string]interface{}{"error": err})
		return "", err
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := request{
		Model: c.config.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	var resp response
	if err := c.http.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}
	if resp.Choices[0].FinishReason == "length" {
		c.logger.Warn("completion truncated at max_tokens", map[string]interface{}{"maxTokens": c.config.MaxTokens})
	}
	return text, nil
}
