package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"benefit-matcher/internal/common/logger"
	matchrerank "benefit-matcher/internal/matching/rerank"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string) *Client {
	return NewClient(&Config{BaseURL: url, APIKey: "k", Model: "rerank-v3", Timeout: time.Second}, logger.NewTestLogger(t))
}

func TestClient_Rerank(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rerank-v3", req.Model)
		assert.Equal(t, "two children", req.Query)
		assert.Len(t, req.Documents, 3)
		assert.Equal(t, 2, req.TopN)

		_, _ = w.Write([]byte(`{"results":[{"index":2,"relevance_score":0.91},{"index":0,"relevance_score":0.42}]}`))
	}))
	defer server.Close()

	got, err := newTestClient(t, server.URL).Rerank(context.Background(), "two children", []string{"a", "b", "c"}, 2)

	require.NoError(t, err)
	assert.Equal(t, []matchrerank.Scored{{Index: 2, RelevanceScore: 0.91}, {Index: 0, RelevanceScore: 0.42}}, got)
}

func TestClient_Rerank_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, ``, ErrRerankFailed},
		{"not json", http.StatusOK, `<html>`, ErrRerankFailed},
		{"missing score", http.StatusOK, `{"results":[{"index":0}]}`, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL).Rerank(context.Background(), "q", []string{"a"}, 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), err.Error())
		})
	}
}

func TestClient_Rerank_NoDocuments(t *testing.T) {
	got, err := newTestClient(t, "http://127.0.0.1:0").Rerank(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
