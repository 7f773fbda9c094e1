package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	Input string `json:"input"`
}

type echoResponse struct {
	Output string `json:"output"`
}

func TestPostJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/echo", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req echoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(echoResponse{Output: req.Input + "!"})
	}))
	defer server.Close()

	c := NewJSONClient(Config{BaseURL: server.URL + "/v1/", APIKey: "secret", Timeout: time.Second})

	var out echoResponse
	require.NoError(t, c.PostJSON(context.Background(), "/echo", echoRequest{Input: "hi"}, &out))
	assert.Equal(t, "hi!", out.Output)
}

func TestPostJSON_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(echoResponse{Output: "ok"})
	}))
	defer server.Close()

	c := NewJSONClient(Config{BaseURL: server.URL, Timeout: time.Second, MaxRetries: 2})

	var out echoResponse
	require.NoError(t, c.PostJSON(context.Background(), "/echo", echoRequest{}, &out))
	assert.Equal(t, "ok", out.Output)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPostJSON_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad model"}`))
	}))
	defer server.Close()

	c := NewJSONClient(Config{BaseURL: server.URL, Timeout: time.Second, MaxRetries: 3})

	err := c.PostJSON(context.Background(), "/echo", echoRequest{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Contains(t, err.Error(), "bad model")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostJSON_AttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	c := NewJSONClient(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond})

	start := time.Now()
	err := c.PostJSON(context.Background(), "/slow", echoRequest{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPostJSON_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewJSONClient(Config{BaseURL: server.URL, MaxRetries: 5})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.PostJSON(ctx, "/echo", echoRequest{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
}

func TestStatusError_Retryable(t *testing.T) {
	assert.True(t, (&StatusError{StatusCode: 429}).Retryable())
	assert.True(t, (&StatusError{StatusCode: 502}).Retryable())
	assert.False(t, (&StatusError{StatusCode: 404}).Retryable())
}
