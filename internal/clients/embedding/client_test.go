package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"benefit-matcher/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingServer returns a 2-dim vector [len(text), index] per input,
// in reverse order to exercise index sorting.
func fakeEmbeddingServer(t *testing.T, calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/embeddings", r.URL.Path)

		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		type item struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float64{float64(len(req.Input[i])), float64(i)}})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
}

func newTestClient(t *testing.T, url string) *Client {
	return NewClient(&Config{
		BaseURL:   url,
		Model:     "text-embedding-3-small",
		Dimension: 2,
		Timeout:   time.Second,
	}, logger.NewTestLogger(t))
}

func TestClient_Embed(t *testing.T) {
	var calls int32
	server := fakeEmbeddingServer(t, &calls)
	defer server.Close()

	c := newTestClient(t, server.URL)
	vectors, err := c.Embed(context.Background(), []string{"a", "bbb"})

	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {3, 1}}, vectors)
	assert.Equal(t, 2, c.Dimension())
}

func TestClient_Embed_Empty(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0")
	vectors, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestClient_Embed_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "service error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			wantErr: ErrEmbeddingFailed,
		},
		{
			name: "count mismatch",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,2]}]}`))
			},
			wantErr: ErrMalformedResponse,
		},
		{
			name: "wrong dimension",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]},{"index":1,"embedding":[1]}]}`))
			},
			wantErr: ErrMalformedResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := newTestClient(t, server.URL).Embed(context.Background(), []string{"a", "b"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), err.Error())
		})
	}
}

func TestCachedEmbedder_HitsSkipService(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	var calls int32
	server := fakeEmbeddingServer(t, &calls)
	defer server.Close()

	cached := NewCachedEmbedder(newTestClient(t, server.URL), rdb, "text-embedding-3-small", time.Hour, logger.NewTestLogger(t))

	first, err := cached.Embed(context.Background(), []string{"aa", "bbbb"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	second, err := cached.Embed(context.Background(), []string{"bbbb", "aa"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[1])

	// only the new text goes to the service
	third, err := cached.Embed(context.Background(), []string{"aa", "ccccc"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, []float64{5, 0}, third[1])

	assert.True(t, mr.TTL(cached.key("aa")) > 0)
}

func TestCachedEmbedder_RedisDownFallsThrough(t *testing.T) {
	rdb, mock := redismock.NewClientMock()

	var calls int32
	server := fakeEmbeddingServer(t, &calls)
	defer server.Close()

	cached := NewCachedEmbedder(newTestClient(t, server.URL), rdb, "text-embedding-3-small", time.Hour, logger.NewTestLogger(t))
	mock.ExpectMGet(cached.key("x")).SetErr(errors.New("connection refused"))
	mock.ExpectSet(cached.key("x"), []byte("[1,0]"), time.Hour).SetErr(errors.New("connection refused"))

	vectors, err := cached.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}}, vectors)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedEmbedder_WriteFailureKeepsAllVectors(t *testing.T) {
	rdb, mock := redismock.NewClientMock()

	var calls int32
	server := fakeEmbeddingServer(t, &calls)
	defer server.Close()

	cached := NewCachedEmbedder(newTestClient(t, server.URL), rdb, "text-embedding-3-small", time.Hour, logger.NewTestLogger(t))
	mock.ExpectMGet(cached.key("aa"), cached.key("bbbb")).SetVal([]interface{}{nil, nil})
	mock.ExpectSet(cached.key("aa"), []byte("[2,0]"), time.Hour).SetErr(errors.New("READONLY You can't write against a read only replica"))

	vectors, err := cached.Embed(context.Background(), []string{"aa", "bbbb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 0}, {4, 1}}, vectors)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.NoError(t, mock.ExpectationsWereMet())
}
