// internal/clients/embedding/cache.go
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"benefit-matcher/internal/common/logger"
	"benefit-matcher/internal/common/metrics"
	"benefit-matcher/internal/matching/semantic"

	"github.com/redis/go-redis/v9"
)

const DefaultCacheTTL = 24 * time.Hour

// CachedEmbedder keeps vectors in Redis keyed by model and text hash.
// Redis failures are logged and the inner embedder is used directly.
type CachedEmbedder struct {
	inner  semantic.Embedder
	redis  *redis.Client
	model  string
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedEmbedder(inner semantic.Embedder, rdb *redis.Client, model string, ttl time.Duration, log logger.Logger) *CachedEmbedder {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedEmbedder{
		inner:  inner,
		redis:  rdb,
		model:  model,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "embedding_cache"}),
	}
}

func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.model + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float64, len(texts))
	var missIdx []int

	cached, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		metrics.EmbeddingCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("embedding cache read failed", map[string]interface{}{"error": err})
		cached = nil
	}
	for i := range texts {
		if cached != nil {
			if s, ok := cached[i].(string); ok {
				var v []float64
				if json.Unmarshal([]byte(s), &v) == nil {
					out[i] = v
					metrics.EmbeddingCacheLookups.WithLabelValues("hit").Inc()
					continue
				}
			}
			metrics.EmbeddingCacheLookups.WithLabelValues("miss").Inc()
		}
		missIdx = append(missIdx, i)
	}

	if len(missIdx) == 0 {
		return out, nil
	}

	missing := make([]string, len(missIdx))
	for j, i := range missIdx {
		missing[j] = texts[i]
	}
	vectors, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		// let the ranker deal with the mismatch; nothing is cached
		return vectors, nil
	}

	for j, i := range missIdx {
		out[i] = vectors[j]
	}
	c.store(ctx, keys, missIdx, out)
	return out, nil
}

// store writes freshly embedded vectors back. The first failed write stops
// the loop; out is already complete by then.
func (c *CachedEmbedder) store(ctx context.Context, keys []string, missIdx []int, out [][]float64) {
	for _, i := range missIdx {
		payload, err := json.Marshal(out[i])
		if err != nil {
			continue
		}
		if err := c.redis.Set(ctx, keys[i], payload, c.ttl).Err(); err != nil {
			metrics.EmbeddingCacheLookups.WithLabelValues("error").Inc()
			c.logger.Warn("embedding cache write failed", map[string]interface{}{"error": err})
			return
		}
	}
}
