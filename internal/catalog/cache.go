// internal/catalog/cache.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"benefit-matcher/internal/common/logger"
	"benefit-matcher/internal/models"

	"github.com/redis/go-redis/v9"
)

// CachedStore keeps a JSON snapshot of the inner store's catalog in Redis.
// Redis errors fall through to the inner store.
type CachedStore struct {
	inner  Store
	redis  *redis.Client
	key    string
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedStore(inner Store, rdb *redis.Client, key string, ttl time.Duration, log logger.Logger) *CachedStore {
	if key == "" {
		key = "catalog:snapshot"
	}
	return &CachedStore{
		inner:  inner,
		redis:  rdb,
		key:    key,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "catalog_cache"}),
	}
}

func (s *CachedStore) Load(ctx context.Context) ([]models.Benefit, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	switch {
	case err == nil:
		var benefits []models.Benefit
		if err := json.Unmarshal(data, &benefits); err == nil {
			return benefits, nil
		}
		s.logger.Warn("discarding corrupt catalog snapshot", map[string]interface{}{"key": s.key})
	case errors.Is(err, redis.Nil):
	default:
		s.logger.Warn("catalog cache read failed", map[string]interface{}{"error": err})
	}

	benefits, err := s.inner.Load(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(benefits)
	if err == nil {
		err = s.redis.Set(ctx, s.key, payload, s.ttl).Err()
	}
	if err != nil {
		s.logger.Warn("catalog cache write failed", map[string]interface{}{"error": err})
	}
	return benefits, nil
}

// Invalidate drops the snapshot so the next Load reads the inner store.
func (s *CachedStore) Invalidate(ctx context.Context) error {
	return s.redis.Del(ctx, s.key).Err()
}
