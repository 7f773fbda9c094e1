package main

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"benefit-matcher/internal/common/config"
	"benefit-matcher/internal/common/logger"
	"benefit-matcher/internal/matching"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float(f float64) *float64 { return &f }

func TestMatcherConfig_ExplicitZeroIsKept(t *testing.T) {
	cfg := matcherConfig(config.MatchingConfig{
		IncomeTolerance: float(0),
		BM25B:           float(0),
	})

	assert.Equal(t, 0.0, cfg.IncomeTolerance)
	assert.Equal(t, 0.0, cfg.BM25B)
	assert.Equal(t, matching.DefaultConfig().BM25K1, cfg.BM25K1)
}

func TestMatcherConfig_UnsetKeepsDefaults(t *testing.T) {
	assert.Equal(t, matching.DefaultConfig(), matcherConfig(config.MatchingConfig{}))
}

func TestMatcherConfig_Overrides(t *testing.T) {
	rerank := false
	interval := 0
	cfg := matcherConfig(config.MatchingConfig{
		RRFK:                     float(10),
		FinalTopK:                3,
		RerankEnabled:            &rerank,
		EmbeddingBatchIntervalMs: &interval,
	})

	assert.Equal(t, 10.0, cfg.RRFK)
	assert.Equal(t, 3, cfg.FinalTopK)
	assert.False(t, cfg.RerankEnabled)
	assert.Equal(t, time.Duration(0), cfg.Embedding.BatchInterval)
}

func TestLoadConfig_UsesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
camunda:
  broker_address: zeebe:26500
catalog:
  source: elasticsearch
database:
  elasticsearch:
    url: http://es:9200
matching:
  income_tolerance: 0
`), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := loadConfig()

	require.NoError(t, err)
	assert.Equal(t, "zeebe:26500", cfg.Camunda.BrokerAddress)
	assert.Equal(t, config.CatalogSourceElasticsearch, cfg.Catalog.Source)
	assert.Equal(t, 0.0, matcherConfig(cfg.Matching).IncomeTolerance)
}

func TestLoadConfig_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := loadConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.yaml")
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := retryWithBackoff(func() error {
		calls++
		if calls < 2 {
			return stderrors.New("connection refused")
		}
		return nil
	}, 3, time.Millisecond, logger.NewTestLogger(t), "PostgreSQL connection")

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryWithBackoff_GivesUp(t *testing.T) {
	cause := stderrors.New("connection refused")
	calls := 0
	err := retryWithBackoff(func() error {
		calls++
		return cause
	}, 3, time.Millisecond, logger.NewTestLogger(t), "PostgreSQL connection")

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "after 3 attempts")
}
