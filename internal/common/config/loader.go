// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	CatalogSourcePostgres      = "postgres"
	CatalogSourceElasticsearch = "elasticsearch"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	bindEnv(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// environment overlay is optional
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func bindEnv(v *viper.Viper) {
	// APIS_LLM_API_KEY overrides apis.llm.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from the conventional variable names
// when the config file leaves them empty.
func overrideEmptyConfig(cfg *Config) {
	overrides := []struct {
		target *string
		env    string
	}{
		{&cfg.APIs.LLM.APIKey, "LLM_API_KEY"},
		{&cfg.APIs.Embedding.APIKey, "EMBEDDING_API_KEY"},
		{&cfg.APIs.Rerank.APIKey, "RERANK_API_KEY"},
		{&cfg.Database.Postgres.User, "DB_USER"},
		{&cfg.Database.Postgres.Password, "DB_PASSWORD"},
		{&cfg.Database.Redis.Password, "REDIS_PASSWORD"},
	}
	for _, o := range overrides {
		if *o.target == "" {
			if val := os.Getenv(o.env); val != "" {
				*o.target = val
			}
		}
	}
	// shared key for OpenAI-compatible providers
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		if cfg.APIs.LLM.APIKey == "" {
			cfg.APIs.LLM.APIKey = val
		}
		if cfg.APIs.Embedding.APIKey == "" {
			cfg.APIs.Embedding.APIKey = val
		}
	}
}

func boolPtr(b bool) *bool        { return &b }
func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "benefit-matcher"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	if cfg.APIs.LLM.Timeout == 0 {
		cfg.APIs.LLM.Timeout = 60000
	}
	for _, svc := range []*ServiceConfig{&cfg.APIs.LLM, &cfg.APIs.Embedding, &cfg.APIs.Rerank} {
		if svc.Timeout == 0 {
			svc.Timeout = 30000
		}
		if svc.MaxRetries == 0 {
			svc.MaxRetries = 2
		}
	}
	if cfg.APIs.LLM.MaxTokens == 0 {
		cfg.APIs.LLM.MaxTokens = 4000
	}
	if cfg.APIs.Embedding.Dimension == 0 {
		cfg.APIs.Embedding.Dimension = 1536
	}
	if cfg.APIs.Embedding.CacheTTL == 0 {
		cfg.APIs.Embedding.CacheTTL = 86400
	}

	m := &cfg.Matching
	if m.IncomeTolerance == nil {
		m.IncomeTolerance = floatPtr(0.05)
	}
	if m.BM25K1 == nil {
		m.BM25K1 = floatPtr(1.5)
	}
	if m.BM25B == nil {
		m.BM25B = floatPtr(0.75)
	}
	if m.RRFK == nil {
		m.RRFK = floatPtr(60)
	}
	if m.Weights == nil {
		m.Weights = map[string]float64{}
	}
	if _, ok := m.Weights["bm25"]; !ok {
		m.Weights["bm25"] = 0.3
	}
	if _, ok := m.Weights["embeddings"]; !ok {
		m.Weights["embeddings"] = 0.7
	}
	if m.RetrievalTopK == 0 {
		m.RetrievalTopK = 50
	}
	if m.FinalTopK == 0 {
		m.FinalTopK = 15
	}
	if m.RerankEnabled == nil {
		m.RerankEnabled = boolPtr(true)
	}
	if m.ParallelRetrieval == nil {
		m.ParallelRetrieval = boolPtr(true)
	}
	if m.EmbeddingBatchSize == 0 {
		m.EmbeddingBatchSize = 100
	}
	if m.EmbeddingBatchIntervalMs == nil {
		m.EmbeddingBatchIntervalMs = intPtr(200)
	}
	if m.ExplainBatchSize == 0 {
		m.ExplainBatchSize = 5
	}
	if m.ExplainBatchIntervalMs == nil {
		m.ExplainBatchIntervalMs = intPtr(1000)
	}

	if cfg.Catalog.Source == "" {
		cfg.Catalog.Source = CatalogSourcePostgres
	}
	if cfg.Catalog.Table == "" {
		cfg.Catalog.Table = "benefits"
	}
	if cfg.Catalog.Index == "" {
		cfg.Catalog.Index = "benefits"
	}
	if cfg.Catalog.MaxSize == 0 {
		cfg.Catalog.MaxSize = 1000
	}
	if cfg.Catalog.CacheTTL == 0 {
		cfg.Catalog.CacheTTL = 300
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}
	if cfg.Tracing.Timeout == 0 {
		cfg.Tracing.Timeout = 10000
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	switch cfg.Catalog.Source {
	case CatalogSourcePostgres:
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	case CatalogSourceElasticsearch:
		if cfg.Database.Elasticsearch.GetURL() == "" {
			return fmt.Errorf("database.elasticsearch.addresses or url is required")
		}
	default:
		return fmt.Errorf("catalog.source must be %q or %q, got %q", CatalogSourcePostgres, CatalogSourceElasticsearch, cfg.Catalog.Source)
	}

	m := cfg.Matching
	if tol := *m.IncomeTolerance; tol < 0 || tol >= 1 {
		return fmt.Errorf("matching.income_tolerance must be in [0, 1), got %v", tol)
	}
	if b := *m.BM25B; b < 0 || b > 1 {
		return fmt.Errorf("matching.bm25_b must be in [0, 1], got %v", b)
	}
	if *m.BM25K1 < 0 || *m.RRFK < 0 {
		return fmt.Errorf("matching.bm25_k1 and matching.rrf_k must not be negative")
	}
	for method, w := range m.Weights {
		if w < 0 {
			return fmt.Errorf("matching.weights.%s must not be negative", method)
		}
	}
	if m.FinalTopK < 0 || m.RetrievalTopK < 0 {
		return fmt.Errorf("matching top-k values must not be negative")
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be in [0, 1]")
	}

	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
