// internal/common/config/config.go
package config

import "fmt"

type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	APIs     APIsConfig              `mapstructure:"apis"`
	Matching MatchingConfig          `mapstructure:"matching"`
	Catalog  CatalogConfig           `mapstructure:"catalog"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Tracing  TracingConfig           `mapstructure:"tracing"`
	Server   ServerConfig            `mapstructure:"server"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// ServiceConfig describes one external model service.
type ServiceConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	Timeout           int     `mapstructure:"timeout"` // milliseconds
	MaxRetries        int     `mapstructure:"max_retries"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
	Dimension         int     `mapstructure:"dimension"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	CacheTTL          int     `mapstructure:"cache_ttl"` // seconds
}

// Enabled reports whether the service has an endpoint configured.
func (s ServiceConfig) Enabled() bool {
	return s.BaseURL != ""
}

type APIsConfig struct {
	LLM       ServiceConfig `mapstructure:"llm"`
	Embedding ServiceConfig `mapstructure:"embedding"`
	Rerank    ServiceConfig `mapstructure:"rerank"`
}

// MatchingConfig holds the engine's tuning constants.
type MatchingConfig struct {
	IncomeTolerance          *float64           `mapstructure:"income_tolerance"`
	BM25K1                   *float64           `mapstructure:"bm25_k1"`
	BM25B                    *float64           `mapstructure:"bm25_b"`
	RRFK                     *float64           `mapstructure:"rrf_k"`
	Weights                  map[string]float64 `mapstructure:"weights"`
	RetrievalTopK            int                `mapstructure:"retrieval_top_k"`
	FinalTopK                int                `mapstructure:"final_top_k"`
	RerankEnabled            *bool              `mapstructure:"rerank_enabled"`
	ParallelRetrieval        *bool              `mapstructure:"parallel_retrieval"`
	EmbeddingBatchSize       int                `mapstructure:"embedding_batch_size"`
	EmbeddingBatchIntervalMs *int               `mapstructure:"embedding_batch_interval_ms"`
	ExplainBatchSize         int                `mapstructure:"explain_batch_size"`
	ExplainBatchIntervalMs   *int               `mapstructure:"explain_batch_interval_ms"`
}

type CatalogConfig struct {
	Source   string `mapstructure:"source"` // postgres | elasticsearch
	Table    string `mapstructure:"table"`
	Index    string `mapstructure:"index"`
	MaxSize  int    `mapstructure:"max_size"`
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Timeout      int     `mapstructure:"timeout"` // milliseconds
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}
