// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"benefit-matcher/internal/catalog"
	"benefit-matcher/internal/clients/embedding"
	"benefit-matcher/internal/clients/llm"
	"benefit-matcher/internal/clients/rerank"
	"benefit-matcher/internal/common/camunda"
	"benefit-matcher/internal/common/config"
	"benefit-matcher/internal/common/database"
	apperrors "benefit-matcher/internal/common/errors"
	"benefit-matcher/internal/common/logger"
	"benefit-matcher/internal/common/observability"
	"benefit-matcher/internal/matching"
	"benefit-matcher/internal/matching/explain"
	matchrerank "benefit-matcher/internal/matching/rerank"
	"benefit-matcher/internal/matching/semantic"

	mb "benefit-matcher/internal/workers/benefits/match-benefits"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker manager: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads CONFIG_FILE when it is set and the layered configs/
// lookup otherwise.
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	log, err := logger.NewFromConfig(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	log = log.WithFields(map[string]interface{}{
		"app":     cfg.App.Name,
		"version": cfg.App.Version,
	})
	log.Info("Starting worker manager...", nil)

	ctx := context.Background()

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()
	if err := obs.EnableTracing(ctx, cfg.App.Name, observability.TracingConfig{
		Endpoint:    cfg.Tracing.OTLPEndpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		Timeout:     config.GetDuration(cfg.Tracing.Timeout),
	}); err != nil {
		log.Warn("tracing disabled", map[string]interface{}{"error": err})
	}

	var checks []readinessCheck

	// --- Zeebe ---
	zeebe, err := camunda.NewClient(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	}, log)
	if err != nil {
		log.Error("zeebe client failed after retries", map[string]interface{}{"error": err})
		return err
	}
	defer func() {
		if err := zeebe.Close(); err != nil {
			log.Error("Error closing Zeebe client", map[string]interface{}{"error": err})
		}
	}()
	checks = append(checks, readinessCheck{"zeebe", zeebe.HealthCheck})

	// --- Redis (optional: embedding and catalog caches) ---
	var rdb *redis.Client
	if cfg.Database.Redis.Address != "" {
		var rc *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(ctx)
		}, 10, 2*time.Second, log, "Redis connection")
		if err != nil {
			log.Warn("redis unavailable, caches disabled", map[string]interface{}{"error": err})
		} else {
			defer rc.Close()
			rdb = rc.GetClient()
			checks = append(checks, readinessCheck{"redis", rc.Ping})
			log.Info("Redis connected successfully", nil)
		}
	}

	// --- Catalog store ---
	var store catalog.Store
	switch cfg.Catalog.Source {
	case config.CatalogSourceElasticsearch:
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			log.Error("elasticsearch failed after retries", map[string]interface{}{"error": err})
			return apperrors.NewElasticsearchConnectionFailedError(err)
		}
		checks = append(checks, readinessCheck{"elasticsearch", esClient.Ping})
		store = catalog.NewElasticsearchStore(esClient.Client, cfg.Catalog.Index, cfg.Catalog.MaxSize, log)
		log.Info("Elasticsearch connected successfully", nil)

	default:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			log.Error("postgres failed after retries", map[string]interface{}{"error": err})
			return apperrors.NewDatabaseConnectionFailedError(err)
		}
		defer pg.Close()
		checks = append(checks, readinessCheck{"postgres", pg.Ping})
		store = catalog.NewPostgresStore(pg.GetDB(), cfg.Catalog.Table, log)
		log.Info("PostgreSQL connected successfully", nil)
	}
	store = catalog.NewValidatingStore(store, log)
	if rdb != nil && cfg.Catalog.CacheTTL > 0 {
		store = catalog.NewCachedStore(store, rdb, "", time.Duration(cfg.Catalog.CacheTTL)*time.Second, log)
	}

	// --- Model services ---
	var embedder semantic.Embedder
	if svc := cfg.APIs.Embedding; svc.Enabled() {
		client := embedding.NewClient(&embedding.Config{
			BaseURL:           svc.BaseURL,
			APIKey:            svc.APIKey,
			Model:             svc.Model,
			Dimension:         svc.Dimension,
			Timeout:           config.GetDuration(svc.Timeout),
			MaxRetries:        svc.MaxRetries,
			RequestsPerMinute: svc.RequestsPerMinute,
		}, log)
		embedder = client
		if rdb != nil && svc.CacheTTL > 0 {
			embedder = embedding.NewCachedEmbedder(client, rdb, svc.Model, time.Duration(svc.CacheTTL)*time.Second, log)
		}
	} else {
		log.Warn("embedding service not configured, semantic ranking disabled", nil)
	}

	var reranker matchrerank.Reranker
	if svc := cfg.APIs.Rerank; svc.Enabled() {
		reranker = rerank.NewClient(&rerank.Config{
			BaseURL:           svc.BaseURL,
			APIKey:            svc.APIKey,
			Model:             svc.Model,
			Timeout:           config.GetDuration(svc.Timeout),
			MaxRetries:        svc.MaxRetries,
			RequestsPerMinute: svc.RequestsPerMinute,
		}, log)
	}

	var completer explain.Completer
	if svc := cfg.APIs.LLM; svc.Enabled() {
		completer = llm.NewClient(&llm.Config{
			BaseURL:           svc.BaseURL,
			APIKey:            svc.APIKey,
			Model:             svc.Model,
			Timeout:           config.GetDuration(svc.Timeout),
			MaxRetries:        svc.MaxRetries,
			RequestsPerMinute: svc.RequestsPerMinute,
			MaxTokens:         svc.MaxTokens,
			Temperature:       svc.Temperature,
		}, log)
	} else {
		log.Warn("LLM service not configured, matches get fallback analyses", nil)
	}

	matcher := matching.NewMatcher(matcherConfig(cfg.Matching), embedder, reranker, completer, log,
		matching.WithTracer(obs.Tracer()))

	// --- Workers ---
	var workers []*camunda.Worker
	if config.IsWorkerEnabled(cfg, mb.TaskType) {
		wcfg := config.GetWorkerConfig(cfg, mb.TaskType)
		handler := mb.NewHandler(
			&mb.Config{
				Timeout:        config.GetDuration(wcfg.Timeout),
				MaxCatalogSize: cfg.Catalog.MaxSize,
			},
			matcher, store, obs, log,
		)
		workers = append(workers, camunda.StartWorker(zeebe.Zeebe(), mb.TaskType, camunda.WorkerOptions{
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout),
		}, handler, log))
	} else {
		log.Info("worker disabled", map[string]interface{}{"taskType": mb.TaskType})
	}
	log.Info("workers registered", map[string]interface{}{"count": len(workers)})

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.check(checkCtx); err != nil {
				results[c.name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[c.name] = "ok"
		}
		state := "ready"
		if status != http.StatusOK {
			state = "not ready"
		}
		writeJSON(w, status, map[string]interface{}{
			"status": state,
			"checks": results,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Health/Metrics server failed", map[string]interface{}{"error": err})
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, stopping workers...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping health server", map[string]interface{}{"error": err})
	}

	log.Info("Worker manager stopped gracefully", nil)
	return nil
}

// matcherConfig maps the loaded configuration onto the engine's settings.
// Unset values keep the engine defaults.
func matcherConfig(mc config.MatchingConfig) matching.Config {
	cfg := matching.DefaultConfig()
	if mc.IncomeTolerance != nil {
		cfg.IncomeTolerance = *mc.IncomeTolerance
	}
	if mc.BM25K1 != nil {
		cfg.BM25K1 = *mc.BM25K1
	}
	if mc.BM25B != nil {
		cfg.BM25B = *mc.BM25B
	}
	if mc.RRFK != nil {
		cfg.RRFK = *mc.RRFK
	}
	if len(mc.Weights) > 0 {
		cfg.Weights = mc.Weights
	}
	if mc.RetrievalTopK > 0 {
		cfg.RetrievalTopK = mc.RetrievalTopK
	}
	if mc.FinalTopK > 0 {
		cfg.FinalTopK = mc.FinalTopK
	}
	if mc.RerankEnabled != nil {
		cfg.RerankEnabled = *mc.RerankEnabled
	}
	if mc.ParallelRetrieval != nil {
		cfg.ParallelRetrieval = *mc.ParallelRetrieval
	}
	if mc.EmbeddingBatchSize > 0 {
		cfg.Embedding.BatchSize = mc.EmbeddingBatchSize
	}
	if mc.EmbeddingBatchIntervalMs != nil {
		cfg.Embedding.BatchInterval = config.GetDuration(*mc.EmbeddingBatchIntervalMs)
	}
	if mc.ExplainBatchSize > 0 {
		cfg.Explain.BatchSize = mc.ExplainBatchSize
	}
	if mc.ExplainBatchIntervalMs != nil {
		cfg.Explain.BatchInterval = config.GetDuration(*mc.ExplainBatchIntervalMs)
	}
	return cfg
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
