// internal/matching/semantic/ranker.go
package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"benefit-matcher/internal/common/logger"

	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize     = 100
	DefaultBatchInterval = 200 * time.Millisecond
)

// Embedder turns texts into fixed-dimension vectors, one per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

type Config struct {
	BatchSize     int
	BatchInterval time.Duration
}

type Result struct {
	Index int
	Score float64
}

// Outcome is the ranking plus what went wrong while producing it.
type Outcome struct {
	Results       []Result
	FailedBatches int
	TotalBatches  int
	QueryFailed   bool
	Err           error
}

// Degraded reports whether any embedding call failed.
func (o Outcome) Degraded() bool {
	return o.QueryFailed || o.FailedBatches > 0
}

// Ranker ranks documents by cosine similarity to a query. Embedding calls
// share one limiter so batches are spaced by BatchInterval.
type Ranker struct {
	embedder Embedder
	config   Config
	limiter  *rate.Limiter
	logger   logger.Logger
}

func NewRanker(embedder Embedder, cfg Config, log logger.Logger) *Ranker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchInterval < 0 {
		cfg.BatchInterval = DefaultBatchInterval
	}
	limit := rate.Inf
	if cfg.BatchInterval > 0 {
		limit = rate.Every(cfg.BatchInterval)
	}
	return &Ranker{
		embedder: embedder,
		config:   cfg,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   log.WithFields(map[string]interface{}{"component": "semantic"}),
	}
}

// Rank never fails. A failed batch contributes zero vectors, which rank
// last; a failed query embedding leaves every score at zero in corpus order.
func (r *Ranker) Rank(ctx context.Context, query string, docs []string, topK int) Outcome {
	var out Outcome
	dim := r.embedder.Dimension()

	queryVecs, err := r.embed(ctx, []string{query}, dim)
	var queryVec []float64
	if err != nil {
		out.QueryFailed = true
		out.Err = err
		r.logger.Warn("query embedding failed", map[string]interface{}{"error": err})
	} else {
		queryVec = normalize(queryVecs[0])
	}

	vectors := make([][]float64, 0, len(docs))
	if !out.QueryFailed {
		for start := 0; start < len(docs); start += r.config.BatchSize {
			end := start + r.config.BatchSize
			if end > len(docs) {
				end = len(docs)
			}
			out.TotalBatches++

			batch, err := r.embed(ctx, docs[start:end], dim)
			if err != nil {
				out.FailedBatches++
				out.Err = err
				r.logger.Warn("embedding batch failed, using zero vectors", map[string]interface{}{
					"batchStart": start,
					"batchSize":  end - start,
					"error":      err,
				})
				batch = zeroVectors(end-start, dim)
			}
			for _, v := range batch {
				vectors = append(vectors, normalize(v))
			}
		}
	}

	results := make([]Result, len(docs))
	for i := range docs {
		results[i] = Result{Index: i}
		if queryVec != nil && i < len(vectors) {
			results[i].Score = dot(queryVec, vectors[i])
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	out.Results = results
	return out
}

func (r *Ranker) embed(ctx context.Context, texts []string, dim int) ([][]float64, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	vecs, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(vecs))
	}
	for i, v := range vecs {
		if dim > 0 && len(v) != dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return vecs, nil
}

func zeroVectors(n, dim int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, dim)
	}
	return out
}

// normalize returns v scaled to unit length. Zero vectors stay zero.
func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	out := make([]float64, len(v))
	if sum == 0 {
		return out
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

func dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
