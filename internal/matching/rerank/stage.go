// internal/matching/rerank/stage.go
package rerank

import (
	"context"
	"fmt"

	"benefit-matcher/internal/common/logger"
)

// Scored is one reranked document. Index points into the documents passed
// to the reranker.
type Scored struct {
	Index          int
	RelevanceScore float64
}

// Reranker is an external cross-encoder style service. It returns results
// best first; topN <= 0 asks for every document.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]Scored, error)
}

type Outcome struct {
	Results  []Scored
	Degraded bool
	Err      error
}

// Stage applies a Reranker and falls back to identity order with zero
// scores when it fails or answers with out-of-range indices.
type Stage struct {
	reranker Reranker
	logger   logger.Logger
}

func NewStage(r Reranker, log logger.Logger) *Stage {
	return &Stage{
		reranker: r,
		logger:   log.WithFields(map[string]interface{}{"component": "rerank"}),
	}
}

func (s *Stage) Apply(ctx context.Context, query string, documents []string, topN int) Outcome {
	if len(documents) == 0 {
		return Outcome{Results: []Scored{}}
	}
	if s.reranker == nil {
		return Outcome{Results: Identity(len(documents), topN)}
	}

	results, err := s.reranker.Rerank(ctx, query, documents, topN)
	if err == nil {
		err = check(results, len(documents))
	}
	if err != nil {
		s.logger.Warn("rerank failed, keeping fused order", map[string]interface{}{
			"documents": len(documents),
			"error":     err,
		})
		return Outcome{Results: Identity(len(documents), topN), Degraded: true, Err: err}
	}
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return Outcome{Results: results}
}

func check(results []Scored, n int) error {
	seen := make(map[int]bool, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= n {
			return fmt.Errorf("rerank index %d out of range [0,%d)", r.Index, n)
		}
		if seen[r.Index] {
			return fmt.Errorf("rerank index %d returned twice", r.Index)
		}
		seen[r.Index] = true
	}
	return nil
}

// Identity is the fallback ordering: documents in input order, zero scores.
func Identity(n, topN int) []Scored {
	if topN > 0 && topN < n {
		n = topN
	}
	out := make([]Scored, n)
	for i := range out {
		out[i] = Scored{Index: i}
	}
	return out
}
