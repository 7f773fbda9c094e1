// internal/matching/fusion/rrf.go
package fusion

import "sort"

const (
	DefaultK = 60.0

	MethodBM25       = "bm25"
	MethodEmbeddings = "embeddings"
)

// DefaultWeights favour the semantic ranking over the lexical one.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		MethodBM25:       0.3,
		MethodEmbeddings: 0.7,
	}
}

// Ranking is one method's ordering of candidate indices, best first.
type Ranking struct {
	Method  string
	Indices []int
}

// Fused is a candidate's combined score. Ranks holds the 1-based position
// per method the candidate appeared in.
type Fused struct {
	Index int
	Score float64
	Ranks map[string]int
}

// RRF performs weighted reciprocal rank fusion:
// score(d) = sum over methods of weight / (k + rank + 1), rank 0-based.
type RRF struct {
	K       float64
	Weights map[string]float64
}

func NewRRF(k float64, weights map[string]float64) *RRF {
	if k <= 0 {
		k = DefaultK
	}
	if weights == nil {
		weights = DefaultWeights()
	}
	return &RRF{K: k, Weights: weights}
}

func (r *RRF) weight(method string) float64 {
	if w, ok := r.Weights[method]; ok {
		return w
	}
	return 1.0
}

// Fuse merges rankings over the union of their candidates. Ties are broken
// by lower candidate index. topK <= 0 keeps every candidate.
func (r *RRF) Fuse(rankings []Ranking, topK int) []Fused {
	byIndex := make(map[int]*Fused)
	for _, ranking := range rankings {
		w := r.weight(ranking.Method)
		for pos, idx := range ranking.Indices {
			f, ok := byIndex[idx]
			if !ok {
				f = &Fused{Index: idx, Ranks: make(map[string]int)}
				byIndex[idx] = f
			}
			if _, seen := f.Ranks[ranking.Method]; seen {
				continue
			}
			f.Ranks[ranking.Method] = pos + 1
			f.Score += w / (r.K + float64(pos) + 1)
		}
	}

	out := make([]Fused, 0, len(byIndex))
	for _, f := range byIndex {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Index < out[j].Index
	})
	if topK > 0 && topK < len(out) {
		out = out[:topK]
	}
	return out
}
