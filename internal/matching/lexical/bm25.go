// internal/matching/lexical/bm25.go
package lexical

import (
	"sort"
	"strings"
)

const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Result is one ranked document. Index points into the ranked corpus.
type Result struct {
	Index int
	Score float64
}

// Tokenize lowercases text, drops everything outside [a-z0-9] and emits
// overlapping character trigrams. Cleaned text shorter than three characters
// is returned whole as a single token, possibly empty.
func Tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if len(clean) < 3 {
		return []string{clean}
	}
	tokens := make([]string, 0, len(clean)-2)
	for i := 0; i+3 <= len(clean); i++ {
		tokens = append(tokens, clean[i:i+3])
	}
	return tokens
}

// BM25 scores documents against a query with trigram tokens. There is no
// IDF factor; every query trigram contributes its saturated term frequency.
type BM25 struct {
	K1 float64
	B  float64
}

func New(k1, b float64) *BM25 {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b < 0 || b > 1 {
		b = DefaultB
	}
	return &BM25{K1: k1, B: b}
}

// Score returns one score per document, in corpus order.
func (m *BM25) Score(query string, docs []string) []float64 {
	scores := make([]float64, len(docs))
	if len(docs) == 0 {
		return scores
	}

	freqs := make([]map[string]int, len(docs))
	lengths := make([]int, len(docs))
	total := 0
	for i, d := range docs {
		tokens := Tokenize(d)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		freqs[i] = tf
		lengths[i] = len(tokens)
		total += len(tokens)
	}
	avgLen := float64(total) / float64(len(docs))

	queryTokens := Tokenize(query)
	for i := range docs {
		norm := 1 - m.B
		if avgLen > 0 {
			norm += m.B * float64(lengths[i]) / avgLen
		}
		var s float64
		// Repeated query tokens count every time.
		for _, qt := range queryTokens {
			tf := float64(freqs[i][qt])
			if tf == 0 {
				continue
			}
			s += tf * (m.K1 + 1) / (tf + m.K1*norm)
		}
		scores[i] = s
	}
	return scores
}

// Rank returns the topK documents by score, highest first. Ties keep corpus
// order. topK <= 0 returns every document.
func (m *BM25) Rank(query string, docs []string, topK int) []Result {
	scores := m.Score(query, docs)
	results := make([]Result, len(scores))
	for i, s := range scores {
		results[i] = Result{Index: i, Score: s}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results
}
