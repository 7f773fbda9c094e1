// internal/matching/matcher.go
package matching

import (
	"context"
	"fmt"
	"time"

	"benefit-matcher/internal/common/logger"
	"benefit-matcher/internal/common/metrics"
	"benefit-matcher/internal/matching/amount"
	"benefit-matcher/internal/matching/eligibility"
	"benefit-matcher/internal/matching/explain"
	"benefit-matcher/internal/matching/fusion"
	"benefit-matcher/internal/matching/lexical"
	"benefit-matcher/internal/matching/rerank"
	"benefit-matcher/internal/matching/semantic"
	"benefit-matcher/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Config carries every tuning constant of the pipeline.
type Config struct {
	IncomeTolerance   float64
	BM25K1            float64
	BM25B             float64
	RRFK              float64
	Weights           map[string]float64
	RetrievalTopK     int
	FinalTopK         int
	RerankEnabled     bool
	ParallelRetrieval bool
	Embedding         semantic.Config
	Explain           explain.Config
}

func DefaultConfig() Config {
	return Config{
		IncomeTolerance:   eligibility.DefaultIncomeTolerance,
		BM25K1:            lexical.DefaultK1,
		BM25B:             lexical.DefaultB,
		RRFK:              fusion.DefaultK,
		Weights:           fusion.DefaultWeights(),
		RetrievalTopK:     50,
		FinalTopK:         15,
		RerankEnabled:     true,
		ParallelRetrieval: true,
		Embedding: semantic.Config{
			BatchSize:     semantic.DefaultBatchSize,
			BatchInterval: semantic.DefaultBatchInterval,
		},
		Explain: explain.Config{
			BatchSize:     explain.DefaultBatchSize,
			BatchInterval: explain.DefaultBatchInterval,
		},
	}
}

// Options adjust a single Match call.
type Options struct {
	RequestID string
	// Rerank overrides Config.RerankEnabled when set.
	Rerank *bool
}

type Result struct {
	RequestID   string                 `json:"requestId"`
	Matches     []models.MatchAnalysis `json:"matches"`
	Rejected    models.RejectionLedger `json:"rejected"`
	Diagnostics []StageReport          `json:"diagnostics"`
}

// Degraded reports whether any stage fell back.
func (r *Result) Degraded() bool {
	for _, d := range r.Diagnostics {
		if d.Status == StatusDegraded || d.Status == StatusFailed {
			return true
		}
	}
	return false
}

type Option func(*Matcher)

func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

func WithAmountRegistry(r *amount.Registry) Option {
	return func(m *Matcher) { m.amounts = r }
}

func WithTracer(t trace.Tracer) Option {
	return func(m *Matcher) { m.tracer = t }
}

// Matcher is the benefit matching engine. It is safe for concurrent use;
// each call works on its own copies of the inputs.
type Matcher struct {
	config    Config
	filter    *eligibility.Filter
	lexical   *lexical.BM25
	semantic  *semantic.Ranker
	fusion    *fusion.RRF
	reranker  *rerank.Stage
	explainer *explain.Engine
	amounts   *amount.Registry
	tracer    trace.Tracer
	now       func() time.Time
	logger    logger.Logger
}

// NewMatcher wires the pipeline. A nil embedder disables semantic ranking
// and a nil reranker disables reranking; a nil completer yields fallback
// analyses for every match.
func NewMatcher(cfg Config, embedder semantic.Embedder, reranker rerank.Reranker, completer explain.Completer, log logger.Logger, opts ...Option) *Matcher {
	log = log.WithFields(map[string]interface{}{"component": "matcher"})
	m := &Matcher{
		config:    cfg,
		filter:    eligibility.NewFilter(cfg.IncomeTolerance, log),
		lexical:   lexical.New(cfg.BM25K1, cfg.BM25B),
		fusion:    fusion.NewRRF(cfg.RRFK, cfg.Weights),
		explainer: explain.NewEngine(completer, cfg.Explain, log),
		amounts:   amount.DefaultRegistry(),
		tracer:    otel.Tracer("benefit-matcher/matching"),
		now:       time.Now,
		logger:    log,
	}
	if embedder != nil {
		m.semantic = semantic.NewRanker(embedder, cfg.Embedding, log)
	}
	if reranker != nil {
		m.reranker = rerank.NewStage(reranker, log)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match runs the full pipeline. It never fails; degraded stages are listed
// in Result.Diagnostics.
func (m *Matcher) Match(ctx context.Context, profile *models.UserProfile, catalog []models.Benefit) *Result {
	return m.MatchWithOptions(ctx, profile, catalog, Options{})
}

func (m *Matcher) MatchWithOptions(ctx context.Context, profile *models.UserProfile, catalog []models.Benefit, opts Options) *Result {
	start := time.Now()
	if profile == nil {
		profile = &models.UserProfile{}
	}
	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	rerankEnabled := m.config.RerankEnabled
	if opts.Rerank != nil {
		rerankEnabled = *opts.Rerank
	}

	ctx, span := m.tracer.Start(ctx, "match", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.Int("catalog.size", len(catalog)),
	))
	defer span.End()

	log := m.logger.WithFields(map[string]interface{}{"requestId": requestID})
	res := &Result{
		RequestID:   requestID,
		Matches:     []models.MatchAnalysis{},
		Rejected:    models.EmptyLedger(),
		Diagnostics: []StageReport{},
	}
	rejected := make(map[string][]string)

	// 1. eligibility
	var viable []eligibility.Candidate
	res.Diagnostics = append(res.Diagnostics, m.runStage(ctx, StageEligibility, func(context.Context) (StageStatus, string) {
		out := m.filter.Apply(profile, catalog)
		viable = out.Viable
		for id, reasons := range out.Rejected {
			rejected[id] = append(rejected[id], reasons...)
		}
		metrics.MatchBenefitsRejected.WithLabelValues(StageEligibility).Add(float64(len(out.Rejected)))
		detail := fmt.Sprintf("%d viable, %d rejected", len(out.Viable), len(out.Rejected))
		if len(out.Unevaluable) > 0 {
			return StatusDegraded, fmt.Sprintf("%s, %d unevaluable", detail, len(out.Unevaluable))
		}
		return StatusSuccess, detail
	}))

	if len(viable) == 0 {
		res.Rejected = buildLedger(rejected, len(catalog))
		m.finish(ctx, log, res, "no_viable", start)
		return res
	}

	// 2. text projection
	query := ProfileText(profile)
	docs := make([]string, len(viable))
	for i := range viable {
		docs[i] = BenefitText(&viable[i].Benefit)
	}

	// 3. hybrid retrieval
	order, provenance := m.retrieve(ctx, res, query, docs, rerankEnabled)

	selected := make([]models.Benefit, len(order))
	for i, idx := range order {
		selected[i] = viable[idx].Benefit
	}

	// 4. explanation
	var analyses []models.MatchAnalysis
	res.Diagnostics = append(res.Diagnostics, m.runStage(ctx, StageExplain, func(ctx context.Context) (StageStatus, string) {
		out := m.explainer.Explain(ctx, profile, selected)
		analyses = out.Analyses
		detail := fmt.Sprintf("%d analyses, %d fallbacks, %d/%d batches failed", len(out.Analyses), out.Fallbacks, out.FailedBatches, out.TotalBatches)
		switch {
		case out.TotalBatches > 0 && out.FailedBatches == out.TotalBatches:
			return StatusFailed, detail
		case out.Degraded():
			return StatusDegraded, detail
		}
		return StatusSuccess, detail
	}))

	// 5. enrichment
	res.Diagnostics = append(res.Diagnostics, m.runStage(ctx, StageEnrich, func(context.Context) (StageStatus, string) {
		now := m.now()
		for i := range analyses {
			idx := order[i]
			b := &viable[idx].Benefit
			a := &analyses[i]
			a.Retrieval = provenance[idx]
			a.EstimatedAmount = m.amounts.Estimate(b, profile)
			a.Priority = Priority(a.MatchScore)
			a.Urgency = Urgency(b.Application, now)
			a.MatchStatus = viable[idx].MatchStatus
		}
		return StatusSuccess, fmt.Sprintf("%d enriched", len(analyses))
	}))

	// 6. hard requirement veto
	res.Diagnostics = append(res.Diagnostics, m.runStage(ctx, StageHardFilter, func(context.Context) (StageStatus, string) {
		kept := make([]models.MatchAnalysis, 0, len(analyses))
		vetoed := 0
		for _, a := range analyses {
			if unmet := a.UnmetHardRequirements(); len(unmet) > 0 {
				rejected[a.BenefitID] = append(rejected[a.BenefitID], hardRequirementReasons(unmet)...)
				vetoed++
				continue
			}
			kept = append(kept, a)
		}
		metrics.MatchBenefitsRejected.WithLabelValues(StageHardFilter).Add(float64(vetoed))
		analyses = kept
		return StatusSuccess, fmt.Sprintf("%d removed", vetoed)
	}))

	// 7. final ordering
	sortMatches(analyses)
	res.Matches = analyses
	res.Rejected = buildLedger(rejected, len(catalog))

	outcome := "matched"
	if res.Degraded() {
		outcome = "degraded"
	}
	m.finish(ctx, log, res, outcome, start)
	return res
}

// retrieve runs lexical and semantic ranking, fuses them and optionally
// reranks. It returns viable indices in final order and per-index provenance.
func (m *Matcher) retrieve(ctx context.Context, res *Result, query string, docs []string, rerankEnabled bool) ([]int, map[int]models.RetrievalInfo) {
	var (
		lexResults []lexical.Result
		semOutcome semantic.Outcome
		lexReport  StageReport
		semReport  StageReport
	)

	runLexical := func() {
		lexReport = m.runStage(ctx, StageLexical, func(context.Context) (StageStatus, string) {
			lexResults = m.lexical.Rank(query, docs, m.config.RetrievalTopK)
			return StatusSuccess, fmt.Sprintf("%d ranked", len(lexResults))
		})
	}
	runSemantic := func() {
		if m.semantic == nil {
			semReport = skipped(StageSemantic, "no embedding service configured")
			return
		}
		semReport = m.runStage(ctx, StageSemantic, func(ctx context.Context) (StageStatus, string) {
			semOutcome = m.semantic.Rank(ctx, query, docs, m.config.RetrievalTopK)
			switch {
			case semOutcome.QueryFailed:
				return StatusFailed, fmt.Sprintf("query embedding failed: %v", semOutcome.Err)
			case semOutcome.FailedBatches > 0:
				return StatusDegraded, fmt.Sprintf("%d/%d batches used zero vectors: %v", semOutcome.FailedBatches, semOutcome.TotalBatches, semOutcome.Err)
			}
			return StatusSuccess, fmt.Sprintf("%d ranked", len(semOutcome.Results))
		})
	}

	if m.config.ParallelRetrieval {
		var g errgroup.Group
		g.Go(func() error { runLexical(); return nil })
		g.Go(func() error { runSemantic(); return nil })
		_ = g.Wait()
	} else {
		runLexical()
		runSemantic()
	}
	res.Diagnostics = append(res.Diagnostics, lexReport, semReport)

	provenance := make(map[int]models.RetrievalInfo, len(docs))
	lexIdx := make([]int, len(lexResults))
	for i, r := range lexResults {
		lexIdx[i] = r.Index
		p := provenance[r.Index]
		p.LexicalScore = r.Score
		provenance[r.Index] = p
	}
	rankings := []fusion.Ranking{{Method: fusion.MethodBM25, Indices: lexIdx}}
	if semReport.Status == StatusSuccess || semReport.Status == StatusDegraded {
		semIdx := make([]int, len(semOutcome.Results))
		for i, r := range semOutcome.Results {
			semIdx[i] = r.Index
			p := provenance[r.Index]
			p.SemanticScore = r.Score
			provenance[r.Index] = p
		}
		rankings = append(rankings, fusion.Ranking{Method: fusion.MethodEmbeddings, Indices: semIdx})
	}

	finalK := m.config.FinalTopK
	fuseK := finalK
	if rerankEnabled && m.reranker != nil && finalK > 0 {
		fuseK = finalK * 2
	}

	var fused []fusion.Fused
	res.Diagnostics = append(res.Diagnostics, m.runStage(ctx, StageFusion, func(context.Context) (StageStatus, string) {
		fused = m.fusion.Fuse(rankings, fuseK)
		return StatusSuccess, fmt.Sprintf("%d fused from %d rankings", len(fused), len(rankings))
	}))

	for i, f := range fused {
		p := provenance[f.Index]
		p.LexicalRank = f.Ranks[fusion.MethodBM25]
		p.SemanticRank = f.Ranks[fusion.MethodEmbeddings]
		p.FusedRank = i + 1
		p.FusedScore = f.Score
		provenance[f.Index] = p
	}

	order := make([]int, len(fused))
	for i, f := range fused {
		order[i] = f.Index
	}

	if !rerankEnabled || m.reranker == nil {
		detail := "disabled"
		if rerankEnabled {
			detail = "no rerank service configured"
		}
		res.Diagnostics = append(res.Diagnostics, skipped(StageRerank, detail))
		if finalK > 0 && len(order) > finalK {
			order = order[:finalK]
		}
		return order, provenance
	}

	var reranked []int
	res.Diagnostics = append(res.Diagnostics, m.runStage(ctx, StageRerank, func(ctx context.Context) (StageStatus, string) {
		candidateDocs := make([]string, len(order))
		for i, idx := range order {
			candidateDocs[i] = docs[idx]
		}
		out := m.reranker.Apply(ctx, query, candidateDocs, finalK)
		reranked = make([]int, len(out.Results))
		for i, r := range out.Results {
			idx := order[r.Index]
			reranked[i] = idx
			if !out.Degraded {
				score := r.RelevanceScore
				p := provenance[idx]
				p.RerankRank = i + 1
				p.RerankScore = &score
				provenance[idx] = p
			}
		}
		if out.Degraded {
			return StatusDegraded, fmt.Sprintf("identity order kept: %v", out.Err)
		}
		return StatusSuccess, fmt.Sprintf("%d reranked", len(out.Results))
	}))
	return reranked, provenance
}

func (m *Matcher) finish(ctx context.Context, log logger.Logger, res *Result, outcome string, start time.Time) {
	metrics.MatchRequests.WithLabelValues(outcome).Inc()
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("matches", len(res.Matches)),
		attribute.Int("rejected", res.Rejected.TotalRejected),
		attribute.String("outcome", outcome),
	)
	log.Info("match completed", map[string]interface{}{
		"outcome":    outcome,
		"matches":    len(res.Matches),
		"rejected":   res.Rejected.TotalRejected,
		"durationMs": time.Since(start).Milliseconds(),
	})
}
