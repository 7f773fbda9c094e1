// internal/matching/explain/engine.go
package explain

import (
	"context"
	"fmt"
	"time"

	"benefit-matcher/internal/common/logger"
	"benefit-matcher/internal/models"

	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize     = 5
	DefaultBatchInterval = time.Second

	FallbackScore   = 50
	FallbackMessage = "AI analysis unavailable; requirements could not be assessed automatically"
)

// Completer is a chat completion service.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type Config struct {
	BatchSize     int
	BatchInterval time.Duration
}

type Outcome struct {
	Analyses      []models.MatchAnalysis
	TotalBatches  int
	FailedBatches int
	// Fallbacks counts analyses that were synthesised rather than produced
	// by the model, including benefits the model skipped.
	Fallbacks int
	Err       error
}

func (o Outcome) Degraded() bool {
	return o.Fallbacks > 0
}

// Engine asks a language model for one requirement analysis per benefit,
// in batches. It never fails: anything the model does not deliver is
// replaced by a neutral fallback analysis.
type Engine struct {
	completer Completer
	config    Config
	limiter   *rate.Limiter
	logger    logger.Logger
}

func NewEngine(c Completer, cfg Config, log logger.Logger) *Engine {
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
	return &Engine{
		completer: c,
		config:    cfg,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    log.WithFields(map[string]interface{}{"component": "explain"}),
	}
}

// Explain returns analyses in the order the benefits were given.
func (e *Engine) Explain(ctx context.Context, profile *models.UserProfile, benefits []models.Benefit) Outcome {
	out := Outcome{Analyses: make([]models.MatchAnalysis, 0, len(benefits))}

	for start := 0; start < len(benefits); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(benefits) {
			end = len(benefits)
		}
		batch := benefits[start:end]
		out.TotalBatches++

		analyses, fallbacks, err := e.explainBatch(ctx, profile, batch)
		if err != nil {
			out.FailedBatches++
			out.Err = err
			e.logger.Warn("explanation batch failed, using fallback analyses", map[string]interface{}{
				"batchStart": start,
				"batchSize":  len(batch),
				"error":      err,
			})
		}
		out.Fallbacks += fallbacks
		out.Analyses = append(out.Analyses, analyses...)
	}
	return out
}

func (e *Engine) explainBatch(ctx context.Context, profile *models.UserProfile, batch []models.Benefit) ([]models.MatchAnalysis, int, error) {
	fail := func(err error) ([]models.MatchAnalysis, int, error) {
		out := make([]models.MatchAnalysis, len(batch))
		for i, b := range batch {
			out[i] = Fallback(b)
		}
		return out, len(batch), err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if e.completer == nil {
		return fail(fmt.Errorf("no completion service configured"))
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return fail(fmt.Errorf("rate limiter: %w", err))
	}

	system, user, err := buildPrompt(profile, batch)
	if err != nil {
		return fail(err)
	}
	text, err := e.completer.Complete(ctx, system, user)
	if err != nil {
		return fail(err)
	}
	parsed, err := parseResponse(text)
	if err != nil {
		return fail(err)
	}

	byID := make(map[string]rawAnalysis, len(parsed))
	for _, a := range parsed {
		if _, dup := byID[a.BenefitID]; !dup {
			byID[a.BenefitID] = a
		}
	}

	out := make([]models.MatchAnalysis, len(batch))
	fallbacks := 0
	for i, b := range batch {
		raw, ok := byID[b.BenefitID]
		if !ok {
			out[i] = Fallback(b)
			fallbacks++
			continue
		}
		out[i] = toAnalysis(raw, b)
	}
	if fallbacks > 0 {
		e.logger.Warn("model skipped benefits in batch", map[string]interface{}{
			"missing": fallbacks,
			"batch":   len(batch),
		})
	}
	return out, fallbacks, nil
}

// Fallback is the neutral analysis used when the model cannot be consulted.
func Fallback(b models.Benefit) models.MatchAnalysis {
	return models.MatchAnalysis{
		BenefitID:          b.BenefitID,
		BenefitName:        b.DisplayName(),
		MatchScore:         FallbackScore,
		HardRequirements:   []models.RequirementAssessment{},
		SoftRequirements:   []models.RequirementAssessment{},
		PositiveFactors:    []string{},
		UncertainFactors:   []string{FallbackMessage},
		MissingInformation: []string{},
		Warnings:           b.Warnings,
	}
}
