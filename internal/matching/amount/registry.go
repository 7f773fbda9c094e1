// internal/matching/amount/registry.go
package amount

import (
	"fmt"
	"math"
	"sync"

	"benefit-matcher/internal/models"
)

// Estimator computes an amount for one benefit type. It returns false when
// the profile lacks what the formula needs; the generic estimate is used then.
type Estimator func(b *models.Benefit, p *models.UserProfile) (models.EstimatedAmount, bool)

// Registry maps benefit ids to estimators. Unregistered benefits get the
// generic estimate from catalog payment metadata.
type Registry struct {
	mu         sync.RWMutex
	estimators map[string]Estimator
}

func NewRegistry() *Registry {
	return &Registry{estimators: make(map[string]Estimator)}
}

// DefaultRegistry has the built-in formulas registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("kinderbijslag", ChildBenefit)
	r.Register("huurtoeslag", RentAllowance)
	r.Register("zorgtoeslag", HealthcareAllowance)
	r.Register("kindgebonden_budget", ChildBudget)
	return r
}

func (r *Registry) Register(benefitID string, e Estimator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.estimators[benefitID] = e
}

func (r *Registry) Has(benefitID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.estimators[benefitID]
	return ok
}

// Estimate returns the amount for b, normalised so quarterly amounts are
// expressed per month.
func (r *Registry) Estimate(b *models.Benefit, p *models.UserProfile) models.EstimatedAmount {
	r.mu.RLock()
	e, ok := r.estimators[b.BenefitID]
	r.mu.RUnlock()

	var est models.EstimatedAmount
	matched := false
	if ok {
		est, matched = e(b, p)
	}
	if !matched {
		est = Generic(b)
	}
	return normalize(est)
}

// Generic derives an amount from the catalog's payment bounds.
func Generic(b *models.Benefit) models.EstimatedAmount {
	est := models.EstimatedAmount{
		Frequency:   b.Payment.Frequency,
		Explanation: b.Payment.Description,
	}
	if est.Frequency == "" {
		est.Frequency = models.FrequencyMonthly
	}
	min, max := b.Payment.AmountMin, b.Payment.AmountMax
	switch {
	case min != nil && max != nil:
		est.Min, est.Max = *min, *max
		est.MostLikely = (*min + *max) / 2
	case max != nil:
		est.Max, est.MostLikely = *max, *max
	case min != nil:
		est.Min, est.Max, est.MostLikely = *min, *min, *min
	}
	if est.Explanation == "" && (min != nil || max != nil) {
		est.Explanation = "Based on the published amount range"
	}
	return est
}

func normalize(est models.EstimatedAmount) models.EstimatedAmount {
	if est.Frequency == models.FrequencyQuarterly {
		est.Min = round2(est.Min / 3)
		est.Max = round2(est.Max / 3)
		est.MostLikely = round2(est.MostLikely / 3)
		est.Frequency = models.FrequencyMonthly
		if est.Explanation != "" {
			est.Explanation += " (quarterly amount shown per month)"
		}
		return est
	}
	est.Min = round2(est.Min)
	est.Max = round2(est.Max)
	est.MostLikely = round2(est.MostLikely)
	return est
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func euro(v float64) string {
	return fmt.Sprintf("€%.2f", v)
}
