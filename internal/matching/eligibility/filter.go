// internal/matching/eligibility/filter.go
package eligibility

import (
	"benefit-matcher/internal/common/logger"
	"benefit-matcher/internal/models"
)

const (
	DefaultIncomeTolerance = 0.05

	ReasonStrictRulesNotMet = "Strict eligibility rules not met"
)

// Candidate is a benefit that passed the gate, with the status it passed with.
type Candidate struct {
	Benefit     models.Benefit
	MatchStatus string
}

type Result struct {
	Viable   []Candidate
	Rejected map[string][]string
	// Unevaluable lists benefits whose predicate could not be compiled.
	Unevaluable []string
}

// Filter is the three-state eligibility gate. A strict pass is eligible; a
// pass only after scaling income down by the tolerance is maybe_eligible;
// anything else is rejected.
type Filter struct {
	tolerance float64
	logger    logger.Logger
}

func NewFilter(tolerance float64, log logger.Logger) *Filter {
	if tolerance < 0 || tolerance >= 1 {
		tolerance = DefaultIncomeTolerance
	}
	return &Filter{
		tolerance: tolerance,
		logger:    log.WithFields(map[string]interface{}{"component": "eligibility"}),
	}
}

func (f *Filter) Apply(profile *models.UserProfile, catalog []models.Benefit) Result {
	res := Result{
		Viable:   make([]Candidate, 0, len(catalog)),
		Rejected: make(map[string][]string),
	}

	var tolerant *models.UserProfile
	tolerantProfile := func() *models.UserProfile {
		if tolerant == nil {
			scaled := profile.WithIncomeScaled(1 - f.tolerance)
			tolerant = &scaled
		}
		return tolerant
	}

	for _, b := range catalog {
		if !b.Eligibility.HasLogic() {
			res.Viable = append(res.Viable, Candidate{Benefit: b, MatchStatus: models.MatchStatusEligible})
			continue
		}

		pred, err := Compile(b.Eligibility.Logic)
		if err != nil {
			f.logger.Warn("eligibility logic unevaluable, treating as not met", map[string]interface{}{
				"benefitId": b.BenefitID,
				"error":     err,
			})
			res.Unevaluable = append(res.Unevaluable, b.BenefitID)
			res.Rejected[b.BenefitID] = append(res.Rejected[b.BenefitID], ReasonStrictRulesNotMet)
			continue
		}

		if pred.Eval(profile) {
			res.Viable = append(res.Viable, Candidate{Benefit: b, MatchStatus: models.MatchStatusEligible})
			continue
		}
		if pred.Eval(tolerantProfile()) {
			res.Viable = append(res.Viable, Candidate{Benefit: b, MatchStatus: models.MatchStatusMaybeEligible})
			continue
		}
		res.Rejected[b.BenefitID] = append(res.Rejected[b.BenefitID], ReasonStrictRulesNotMet)
	}

	f.logger.Debug("eligibility filter applied", map[string]interface{}{
		"catalogSize": len(catalog),
		"viable":      len(res.Viable),
		"rejected":    len(res.Rejected),
	})
	return res
}
