// internal/matching/amount/formulas.go
package amount

import (
	"fmt"

	"benefit-matcher/internal/models"
)

// Quarterly child benefit per child, by age bracket.
var childBenefitBrackets = []struct {
	maxAge int
	amount float64
}{
	{5, 281.22},
	{11, 341.48},
	{17, 401.75},
}

func childBenefitRate(age int) (float64, bool) {
	for _, br := range childBenefitBrackets {
		if age <= br.maxAge {
			return br.amount, age >= 0
		}
	}
	return 0, false
}

// ChildBenefit sums the quarterly bracket rate over children under 18. With
// only a child count, the range spans the youngest and oldest brackets.
func ChildBenefit(_ *models.Benefit, p *models.UserProfile) (models.EstimatedAmount, bool) {
	if len(p.Children.Ages) > 0 {
		var total float64
		counted := 0
		for _, age := range p.Children.Ages {
			if rate, ok := childBenefitRate(age); ok {
				total += rate
				counted++
			}
		}
		if counted == 0 {
			return models.EstimatedAmount{}, false
		}
		return models.EstimatedAmount{
			Min:         total,
			Max:         total,
			MostLikely:  total,
			Frequency:   models.FrequencyQuarterly,
			Explanation: fmt.Sprintf("%d child(ren) under 18 at age-bracket rates, %s per quarter", counted, euro(total)),
		}, true
	}

	n, ok := p.ChildCount()
	if !ok || n <= 0 {
		return models.EstimatedAmount{}, false
	}
	low := float64(n) * childBenefitBrackets[0].amount
	high := float64(n) * childBenefitBrackets[len(childBenefitBrackets)-1].amount
	return models.EstimatedAmount{
		Min:         low,
		Max:         high,
		MostLikely:  float64(n) * childBenefitBrackets[1].amount,
		Frequency:   models.FrequencyQuarterly,
		Explanation: fmt.Sprintf("%d child(ren), ages unknown", n),
	}, true
}

const (
	rentCeiling           = 879.66
	rentBaseContribution  = 225.0
	rentIncomeFloor       = 18000.0
	rentContributionSlope = 0.18
	rentAllowanceCap      = 450.0
)

// RentAllowance estimates the monthly rent allowance as the eligible rent
// minus an income-dependent own contribution.
func RentAllowance(b *models.Benefit, p *models.UserProfile) (models.EstimatedAmount, bool) {
	rent := p.Housing.RentBaseOnly
	income := p.Financial.AnnualIncomeGross
	if rent == nil || income == nil {
		return models.EstimatedAmount{}, false
	}
	eligible := *rent
	if p.Housing.ServiceCosts != nil {
		eligible += clamp(*p.Housing.ServiceCosts, 0, 48)
	}
	eligible = clamp(eligible, 0, rentCeiling)

	// Own contribution is monthly; the slope applies to yearly income.
	own := rentBaseContribution + rentContributionSlope*clamp(*income-rentIncomeFloor, 0, 1e9)/12
	limit := rentAllowanceCap
	if b.Payment.AmountMax != nil {
		limit = *b.Payment.AmountMax
	}
	likely := clamp(eligible-own, 0, limit)
	return models.EstimatedAmount{
		Min:         clamp(likely*0.85, 0, limit),
		Max:         clamp(likely*1.15, 0, limit),
		MostLikely:  likely,
		Frequency:   models.FrequencyMonthly,
		Explanation: fmt.Sprintf("Eligible rent %s minus own contribution %s", euro(eligible), euro(own)),
	}, true
}

const (
	healthcareMax         = 123.0
	healthcareIncomeFloor = 25070.0
	healthcareIncomeCap   = 38520.0
)

// HealthcareAllowance tapers linearly from the maximum at the income floor
// to zero at the income cap.
func HealthcareAllowance(_ *models.Benefit, p *models.UserProfile) (models.EstimatedAmount, bool) {
	income := p.Financial.AnnualIncomeGross
	if income == nil {
		return models.EstimatedAmount{}, false
	}
	share := 1 - clamp((*income-healthcareIncomeFloor)/(healthcareIncomeCap-healthcareIncomeFloor), 0, 1)
	likely := healthcareMax * share
	return models.EstimatedAmount{
		Min:         0,
		Max:         healthcareMax,
		MostLikely:  likely,
		Frequency:   models.FrequencyMonthly,
		Explanation: fmt.Sprintf("Income-tapered from %s maximum", euro(healthcareMax)),
	}, true
}

const (
	childBudgetPerChild    = 2511.0
	childBudgetIncomeFloor = 28406.0
	childBudgetTaper       = 0.071
)

// ChildBudget is a yearly per-child amount reduced by a share of income
// above a threshold, shown per month.
func ChildBudget(_ *models.Benefit, p *models.UserProfile) (models.EstimatedAmount, bool) {
	n, ok := p.ChildCount()
	income := p.Financial.AnnualIncomeGross
	if !ok || n <= 0 || income == nil {
		return models.EstimatedAmount{}, false
	}
	full := float64(n) * childBudgetPerChild
	yearly := clamp(full-childBudgetTaper*clamp(*income-childBudgetIncomeFloor, 0, 1e9), 0, full)
	return models.EstimatedAmount{
		Min:         0,
		Max:         full / 12,
		MostLikely:  yearly / 12,
		Frequency:   models.FrequencyMonthly,
		Explanation: fmt.Sprintf("%d child(ren), reduced by %.1f%% of income above %s", n, childBudgetTaper*100, euro(childBudgetIncomeFloor)),
	}, true
}
