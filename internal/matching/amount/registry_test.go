package amount

import (
	"testing"

	"benefit-matcher/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Estimate_ChildBenefit(t *testing.T) {
	r := DefaultRegistry()
	b := &models.Benefit{BenefitID: "kinderbijslag", Payment: models.PaymentInfo{Frequency: models.FrequencyQuarterly}}
	p := &models.UserProfile{Children: models.ChildrenInfo{Ages: []int{5, 8}}}

	est := r.Estimate(b, p)

	// (281.22 + 341.48) / 3
	assert.Equal(t, models.FrequencyMonthly, est.Frequency)
	assert.InDelta(t, 207.57, est.MostLikely, 0.001)
	assert.Contains(t, est.Explanation, "per month")
}

func TestChildBenefit(t *testing.T) {
	tests := []struct {
		name   string
		p      models.UserProfile
		want   float64
		wantOK bool
	}{
		{"brackets", models.UserProfile{Children: models.ChildrenInfo{Ages: []int{0, 6, 12}}}, 281.22 + 341.48 + 401.75, true},
		{"adults ignored", models.UserProfile{Children: models.ChildrenInfo{Ages: []int{3, 19}}}, 281.22, true},
		{"only adults", models.UserProfile{Children: models.ChildrenInfo{Ages: []int{18}}}, 0, false},
		{"count only", models.UserProfile{Children: models.ChildrenInfo{Count: models.Ptr(2)}}, 2 * 341.48, true},
		{"no children", models.UserProfile{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, ok := ChildBenefit(&models.Benefit{}, &tt.p)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, est.MostLikely, 1e-9)
		})
	}
}

func TestRentAllowance(t *testing.T) {
	p := &models.UserProfile{
		Housing:   models.HousingInfo{RentBaseOnly: models.Ptr(550.0)},
		Financial: models.FinancialInfo{AnnualIncomeGross: models.Ptr(28000.0)},
	}
	est, ok := RentAllowance(&models.Benefit{}, p)
	assert.True(t, ok)
	// own = 225 + 0.18*10000/12 = 375
	assert.InDelta(t, 175.0, est.MostLikely, 1e-9)

	richer := &models.UserProfile{
		Housing:   models.HousingInfo{RentBaseOnly: models.Ptr(550.0)},
		Financial: models.FinancialInfo{AnnualIncomeGross: models.Ptr(60000.0)},
	}
	est, ok = RentAllowance(&models.Benefit{}, richer)
	assert.True(t, ok)
	assert.Equal(t, 0.0, est.MostLikely)

	_, ok = RentAllowance(&models.Benefit{}, &models.UserProfile{})
	assert.False(t, ok)
}

func TestHealthcareAllowance_Tapers(t *testing.T) {
	low, _ := HealthcareAllowance(nil, &models.UserProfile{Financial: models.FinancialInfo{AnnualIncomeGross: models.Ptr(20000.0)}})
	mid, _ := HealthcareAllowance(nil, &models.UserProfile{Financial: models.FinancialInfo{AnnualIncomeGross: models.Ptr(30000.0)}})
	high, _ := HealthcareAllowance(nil, &models.UserProfile{Financial: models.FinancialInfo{AnnualIncomeGross: models.Ptr(50000.0)}})

	assert.Equal(t, healthcareMax, low.MostLikely)
	assert.Less(t, mid.MostLikely, low.MostLikely)
	assert.Greater(t, mid.MostLikely, 0.0)
	assert.Equal(t, 0.0, high.MostLikely)
}

func TestChildBudget(t *testing.T) {
	est, ok := ChildBudget(nil, &models.UserProfile{
		Children:  models.ChildrenInfo{Ages: []int{2}},
		Financial: models.FinancialInfo{AnnualIncomeGross: models.Ptr(20000.0)},
	})
	assert.True(t, ok)
	assert.InDelta(t, 2511.0/12, est.MostLikely, 1e-9)

	_, ok = ChildBudget(nil, &models.UserProfile{Financial: models.FinancialInfo{AnnualIncomeGross: models.Ptr(20000.0)}})
	assert.False(t, ok)
}

func TestRegistry_Estimate_Generic(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name    string
		payment models.PaymentInfo
		want    models.EstimatedAmount
	}{
		{
			name:    "min and max",
			payment: models.PaymentInfo{Frequency: models.FrequencyMonthly, AmountMin: models.Ptr(100.0), AmountMax: models.Ptr(300.0)},
			want:    models.EstimatedAmount{Min: 100, Max: 300, MostLikely: 200, Frequency: models.FrequencyMonthly, Explanation: "Based on the published amount range"},
		},
		{
			name:    "quarterly normalised",
			payment: models.PaymentInfo{Frequency: models.FrequencyQuarterly, AmountMax: models.Ptr(300.0), Description: "Up to 300"},
			want:    models.EstimatedAmount{Max: 100, MostLikely: 100, Frequency: models.FrequencyMonthly, Explanation: "Up to 300 (quarterly amount shown per month)"},
		},
		{
			name:    "description only",
			payment: models.PaymentInfo{Description: "Depends on the municipality"},
			want:    models.EstimatedAmount{Frequency: models.FrequencyMonthly, Explanation: "Depends on the municipality"},
		},
		{
			name:    "yearly stays yearly",
			payment: models.PaymentInfo{Frequency: models.FrequencyYearly, AmountMin: models.Ptr(500.0)},
			want:    models.EstimatedAmount{Min: 500, Max: 500, MostLikely: 500, Frequency: models.FrequencyYearly, Explanation: "Based on the published amount range"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &models.Benefit{BenefitID: "x", Payment: tt.payment}
			assert.Equal(t, tt.want, r.Estimate(b, &models.UserProfile{}))
		})
	}
}

func TestRegistry_OverrideFallsBackToGeneric(t *testing.T) {
	r := DefaultRegistry()
	b := &models.Benefit{
		BenefitID: "huurtoeslag",
		Payment:   models.PaymentInfo{Frequency: models.FrequencyMonthly, AmountMin: models.Ptr(0.0), AmountMax: models.Ptr(400.0)},
	}
	est := r.Estimate(b, &models.UserProfile{})
	assert.Equal(t, 200.0, est.MostLikely)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has("energietoeslag"))
	r.Register("energietoeslag", func(*models.Benefit, *models.UserProfile) (models.EstimatedAmount, bool) {
		return models.EstimatedAmount{MostLikely: 1300, Frequency: models.FrequencyOnce}, true
	})
	assert.True(t, r.Has("energietoeslag"))
	est := r.Estimate(&models.Benefit{BenefitID: "energietoeslag"}, &models.UserProfile{})
	assert.Equal(t, 1300.0, est.MostLikely)
	assert.Equal(t, models.FrequencyOnce, est.Frequency)
}
