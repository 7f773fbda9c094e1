// internal/matching/explain/prompt.go
package explain

import (
	"encoding/json"
	"fmt"
	"strings"

	"benefit-matcher/internal/models"
)

// promptProfile is the only view of the user that reaches the model. It has
// no name, address or contact fields.
type promptProfile struct {
	Age                *int     `json:"age,omitempty"`
	Municipality       *string  `json:"municipality,omitempty"`
	HouseholdType      *string  `json:"householdType,omitempty"`
	ChildrenCount      *int     `json:"childrenCount,omitempty"`
	ChildrenAges       []int    `json:"childrenAges,omitempty"`
	HousingSituation   *string  `json:"housingSituation,omitempty"`
	RentBaseOnly       *float64 `json:"rentBaseOnly,omitempty"`
	ServiceCosts       *float64 `json:"serviceCosts,omitempty"`
	AnnualIncomeGross  *float64 `json:"annualIncomeGross,omitempty"`
	PartnerIncomeGross *float64 `json:"partnerIncomeGross,omitempty"`
	Assets             *float64 `json:"assets,omitempty"`
	EmploymentStatus   *string  `json:"employmentStatus,omitempty"`
	HoursPerWeek       *float64 `json:"hoursPerWeek,omitempty"`
	EducationLevel     *string  `json:"educationLevel,omitempty"`
	IsStudent          *bool    `json:"isStudent,omitempty"`
	HasHealthInsurance *bool    `json:"hasHealthInsurance,omitempty"`
	NeedsChildcare     *bool    `json:"needsChildcare,omitempty"`
}

func stripProfile(p *models.UserProfile) promptProfile {
	c := p.Clone()
	out := promptProfile{
		Age:                c.Personal.Age,
		Municipality:       c.Personal.Municipality,
		HouseholdType:      c.Personal.HouseholdType,
		ChildrenAges:       c.Children.Ages,
		HousingSituation:   c.Housing.Situation,
		RentBaseOnly:       c.Housing.RentBaseOnly,
		ServiceCosts:       c.Housing.ServiceCosts,
		AnnualIncomeGross:  c.Financial.AnnualIncomeGross,
		PartnerIncomeGross: c.Financial.PartnerIncomeGross,
		Assets:             c.Financial.Assets,
		EmploymentStatus:   c.Work.EmploymentStatus,
		HoursPerWeek:       c.Work.HoursPerWeek,
		EducationLevel:     c.Work.EducationLevel,
		IsStudent:          c.Work.IsStudent,
		HasHealthInsurance: c.Health.HasHealthInsurance,
		NeedsChildcare:     c.Health.NeedsChildcare,
	}
	if n, ok := c.ChildCount(); ok {
		out.ChildrenCount = &n
	}
	return out
}

type promptBenefit struct {
	BenefitID    string          `json:"benefitId"`
	Name         string          `json:"name"`
	Provider     string          `json:"provider,omitempty"`
	Category     string          `json:"category,omitempty"`
	Description  string          `json:"description,omitempty"`
	IncomeMax    *float64        `json:"incomeMax,omitempty"`
	AssetsMax    *float64        `json:"assetsMax,omitempty"`
	AgeMin       *int            `json:"ageMin,omitempty"`
	AgeMax       *int            `json:"ageMax,omitempty"`
	Requirements []string        `json:"requirements,omitempty"`
	Logic        json.RawMessage `json:"logic,omitempty"`
}

const systemPrompt = `You are an assistant that assesses eligibility for Dutch social benefits.
For every benefit you receive, separate the requirements into hard requirements (legal conditions that must hold) and soft requirements (factors that affect the amount or likelihood).
Classify every requirement as "met", "not_met" or "unknown" and give one short sentence of reasoning.

Rules:
- If the profile does not contain the information needed for a requirement, the status is "unknown". Never infer "not_met" from missing information.
- Use "not_met" only when the profile clearly and unambiguously contradicts the requirement.
- matchScore is an integer from 0 to 100 expressing how well the profile fits the benefit.
- List positive factors, uncertain factors and missing information as short phrases.

Respond with JSON only, no prose, in exactly this shape:
{"analyses":[{"benefitId":"...","matchScore":0,"hardRequirements":[{"requirement":"...","status":"met|not_met|unknown","reasoning":"..."}],"softRequirements":[],"positiveFactors":[],"uncertainFactors":[],"missingInformation":[]}]}
Return one entry per benefit and reuse the benefitId values you were given.`

// buildPrompt returns the system and user prompts for one batch.
func buildPrompt(profile *models.UserProfile, batch []models.Benefit) (string, string, error) {
	profileJSON, err := json.MarshalIndent(stripProfile(profile), "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal profile: %w", err)
	}

	benefits := make([]promptBenefit, len(batch))
	for i, b := range batch {
		pb := promptBenefit{
			BenefitID:    b.BenefitID,
			Name:         b.DisplayName(),
			Provider:     b.Provider,
			Category:     b.Category,
			Description:  b.Description,
			IncomeMax:    b.Eligibility.IncomeMax,
			AssetsMax:    b.Eligibility.AssetsMax,
			AgeMin:       b.Eligibility.AgeMin,
			AgeMax:       b.Eligibility.AgeMax,
			Requirements: b.Eligibility.Requirements,
		}
		if b.Eligibility.HasLogic() {
			pb.Logic = b.Eligibility.Logic
		}
		benefits[i] = pb
	}
	benefitsJSON, err := json.MarshalIndent(benefits, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal benefits: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("User profile:\n")
	sb.Write(profileJSON)
	sb.WriteString("\n\nBenefits to assess:\n")
	sb.Write(benefitsJSON)
	sb.WriteString("\n")
	return systemPrompt, sb.String(), nil
}
