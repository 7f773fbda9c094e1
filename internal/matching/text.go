// internal/matching/text.go
package matching

import (
	"fmt"
	"strconv"
	"strings"

	"benefit-matcher/internal/models"
)

// ProfileText projects a profile onto plain sentences used as the retrieval
// query. Field order is fixed: demographics, children, housing, financial,
// work, health.
func ProfileText(p *models.UserProfile) string {
	var parts []string
	add := func(format string, args ...interface{}) {
		parts = append(parts, fmt.Sprintf(format, args...))
	}

	if p.Personal.Age != nil {
		add("Age %d.", *p.Personal.Age)
	}
	if p.Personal.Municipality != nil {
		add("Lives in %s.", *p.Personal.Municipality)
	}
	if p.Personal.HouseholdType != nil {
		add("Household type %s.", humanize(*p.Personal.HouseholdType))
	}
	if p.Personal.HasPartner != nil {
		add("Has partner: %s.", yesNo(*p.Personal.HasPartner))
	}

	if n, ok := p.ChildCount(); ok {
		if len(p.Children.Ages) > 0 {
			add("%d children aged %s.", n, joinInts(p.Children.Ages))
		} else {
			add("%d children.", n)
		}
	}

	if p.Housing.Situation != nil {
		add("Housing situation %s.", humanize(*p.Housing.Situation))
	}
	if p.Housing.RentBaseOnly != nil {
		add("Base rent %.0f euro per month.", *p.Housing.RentBaseOnly)
	}
	if p.Housing.ServiceCosts != nil {
		add("Service costs %.0f euro per month.", *p.Housing.ServiceCosts)
	}

	if p.Financial.AnnualIncomeGross != nil {
		add("Gross annual income %.0f euro.", *p.Financial.AnnualIncomeGross)
	}
	if p.Financial.PartnerIncomeGross != nil {
		add("Partner gross annual income %.0f euro.", *p.Financial.PartnerIncomeGross)
	}
	if p.Financial.Assets != nil {
		add("Assets %.0f euro.", *p.Financial.Assets)
	}
	if p.Financial.HasDebts != nil && *p.Financial.HasDebts {
		add("Has debts.")
	}

	if p.Work.EmploymentStatus != nil {
		add("Employment status %s.", humanize(*p.Work.EmploymentStatus))
	}
	if p.Work.HoursPerWeek != nil {
		add("Works %.0f hours per week.", *p.Work.HoursPerWeek)
	}
	if p.Work.EducationLevel != nil {
		add("Education level %s.", humanize(*p.Work.EducationLevel))
	}
	if p.Work.IsStudent != nil && *p.Work.IsStudent {
		add("Is a student.")
	}

	if p.Health.HasHealthInsurance != nil {
		add("Health insurance: %s.", yesNo(*p.Health.HasHealthInsurance))
	}
	if p.Health.NeedsChildcare != nil && *p.Health.NeedsChildcare {
		add("Needs childcare.")
	}
	if p.Health.ChronicIllness != nil && *p.Health.ChronicIllness {
		add("Has a chronic illness.")
	}

	return strings.Join(parts, " ")
}

// BenefitText projects a benefit onto the text that retrieval ranks.
func BenefitText(b *models.Benefit) string {
	var parts []string
	for _, s := range []string{b.NameNL, b.NameEN, b.Category, b.Provider, b.Description} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(b.Eligibility.Requirements) > 0 {
		parts = append(parts, "Requirements: "+strings.Join(b.Eligibility.Requirements, "; "))
	}
	if b.Payment.Description != "" {
		parts = append(parts, b.Payment.Description)
	}
	return strings.Join(parts, ". ")
}

func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func joinInts(v []int) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = strconv.Itoa(n)
	}
	return strings.Join(s, ", ")
}
