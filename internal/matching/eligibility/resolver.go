// internal/matching/eligibility/resolver.go
package eligibility

import (
	"sort"

	"benefit-matcher/internal/models"
)

// resolver reads one profile field. The boolean is false when the user has
// not provided the value.
type resolver func(p *models.UserProfile) (interface{}, bool)

func str(v *string) (interface{}, bool) {
	if v == nil {
		return nil, false
	}
	return *v, true
}

func num(v *float64) (interface{}, bool) {
	if v == nil {
		return nil, false
	}
	return *v, true
}

func integer(v *int) (interface{}, bool) {
	if v == nil {
		return nil, false
	}
	return float64(*v), true
}

func flag(v *bool) (interface{}, bool) {
	if v == nil {
		return nil, false
	}
	return *v, true
}

var resolvers = map[string]resolver{
	"personal.age":           func(p *models.UserProfile) (interface{}, bool) { return integer(p.Personal.Age) },
	"personal.municipality":  func(p *models.UserProfile) (interface{}, bool) { return str(p.Personal.Municipality) },
	"personal.householdType": func(p *models.UserProfile) (interface{}, bool) { return str(p.Personal.HouseholdType) },
	"personal.hasPartner":    func(p *models.UserProfile) (interface{}, bool) { return flag(p.Personal.HasPartner) },

	"children.count": func(p *models.UserProfile) (interface{}, bool) {
		n, ok := p.ChildCount()
		return float64(n), ok
	},
	"children.ages": func(p *models.UserProfile) (interface{}, bool) {
		if p.Children.Ages == nil {
			return nil, false
		}
		ages := make([]interface{}, len(p.Children.Ages))
		for i, a := range p.Children.Ages {
			ages[i] = float64(a)
		}
		return ages, true
	},
	"children.youngestAge": func(p *models.UserProfile) (interface{}, bool) {
		if len(p.Children.Ages) == 0 {
			return nil, false
		}
		min := p.Children.Ages[0]
		for _, a := range p.Children.Ages[1:] {
			if a < min {
				min = a
			}
		}
		return float64(min), true
	},

	"housing.situation":    func(p *models.UserProfile) (interface{}, bool) { return str(p.Housing.Situation) },
	"housing.rentBaseOnly": func(p *models.UserProfile) (interface{}, bool) { return num(p.Housing.RentBaseOnly) },
	"housing.serviceCosts": func(p *models.UserProfile) (interface{}, bool) { return num(p.Housing.ServiceCosts) },

	"financial.annualIncomeGross":  func(p *models.UserProfile) (interface{}, bool) { return num(p.Financial.AnnualIncomeGross) },
	"financial.partnerIncomeGross": func(p *models.UserProfile) (interface{}, bool) { return num(p.Financial.PartnerIncomeGross) },
	"financial.assets":             func(p *models.UserProfile) (interface{}, bool) { return num(p.Financial.Assets) },
	"financial.hasDebts":           func(p *models.UserProfile) (interface{}, bool) { return flag(p.Financial.HasDebts) },

	"work.employmentStatus": func(p *models.UserProfile) (interface{}, bool) { return str(p.Work.EmploymentStatus) },
	"work.hoursPerWeek":     func(p *models.UserProfile) (interface{}, bool) { return num(p.Work.HoursPerWeek) },
	"work.educationLevel":   func(p *models.UserProfile) (interface{}, bool) { return str(p.Work.EducationLevel) },
	"work.isStudent":        func(p *models.UserProfile) (interface{}, bool) { return flag(p.Work.IsStudent) },

	"health.hasHealthInsurance": func(p *models.UserProfile) (interface{}, bool) { return flag(p.Health.HasHealthInsurance) },
	"health.needsChildcare":     func(p *models.UserProfile) (interface{}, bool) { return flag(p.Health.NeedsChildcare) },
	"health.chronicIllness":     func(p *models.UserProfile) (interface{}, bool) { return flag(p.Health.ChronicIllness) },

	"specialCircumstances.hasDisability":    func(p *models.UserProfile) (interface{}, bool) { return flag(p.Special.HasDisability) },
	"specialCircumstances.isCaregiver":      func(p *models.UserProfile) (interface{}, bool) { return flag(p.Special.IsCaregiver) },
	"specialCircumstances.recentlyDivorced": func(p *models.UserProfile) (interface{}, bool) { return flag(p.Special.RecentlyDivorced) },
	"specialCircumstances.isPregnant":       func(p *models.UserProfile) (interface{}, bool) { return flag(p.Special.IsPregnant) },
}

// Resolve looks up a dotted path in the profile. Unknown paths and unset
// fields both resolve to (nil, false).
func Resolve(p *models.UserProfile, path string) (interface{}, bool) {
	r, ok := resolvers[path]
	if !ok || p == nil {
		return nil, false
	}
	return r(p)
}

// KnownPath reports whether path names a profile field.
func KnownPath(path string) bool {
	_, ok := resolvers[path]
	return ok
}

// Paths lists every resolvable path in lexical order.
func Paths() []string {
	out := make([]string, 0, len(resolvers))
	for k := range resolvers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
