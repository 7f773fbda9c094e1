// internal/models/profile.go
package models

// UserProfile describes a person's socio-economic situation. Every leaf is
// optional; a nil pointer means the user has not provided the value.
type UserProfile struct {
	Personal  PersonalInfo         `json:"personal"`
	Children  ChildrenInfo         `json:"children"`
	Housing   HousingInfo          `json:"housing"`
	Financial FinancialInfo        `json:"financial"`
	Work      WorkInfo             `json:"work"`
	Health    HealthInfo           `json:"health"`
	Special   SpecialCircumstances `json:"specialCircumstances"`
}

type PersonalInfo struct {
	Name          *string `json:"name,omitempty"`
	Address       *string `json:"address,omitempty"`
	Email         *string `json:"email,omitempty"`
	Age           *int    `json:"age,omitempty"`
	Municipality  *string `json:"municipality,omitempty"`
	HouseholdType *string `json:"householdType,omitempty"`
	HasPartner    *bool   `json:"hasPartner,omitempty"`
}

type ChildrenInfo struct {
	Count *int  `json:"count,omitempty"`
	Ages  []int `json:"ages,omitempty"`
}

type HousingInfo struct {
	Situation    *string  `json:"situation,omitempty"`
	RentBaseOnly *float64 `json:"rentBaseOnly,omitempty"`
	ServiceCosts *float64 `json:"serviceCosts,omitempty"`
}

type FinancialInfo struct {
	AnnualIncomeGross  *float64 `json:"annualIncomeGross,omitempty"`
	PartnerIncomeGross *float64 `json:"partnerIncomeGross,omitempty"`
	Assets             *float64 `json:"assets,omitempty"`
	HasDebts           *bool    `json:"hasDebts,omitempty"`
}

type WorkInfo struct {
	EmploymentStatus *string  `json:"employmentStatus,omitempty"`
	HoursPerWeek     *float64 `json:"hoursPerWeek,omitempty"`
	EducationLevel   *string  `json:"educationLevel,omitempty"`
	IsStudent        *bool    `json:"isStudent,omitempty"`
}

type HealthInfo struct {
	HasHealthInsurance *bool `json:"hasHealthInsurance,omitempty"`
	NeedsChildcare     *bool `json:"needsChildcare,omitempty"`
	ChronicIllness     *bool `json:"chronicIllness,omitempty"`
}

type SpecialCircumstances struct {
	HasDisability    *bool `json:"hasDisability,omitempty"`
	IsCaregiver      *bool `json:"isCaregiver,omitempty"`
	RecentlyDivorced *bool `json:"recentlyDivorced,omitempty"`
	IsPregnant       *bool `json:"isPregnant,omitempty"`
}

// ChildCount prefers the explicit count and falls back to the number of ages.
func (p *UserProfile) ChildCount() (int, bool) {
	if p.Children.Count != nil {
		return *p.Children.Count, true
	}
	if len(p.Children.Ages) > 0 {
		return len(p.Children.Ages), true
	}
	return 0, false
}

// Clone returns a deep copy that shares no pointers or slices with p.
func (p *UserProfile) Clone() UserProfile {
	c := UserProfile{
		Personal: PersonalInfo{
			Name:          clonePtr(p.Personal.Name),
			Address:       clonePtr(p.Personal.Address),
			Email:         clonePtr(p.Personal.Email),
			Age:           clonePtr(p.Personal.Age),
			Municipality:  clonePtr(p.Personal.Municipality),
			HouseholdType: clonePtr(p.Personal.HouseholdType),
			HasPartner:    clonePtr(p.Personal.HasPartner),
		},
		Children: ChildrenInfo{
			Count: clonePtr(p.Children.Count),
		},
		Housing: HousingInfo{
			Situation:    clonePtr(p.Housing.Situation),
			RentBaseOnly: clonePtr(p.Housing.RentBaseOnly),
			ServiceCosts: clonePtr(p.Housing.ServiceCosts),
		},
		Financial: FinancialInfo{
			AnnualIncomeGross:  clonePtr(p.Financial.AnnualIncomeGross),
			PartnerIncomeGross: clonePtr(p.Financial.PartnerIncomeGross),
			Assets:             clonePtr(p.Financial.Assets),
			HasDebts:           clonePtr(p.Financial.HasDebts),
		},
		Work: WorkInfo{
			EmploymentStatus: clonePtr(p.Work.EmploymentStatus),
			HoursPerWeek:     clonePtr(p.Work.HoursPerWeek),
			EducationLevel:   clonePtr(p.Work.EducationLevel),
			IsStudent:        clonePtr(p.Work.IsStudent),
		},
		Health: HealthInfo{
			HasHealthInsurance: clonePtr(p.Health.HasHealthInsurance),
			NeedsChildcare:     clonePtr(p.Health.NeedsChildcare),
			ChronicIllness:     clonePtr(p.Health.ChronicIllness),
		},
		Special: SpecialCircumstances{
			HasDisability:    clonePtr(p.Special.HasDisability),
			IsCaregiver:      clonePtr(p.Special.IsCaregiver),
			RecentlyDivorced: clonePtr(p.Special.RecentlyDivorced),
			IsPregnant:       clonePtr(p.Special.IsPregnant),
		},
	}
	if p.Children.Ages != nil {
		c.Children.Ages = append([]int(nil), p.Children.Ages...)
	}
	return c
}

// WithIncomeScaled returns a deep copy of p whose annual gross income is
// multiplied by factor. No other field differs from p. A profile without an
// income is copied unchanged.
func (p *UserProfile) WithIncomeScaled(factor float64) UserProfile {
	c := p.Clone()
	if c.Financial.AnnualIncomeGross != nil {
		scaled := *c.Financial.AnnualIncomeGross * factor
		c.Financial.AnnualIncomeGross = &scaled
	}
	return c
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Ptr is a small helper for building profiles in code and tests.
func Ptr[T any](v T) *T {
	return &v
}
