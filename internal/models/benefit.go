// internal/models/benefit.go
package models

import "encoding/json"

const (
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyYearly    = "yearly"
	FrequencyOnce      = "once"

	DeadlineBeforeEvent  = "before_event"
	DeadlineSpecificDate = "specific_date"
	DeadlineAnnual       = "annual"
	DeadlineOngoing      = "ongoing"
)

// Benefit is a catalog entry. BenefitID is unique within a catalog snapshot.
type Benefit struct {
	BenefitID   string              `json:"benefitId"`
	NameNL      string              `json:"nameNL"`
	NameEN      string              `json:"nameEN,omitempty"`
	Provider    string              `json:"provider,omitempty"`
	Category    string              `json:"category,omitempty"`
	Description string              `json:"description,omitempty"`
	Payment     PaymentInfo         `json:"payment"`
	Eligibility EligibilityCriteria `json:"eligibility"`
	Application ApplicationInfo     `json:"application"`
	Warnings    []string            `json:"warnings,omitempty"`
}

type PaymentInfo struct {
	Frequency   string   `json:"frequency,omitempty"`
	AmountMin   *float64 `json:"amountMin,omitempty"`
	AmountMax   *float64 `json:"amountMax,omitempty"`
	Description string   `json:"description,omitempty"`
}

// EligibilityCriteria holds the structured predicate in Logic. A benefit
// without Logic is a legacy entry and is treated as viable.
type EligibilityCriteria struct {
	Logic        json.RawMessage `json:"logic,omitempty"`
	IncomeMax    *float64        `json:"incomeMax,omitempty"`
	AssetsMax    *float64        `json:"assetsMax,omitempty"`
	AgeMin       *int            `json:"ageMin,omitempty"`
	AgeMax       *int            `json:"ageMax,omitempty"`
	Requirements []string        `json:"requirements,omitempty"`
}

// HasLogic reports whether a predicate tree is present. JSON null counts as absent.
func (e EligibilityCriteria) HasLogic() bool {
	if len(e.Logic) == 0 {
		return false
	}
	return string(e.Logic) != "null"
}

type ApplicationInfo struct {
	DeadlineType      string   `json:"deadlineType,omitempty"`
	DeadlineDate      string   `json:"deadlineDate,omitempty"`
	URL               string   `json:"url,omitempty"`
	RequiredDocuments []string `json:"requiredDocuments,omitempty"`
	ProcessingTime    string   `json:"processingTime,omitempty"`
}

// DisplayName prefers the Dutch name, then the English one, then the id.
func (b *Benefit) DisplayName() string {
	switch {
	case b.NameNL != "":
		return b.NameNL
	case b.NameEN != "":
		return b.NameEN
	default:
		return b.BenefitID
	}
}
