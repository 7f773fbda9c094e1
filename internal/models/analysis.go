// internal/models/analysis.go
package models

const (
	StatusMet     = "met"
	StatusNotMet  = "not_met"
	StatusUnknown = "unknown"

	MatchStatusEligible      = "eligible"
	MatchStatusMaybeEligible = "maybe_eligible"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	UrgencyFlexible = "flexible"
	UrgencySoon     = "soon"
	UrgencyUrgent   = "urgent"
)

type RequirementAssessment struct {
	Requirement string `json:"requirement"`
	Status      string `json:"status"`
	Reasoning   string `json:"reasoning,omitempty"`
}

type EstimatedAmount struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	MostLikely  float64 `json:"mostLikely"`
	Frequency   string  `json:"frequency"`
	Explanation string  `json:"explanation,omitempty"`
}

// RetrievalInfo records where a match came from. Ranks are 1-based; zero
// means the benefit was absent from that ranking.
type RetrievalInfo struct {
	LexicalRank   int      `json:"lexicalRank"`
	LexicalScore  float64  `json:"lexicalScore"`
	SemanticRank  int      `json:"semanticRank"`
	SemanticScore float64  `json:"semanticScore"`
	FusedRank     int      `json:"fusedRank"`
	FusedScore    float64  `json:"fusedScore"`
	RerankRank    int      `json:"rerankRank,omitempty"`
	RerankScore   *float64 `json:"rerankScore,omitempty"`
}

type MatchAnalysis struct {
	BenefitID          string                  `json:"benefitId"`
	BenefitName        string                  `json:"benefitName"`
	MatchScore         int                     `json:"matchScore"`
	HardRequirements   []RequirementAssessment `json:"hardRequirements"`
	SoftRequirements   []RequirementAssessment `json:"softRequirements"`
	PositiveFactors    []string                `json:"positiveFactors"`
	UncertainFactors   []string                `json:"uncertainFactors"`
	MissingInformation []string                `json:"missingInformation"`
	EstimatedAmount    EstimatedAmount         `json:"estimatedAmount"`
	Priority           string                  `json:"priority"`
	Urgency            string                  `json:"urgency"`
	MatchStatus        string                  `json:"matchStatus"`
	Retrieval          RetrievalInfo           `json:"retrieval"`
	Warnings           []string                `json:"warnings,omitempty"`
}

// UnmetHardRequirements returns the hard requirements explicitly marked not_met.
func (m *MatchAnalysis) UnmetHardRequirements() []RequirementAssessment {
	var out []RequirementAssessment
	for _, r := range m.HardRequirements {
		if r.Status == StatusNotMet {
			out = append(out, r)
		}
	}
	return out
}

type RejectionReason struct {
	Reason     string  `json:"reason"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// RejectionLedger aggregates rejection reasons over the whole catalog.
// Reasons is never nil so that an empty ledger encodes as [].
type RejectionLedger struct {
	TotalRejected int                 `json:"totalRejected"`
	Reasons       []RejectionReason   `json:"reasons"`
	ByBenefit     map[string][]string `json:"byBenefit,omitempty"`
}

func EmptyLedger() RejectionLedger {
	return RejectionLedger{Reasons: []RejectionReason{}}
}
