// internal/workers/benefits/match-benefits/models.go
package matchbenefits

import (
	"benefit-matcher/internal/matching"
	"benefit-matcher/internal/models"
)

type Input struct {
	RequestID string              `json:"requestId,omitempty"`
	Profile   *models.UserProfile `json:"profile"`
	// Catalog is loaded from the catalog store when absent.
	Catalog []models.Benefit `json:"catalog,omitempty"`
	Options *MatchOptions    `json:"options,omitempty"`
}

type MatchOptions struct {
	Rerank *bool `json:"rerank,omitempty"`
}

type Output struct {
	RequestID   string                 `json:"requestId"`
	Matches     []models.MatchAnalysis `json:"matches"`
	Rejected    models.RejectionLedger `json:"rejected"`
	Diagnostics []matching.StageReport `json:"diagnostics"`
	Degraded    bool                   `json:"degraded"`
}
