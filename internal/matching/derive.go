// internal/matching/derive.go
package matching

import (
	"math"
	"sort"
	"strings"
	"time"

	"benefit-matcher/internal/models"
)

// Priority maps a match score onto a tier: above 85 high, above 70 medium.
func Priority(score int) string {
	switch {
	case score > 85:
		return models.PriorityHigh
	case score > 70:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

var deadlineLayouts = []string{time.RFC3339, "2006-01-02", "02-01-2006"}

func parseDeadline(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Urgency derives the urgency tag from application deadline metadata.
// A specific date is urgent under 30 days away (including dates already
// passed) and soon under 90 days.
func Urgency(app models.ApplicationInfo, now time.Time) string {
	switch app.DeadlineType {
	case models.DeadlineBeforeEvent:
		return models.UrgencyUrgent
	case models.DeadlineSpecificDate:
		deadline, ok := parseDeadline(app.DeadlineDate)
		if !ok {
			return models.UrgencyFlexible
		}
		days := math.Ceil(deadline.Sub(now).Hours() / 24)
		switch {
		case days < 30:
			return models.UrgencyUrgent
		case days < 90:
			return models.UrgencySoon
		}
		return models.UrgencyFlexible
	case models.DeadlineAnnual:
		return models.UrgencySoon
	}
	return models.UrgencyFlexible
}

func urgencyRank(u string) int {
	switch u {
	case models.UrgencyUrgent:
		return 2
	case models.UrgencySoon:
		return 1
	}
	return 0
}

func priorityRank(p string) int {
	switch p {
	case models.PriorityHigh:
		return 2
	case models.PriorityMedium:
		return 1
	}
	return 0
}

// sortMatches orders by urgency, then priority, then score, then most likely
// amount, all descending. Equal entries keep retrieval order.
func sortMatches(matches []models.MatchAnalysis) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if ua, ub := urgencyRank(a.Urgency), urgencyRank(b.Urgency); ua != ub {
			return ua > ub
		}
		if pa, pb := priorityRank(a.Priority), priorityRank(b.Priority); pa != pb {
			return pa > pb
		}
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		return a.EstimatedAmount.MostLikely > b.EstimatedAmount.MostLikely
	})
}

// hardRequirementReasons formats unmet hard requirements for the ledger.
func hardRequirementReasons(unmet []models.RequirementAssessment) []string {
	out := make([]string, 0, len(unmet))
	for _, r := range unmet {
		reason := strings.TrimSpace(r.Requirement)
		if reason == "" {
			reason = "Hard requirement not met"
		}
		if r.Reasoning != "" {
			reason += ": " + r.Reasoning
		}
		out = append(out, reason)
	}
	return out
}

// buildLedger aggregates rejection reasons. Percentages are relative to the
// catalog size; reasons are sorted by count, then alphabetically.
func buildLedger(rejected map[string][]string, catalogSize int) models.RejectionLedger {
	ledger := models.EmptyLedger()
	if len(rejected) == 0 {
		return ledger
	}

	counts := make(map[string]int)
	byBenefit := make(map[string][]string, len(rejected))
	for id, reasons := range rejected {
		byBenefit[id] = append([]string(nil), reasons...)
		seen := make(map[string]bool, len(reasons))
		for _, r := range reasons {
			if seen[r] {
				continue
			}
			seen[r] = true
			counts[r]++
		}
	}

	for reason, n := range counts {
		pct := 0.0
		if catalogSize > 0 {
			pct = math.Round(float64(n)/float64(catalogSize)*1000) / 10
		}
		ledger.Reasons = append(ledger.Reasons, models.RejectionReason{Reason: reason, Count: n, Percentage: pct})
	}
	sort.Slice(ledger.Reasons, func(i, j int) bool {
		if ledger.Reasons[i].Count != ledger.Reasons[j].Count {
			return ledger.Reasons[i].Count > ledger.Reasons[j].Count
		}
		return ledger.Reasons[i].Reason < ledger.Reasons[j].Reason
	})
	ledger.TotalRejected = len(rejected)
	ledger.ByBenefit = byBenefit
	return ledger
}
