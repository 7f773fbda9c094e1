package matching

import (
	"testing"
	"time"

	"benefit-matcher/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPriority(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, models.PriorityHigh},
		{86, models.PriorityHigh},
		{85, models.PriorityMedium},
		{71, models.PriorityMedium},
		{70, models.PriorityLow},
		{0, models.PriorityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Priority(tt.score), "score %d", tt.score)
	}
}

func TestUrgency(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	date := func(days int) string {
		return now.AddDate(0, 0, days).Format("2006-01-02")
	}

	tests := []struct {
		name string
		app  models.ApplicationInfo
		want string
	}{
		{"before event", models.ApplicationInfo{DeadlineType: models.DeadlineBeforeEvent}, models.UrgencyUrgent},
		{"annual", models.ApplicationInfo{DeadlineType: models.DeadlineAnnual}, models.UrgencySoon},
		{"ongoing", models.ApplicationInfo{DeadlineType: models.DeadlineOngoing}, models.UrgencyFlexible},
		{"no deadline", models.ApplicationInfo{}, models.UrgencyFlexible},
		{"20 days", models.ApplicationInfo{DeadlineType: models.DeadlineSpecificDate, DeadlineDate: date(20)}, models.UrgencyUrgent},
		{"60 days", models.ApplicationInfo{DeadlineType: models.DeadlineSpecificDate, DeadlineDate: date(60)}, models.UrgencySoon},
		{"200 days", models.ApplicationInfo{DeadlineType: models.DeadlineSpecificDate, DeadlineDate: date(200)}, models.UrgencyFlexible},
		{"passed", models.ApplicationInfo{DeadlineType: models.DeadlineSpecificDate, DeadlineDate: date(-3)}, models.UrgencyUrgent},
		{"rfc3339", models.ApplicationInfo{DeadlineType: models.DeadlineSpecificDate, DeadlineDate: now.AddDate(0, 0, 45).Format(time.RFC3339)}, models.UrgencySoon},
		{"dutch layout", models.ApplicationInfo{DeadlineType: models.DeadlineSpecificDate, DeadlineDate: now.AddDate(0, 0, 10).Format("02-01-2006")}, models.UrgencyUrgent},
		{"unparsable", models.ApplicationInfo{DeadlineType: models.DeadlineSpecificDate, DeadlineDate: "next spring"}, models.UrgencyFlexible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Urgency(tt.app, now))
		})
	}
}

func TestSortMatches(t *testing.T) {
	m := func(id, urgency, priority string, score int, amount float64) models.MatchAnalysis {
		return models.MatchAnalysis{
			BenefitID:       id,
			Urgency:         urgency,
			Priority:        priority,
			MatchScore:      score,
			EstimatedAmount: models.EstimatedAmount{MostLikely: amount},
		}
	}
	matches := []models.MatchAnalysis{
		m("a", models.UrgencyFlexible, models.PriorityHigh, 95, 100),
		m("b", models.UrgencyUrgent, models.PriorityLow, 40, 10),
		m("c", models.UrgencySoon, models.PriorityMedium, 80, 50),
		m("d", models.UrgencySoon, models.PriorityMedium, 80, 200),
		m("e", models.UrgencySoon, models.PriorityMedium, 75, 900),
		m("f", models.UrgencySoon, models.PriorityHigh, 90, 0),
		m("g", models.UrgencySoon, models.PriorityMedium, 75, 900),
	}

	sortMatches(matches)

	var ids []string
	for _, x := range matches {
		ids = append(ids, x.BenefitID)
	}
	assert.Equal(t, []string{"b", "f", "d", "c", "e", "g", "a"}, ids)
}

func TestBuildLedger(t *testing.T) {
	ledger := buildLedger(map[string][]string{
		"a": {"income too high"},
		"b": {"income too high", "too old"},
		"c": {"too old", "too old"},
		"d": {"assets too high"},
	}, 8)

	assert.Equal(t, 4, ledger.TotalRejected)
	assert.Equal(t, []models.RejectionReason{
		{Reason: "income too high", Count: 2, Percentage: 25},
		{Reason: "too old", Count: 2, Percentage: 25},
		{Reason: "assets too high", Count: 1, Percentage: 12.5},
	}, ledger.Reasons)
	assert.Equal(t, []string{"too old", "too old"}, ledger.ByBenefit["c"])
}

func TestBuildLedger_Empty(t *testing.T) {
	ledger := buildLedger(nil, 0)
	assert.Equal(t, 0, ledger.TotalRejected)
	assert.NotNil(t, ledger.Reasons)
	assert.Empty(t, ledger.Reasons)
	assert.Nil(t, ledger.ByBenefit)
}

func TestHardRequirementReasons(t *testing.T) {
	got := hardRequirementReasons([]models.RequirementAssessment{
		{Requirement: "Dutch residence", Status: models.StatusNotMet, Reasoning: "lives abroad"},
		{Requirement: "  ", Status: models.StatusNotMet},
	})
	assert.Equal(t, []string{"Dutch residence: lives abroad", "Hard requirement not met"}, got)
}
