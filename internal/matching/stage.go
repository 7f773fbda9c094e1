// internal/matching/stage.go
package matching

import (
	"context"
	"time"

	"benefit-matcher/internal/common/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type StageStatus string

const (
	StatusSuccess  StageStatus = "success"
	StatusDegraded StageStatus = "degraded"
	StatusFailed   StageStatus = "failed"
	StatusSkipped  StageStatus = "skipped"
)

const (
	StageEligibility = "eligibility"
	StageLexical     = "lexical"
	StageSemantic    = "semantic"
	StageFusion      = "fusion"
	StageRerank      = "rerank"
	StageExplain     = "explain"
	StageEnrich      = "enrich"
	StageHardFilter  = "hard_filter"
)

// StageReport describes how one pipeline stage went. Degraded and failed
// stages still produced usable output.
type StageReport struct {
	Stage      string      `json:"stage"`
	Status     StageStatus `json:"status"`
	Detail     string      `json:"detail,omitempty"`
	DurationMs int64       `json:"durationMs"`
}

// runStage times fn inside a span and records the outcome.
func (m *Matcher) runStage(ctx context.Context, name string, fn func(ctx context.Context) (StageStatus, string)) StageReport {
	ctx, span := m.tracer.Start(ctx, "match."+name)
	defer span.End()

	start := time.Now()
	status, detail := fn(ctx)
	elapsed := time.Since(start)

	span.SetAttributes(attribute.String("stage.status", string(status)))
	if status == StatusDegraded || status == StatusFailed {
		span.SetStatus(codes.Error, detail)
	}
	metrics.ObserveStage(name, string(status), elapsed)

	return StageReport{
		Stage:      name,
		Status:     status,
		Detail:     detail,
		DurationMs: elapsed.Milliseconds(),
	}
}

func skipped(name, detail string) StageReport {
	return StageReport{Stage: name, Status: StatusSkipped, Detail: detail}
}
