// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	MatchStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_stage_duration_seconds",
			Help:    "Duration of each matching pipeline stage",
			Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage", "status"},
	)

	MatchStageDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_stage_degraded_total",
			Help: "Number of times a pipeline stage fell back to degraded output",
		},
		[]string{"stage"},
	)

	MatchBenefitsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_benefits_rejected_total",
			Help: "Benefits removed from results, by the stage that removed them",
		},
		[]string{"stage"},
	)

	MatchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_requests_total",
			Help: "Match requests by outcome",
		},
		[]string{"outcome"},
	)

	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "external_call_duration_seconds",
			Help: "Latency of embedding, rerank and completion service calls",
		},
		[]string{"service", "status"},
	)

	EmbeddingCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_cache_lookups_total",
			Help: "Embedding cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)

// ObserveStage records a stage's duration and counts degradations.
func ObserveStage(stage, status string, d time.Duration) {
	MatchStageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
	if status == "degraded" || status == "failed" {
		MatchStageDegraded.WithLabelValues(stage).Inc()
	}
}

// ObserveExternalCall records the latency of one outbound service call.
func ObserveExternalCall(service string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ExternalCallDuration.WithLabelValues(service, status).Observe(d.Seconds())
}
