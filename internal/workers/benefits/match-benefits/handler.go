// internal/workers/benefits/match-benefits/handler.go
package matchbenefits

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"benefit-matcher/internal/catalog"
	apperrors "benefit-matcher/internal/common/errors"
	"benefit-matcher/internal/common/logger"
	"benefit-matcher/internal/common/metrics"
	"benefit-matcher/internal/common/observability"
	"benefit-matcher/internal/matching"
	"benefit-matcher/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "match-benefits"
)

type Handler struct {
	config       *Config
	matcher      *matching.Matcher
	catalog      catalog.Store
	obs          *observability.Observability
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the job handler. store may be nil, in which case every
// job must carry its own catalog. obs may be nil.
func NewHandler(config *Config, matcher *matching.Matcher, store catalog.Store, obs *observability.Observability, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		matcher:      matcher,
		catalog:      store,
		obs:          obs,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	timeout := h.config.Timeout
	if timeout <= 0 {
		timeout = LoadConfig().Timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	input, err := ParseInput([]byte(job.Variables))
	if err != nil {
		h.failJob(ctx, client, job, err, start)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err, start)
		return
	}

	h.completeJob(ctx, client, job, output, start)
}

// ParseInput validates the job variables against the input schema and
// decodes them.
func ParseInput(variables []byte) (*Input, error) {
	result := GetInputSchema().ValidateBytes(variables)
	if !result.Valid {
		return nil, apperrors.NewInvalidMatchInputError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal(variables, &input); err != nil {
		return nil, apperrors.NewInvalidMatchInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Profile == nil {
		return nil, apperrors.NewInvalidMatchInputError("profile is required")
	}

	benefits, err := h.loadCatalog(ctx, input)
	if err != nil {
		return nil, err
	}

	opts := matching.Options{RequestID: input.RequestID}
	if input.Options != nil {
		opts.Rerank = input.Options.Rerank
	}

	start := time.Now()
	res := h.matcher.MatchWithOptions(ctx, input.Profile, benefits, opts)
	if h.obs != nil {
		h.obs.RecordMatch(ctx, len(res.Matches), res.Rejected.TotalRejected, res.Degraded(), time.Since(start))
	}

	h.logger.Info("benefits matched", map[string]interface{}{
		"requestId": res.RequestID,
		"catalog":   len(benefits),
		"matches":   len(res.Matches),
		"rejected":  res.Rejected.TotalRejected,
		"degraded":  res.Degraded(),
	})

	return &Output{
		RequestID:   res.RequestID,
		Matches:     res.Matches,
		Rejected:    res.Rejected,
		Diagnostics: res.Diagnostics,
		Degraded:    res.Degraded(),
	}, nil
}

// loadCatalog prefers the catalog carried by the job. Inline catalogs go
// through the same validation as stored ones.
func (h *Handler) loadCatalog(ctx context.Context, input *Input) ([]models.Benefit, error) {
	if input.Catalog != nil {
		if h.config.MaxCatalogSize > 0 && len(input.Catalog) > h.config.MaxCatalogSize {
			return nil, apperrors.NewInvalidMatchInputError(fmt.Sprintf(
				"catalog has %d entries, limit is %d", len(input.Catalog), h.config.MaxCatalogSize))
		}
		valid, issues := catalog.Validate(input.Catalog)
		for _, issue := range issues {
			h.logger.Warn("inline catalog entry has a problem", map[string]interface{}{
				"benefitId": issue.BenefitID,
				"issue":     issue.Message,
				"fatal":     issue.Fatal,
			})
		}
		return valid, nil
	}

	if h.catalog == nil {
		return nil, apperrors.NewInvalidMatchInputError("catalog is required when no catalog store is configured")
	}

	benefits, err := h.catalog.Load(ctx)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewMatchTimeoutError(err.Error())
		}
		return nil, apperrors.NewCatalogLoadFailedError(err)
	}
	return benefits, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output, start time.Time) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		h.failJob(ctx, client, job, err, start)
		return
	}

	// the job context may already be spent by a slow match
	sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := cmd.Send(sendCtx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	if h.obs != nil {
		h.obs.RecordJobProcessed(ctx, "completed")
		h.obs.RecordJobDuration(ctx, time.Since(start), "completed")
	}
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":     job.Key,
		"requestId":  output.RequestID,
		"durationMs": time.Since(start).Milliseconds(),
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	stdErr := apperrors.Normalize(err)

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	if h.obs != nil {
		h.obs.RecordJobProcessed(ctx, "failed")
		h.obs.RecordJobDuration(ctx, time.Since(start), "failed")
	}

	sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h.errorHandler.HandleJobError(sendCtx, client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
