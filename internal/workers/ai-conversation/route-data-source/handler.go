// internal/workers/ai-conversation/route-data-source/handler.go
package routedatasource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"analytics-assistant/internal/assistant"
	apperrors "analytics-assistant/internal/common/errors"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/common/metrics"
	"analytics-assistant/internal/planning"
	"analytics-assistant/internal/routing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "route-data-source"
)

// Handler routes one question per job without fetching data.
type Handler struct {
	config    *Config
	sanitizer *assistant.Sanitizer
	router    *routing.Router
	modes     *planning.ModeDetector
	planner   *planning.Planner
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

// NewHandler creates a new handler
func NewHandler(config *Config, router *routing.Router, modes *planning.ModeDetector, planner *planning.Planner, log logger.Logger) *Handler {
	scoped := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:    config,
		sanitizer: assistant.NewSanitizer(0),
		router:    router,
		modes:     modes,
		planner:   planner,
		errors:    apperrors.NewErrorHandler(scoped),
		logger:    scoped,
	}
}

// Handle processes the job
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	err := json.Unmarshal([]byte(job.Variables), &input)
	if err != nil {
		err = apperrors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err))
	} else {
		var output *Output
		output, err = h.execute(ctx, &input)
		if err == nil {
			h.completeJob(ctx, client, job, output)
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
			return
		}
	}

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.CodeOf(err))).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	sanitized, err := h.sanitizer.Sanitize(input.Query)
	if err != nil {
		return nil, err
	}

	decision, err := h.router.Route(ctx, sanitized.Query, input.Snapshot, routing.RouteContext{
		SelectedEntityCount: len(input.EntityIDs),
	})
	if err != nil {
		return nil, err
	}

	mode := h.modes.Detect(input.EntityIDs, sanitized.Query)
	plans, err := h.planner.Plan(ctx, decision, mode, input.EntityIDs, sanitized.Query, input.CallerID)
	if err != nil {
		return nil, err
	}

	h.logger.Info("data source routed", map[string]interface{}{
		"source":    string(decision.Source),
		"method":    string(decision.Method),
		"mode":      string(mode.Kind),
		"planCount": len(plans),
	})

	return &Output{
		Query:   sanitized.Query,
		Routing: decision,
		Mode:    mode,
		Plans:   plans,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)

	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

// Execute method for direct usage
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
