// internal/workers/ai-conversation/answer-analytics-query/handler.go
package answeranalyticsquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "analytics-assistant/internal/common/errors"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/common/metrics"
	"analytics-assistant/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "answer-analytics-query"
)

// Answerer runs the full question pipeline.
type Answerer interface {
	Answer(ctx context.Context, req models.AnswerRequest) (*models.AnswerResult, error)
}

// Handler answers one question per job.
type Handler struct {
	config   *Config
	answerer Answerer
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

// NewHandler creates a new handler
func NewHandler(config *Config, answerer Answerer, log logger.Logger) *Handler {
	scoped := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:   config,
		answerer: answerer,
		errors:   apperrors.NewErrorHandler(scoped),
		logger:   scoped,
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

	input, err := parseInput(job.Variables)
	if err == nil {
		var output *Output
		output, err = h.execute(ctx, input)
		if err == nil {
			h.completeJob(ctx, client, job, output)
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
			return
		}
	}

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.CodeOf(err))).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.errors.HandleJobError(ctx, client, job, err)
}

func parseInput(variables string) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err))
	}
	if input.Query == "" {
		return nil, apperrors.NewInvalidRequestError("query is required")
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.answerer.Answer(ctx, input.request())
	if err != nil {
		return nil, err
	}

	h.logger.Info("answer produced", map[string]interface{}{
		"requestId": result.RequestID,
		"source":    string(result.FetchMetadata.Source),
		"attempts":  len(result.ModelAttempts),
		"degraded":  result.Degraded,
	})
	return outputFrom(result), nil
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

	_, err = cmd.Send(ctx)
	if err != nil {
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
