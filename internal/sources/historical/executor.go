// internal/sources/historical/executor.go
package historical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"analytics-assistant/internal/budget"
	apperrors "analytics-assistant/internal/common/errors"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/models"
	"analytics-assistant/internal/sources"
	"analytics-assistant/internal/sources/historical/queries"
)

// summaryColumns are summed into the payload stats when present.
var summaryColumns = []string{"revenue", "orders", "refunds", "events", "opened", "clicked"}

// Executor runs one bound template against the historical store.
type Executor struct {
	backends  *queries.Backends
	estimator *budget.Estimator
	logger    logger.Logger
}

// NewExecutor creates an executor over the configured backends.
func NewExecutor(backends *queries.Backends, est *budget.Estimator, log logger.Logger) *Executor {
	if est == nil {
		est = budget.NewEstimator(budget.DefaultDivisor)
	}
	return &Executor{
		backends:  backends,
		estimator: est,
		logger:    logger.Component(log, "historical"),
	}
}

// Fetch implements sources.Fetcher.
func (e *Executor) Fetch(ctx context.Context, plan models.FetchPlan) (*models.DataPayload, error) {
	return e.Execute(ctx, plan)
}

// Execute runs the plan's template and classifies backend failures.
func (e *Executor) Execute(ctx context.Context, plan models.FetchPlan) (*models.DataPayload, error) {
	if plan.Source != models.SourceHistorical {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("historical executor got a %s plan", plan.Source))
	}

	start := time.Now()
	rows, rowCount, execMs, err := queries.Execute(ctx, e.backends, plan.TemplateID, queries.ParamsFromPlan(plan))
	if err != nil {
		return nil, e.classify(ctx, plan, err)
	}

	payload := &models.DataPayload{
		Source:          models.SourceHistorical,
		TemplateID:      plan.TemplateID,
		Rows:            rows,
		SummaryStats:    sources.Summarize(rows, summaryColumns...),
		SourceLatencyMs: time.Since(start).Milliseconds(),
	}
	e.estimator.Stamp(payload)

	e.logger.Info("historical query executed", map[string]interface{}{
		"templateId":    string(plan.TemplateID),
		"rowCount":      rowCount,
		"executionMs":   execMs,
		"tokenEstimate": payload.TokenEstimate,
	})
	return payload, nil
}

func (e *Executor) classify(ctx context.Context, plan models.FetchPlan, err error) error {
	switch {
	case errors.Is(err, queries.ErrUnknownTemplate):
		return apperrors.NewUnknownTemplateError(string(plan.TemplateID))
	case errors.Is(err, queries.ErrMissingParam):
		return apperrors.NewInvalidRequestError(err.Error())
	case ctx.Err() != nil:
		return ctx.Err()
	}

	e.logger.Error("historical store failed", map[string]interface{}{
		"templateId": string(plan.TemplateID),
		"error":      err.Error(),
	})
	return apperrors.NewBackendUnavailableError("historical", err)
}
