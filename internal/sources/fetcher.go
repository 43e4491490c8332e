// internal/sources/fetcher.go
package sources

import (
	"context"
	"fmt"
	"time"

	apperrors "analytics-assistant/internal/common/errors"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/common/metrics"
	"analytics-assistant/internal/common/observability"
	"analytics-assistant/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

// Fetcher executes one plan against one backend. Backend failures come back
// as BackendUnavailable, never as an empty payload.
type Fetcher interface {
	Fetch(ctx context.Context, plan models.FetchPlan) (*models.DataPayload, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, plan models.FetchPlan) (*models.DataPayload, error)

func (f FetcherFunc) Fetch(ctx context.Context, plan models.FetchPlan) (*models.DataPayload, error) {
	return f(ctx, plan)
}

// Registry dispatches a plan to the fetcher registered for its source.
type Registry struct {
	fetchers map[models.Source]Fetcher
	logger   logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		fetchers: make(map[models.Source]Fetcher),
		logger:   logger.Component(log, "fetch"),
	}
}

// Register sets the fetcher for source and returns r.
func (r *Registry) Register(source models.Source, f Fetcher) *Registry {
	r.fetchers[source] = f
	return r
}

// Has reports whether source has a fetcher.
func (r *Registry) Has(source models.Source) bool {
	_, ok := r.fetchers[source]
	return ok
}

// Fetch runs the plan on its source's fetcher and records the duration.
func (r *Registry) Fetch(ctx context.Context, plan models.FetchPlan) (*models.DataPayload, error) {
	f, ok := r.fetchers[plan.Source]
	if !ok {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("no fetcher for source %q", plan.Source))
	}

	ctx, span := observability.StartSpan(ctx, "fetch",
		attribute.String("source", string(plan.Source)),
		attribute.Int("entityCount", len(plan.EntityIDs)),
	)
	defer span.End()

	start := time.Now()
	payload, err := f.Fetch(ctx, plan)
	metrics.FetchDuration.WithLabelValues(string(plan.Source)).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		r.logger.Warn("fetch failed", map[string]interface{}{
			"source":    string(plan.Source),
			"errorCode": string(apperrors.CodeOf(err)),
		})
		return nil, err
	}

	r.logger.Debug("fetch completed", map[string]interface{}{
		"source":        string(plan.Source),
		"rowCount":      payload.RowCount(),
		"tokenEstimate": payload.TokenEstimate,
		"cached":        payload.Cached,
		"latencyMs":     payload.SourceLatencyMs,
	})
	return payload, nil
}

// Summarize sums the named numeric columns and counts rows.
func Summarize(rows []models.Row, columns ...string) map[string]float64 {
	stats := map[string]float64{"rowCount": float64(len(rows))}
	for _, col := range columns {
		var sum float64
		var seen bool
		for _, row := range rows {
			if v, ok := toFloat(row[col]); ok {
				sum += v
				seen = true
			}
		}
		if seen {
			stats[col] = sum
		}
	}
	return stats
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
