// internal/assistant/service.go
package assistant

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"analytics-assistant/internal/budget"
	apperrors "analytics-assistant/internal/common/errors"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/common/metrics"
	"analytics-assistant/internal/common/observability"
	"analytics-assistant/internal/llm"
	"analytics-assistant/internal/models"
	"analytics-assistant/internal/planning"
	"analytics-assistant/internal/routing"
	"analytics-assistant/internal/sources"
	"analytics-assistant/internal/sources/snapshot"

	"github.com/google/uuid"
)

const (
	warnTruncated = "The data was trimmed to fit the context budget, so lists may be partial."
	warnDegraded  = "Detailed data is unavailable right now. This answer is based only on the dashboard summary."
)

// Config bounds snapshot input and reserves prompt room in the token budget.
type Config struct {
	MaxSnapshotList     int
	MaxSnapshotPoints   int
	PromptReserveTokens int
	DefaultModels       []string
}

// Dependencies are the components one Service drives. Outages and Metrics are optional.
type Dependencies struct {
	Sanitizer *Sanitizer
	Router    *routing.Router
	Modes     *planning.ModeDetector
	Planner   *planning.Planner
	Fetchers  *sources.Registry
	Snapshots *snapshot.Reader
	Estimator *budget.Estimator
	Invoker   *llm.Invoker
	Outages   *OutageTracker
	Metrics   *observability.Observability
}

// Service answers one natural-language question per call. It keeps no
// per-request state, so one instance serves concurrent requests.
type Service struct {
	config *Config
	deps   Dependencies
	logger logger.Logger
}

// NewService fills in defaults for optional dependencies.
func NewService(config *Config, deps Dependencies, log logger.Logger) *Service {
	if deps.Sanitizer == nil {
		deps.Sanitizer = NewSanitizer(0)
	}
	if deps.Estimator == nil {
		deps.Estimator = budget.NewEstimator(budget.DefaultDivisor)
	}
	if deps.Snapshots == nil {
		deps.Snapshots = snapshot.NewReader(deps.Estimator)
	}
	if deps.Modes == nil {
		deps.Modes = planning.DefaultModeDetector()
	}
	if config.MaxSnapshotList <= 0 {
		config.MaxSnapshotList = 100
	}
	if config.MaxSnapshotPoints <= 0 {
		config.MaxSnapshotPoints = 400
	}
	return &Service{
		config: config,
		deps:   deps,
		logger: logger.Component(log, "assistant"),
	}
}

// fetched is what the fetch stage hands to prompting.
type fetched struct {
	data     *models.DataPayload
	meta     models.FetchMetadata
	degraded bool
	warnings []string
}

// Answer runs sanitize, route, detect mode, plan, fetch, trim, invoke and
// assemble, in that order.
func (s *Service) Answer(ctx context.Context, req models.AnswerRequest) (*models.AnswerResult, error) {
	start := time.Now()
	requestID := uuid.New().String()
	log := s.logger.With(map[string]interface{}{"requestId": requestID})

	sanitized, err := s.deps.Sanitizer.Sanitize(req.Query)
	if err != nil {
		s.finish(ctx, log, "", err, start)
		return nil, err
	}
	if sanitized.Modified {
		log.Warn("query sanitized", map[string]interface{}{"removedPatterns": sanitized.Removed})
	}
	query := sanitized.Query

	if err := req.Snapshot.Validate(s.config.MaxSnapshotList, s.config.MaxSnapshotPoints); err != nil {
		err = apperrors.NewInvalidRequestError(err.Error())
		s.finish(ctx, log, "", err, start)
		return nil, err
	}

	decision, err := s.deps.Router.Route(ctx, query, req.Snapshot, routing.RouteContext{
		SelectedEntityCount: len(req.EntityIDs),
	})
	if err != nil {
		s.finish(ctx, log, "", err, start)
		return nil, err
	}
	mode := s.deps.Modes.Detect(req.EntityIDs, query)

	out, err := s.fetch(ctx, log, decision, mode, req, query)
	if err != nil {
		s.finish(ctx, log, decision.Source, err, start)
		return nil, err
	}

	dataBudget := mode.TokenBudget - s.config.PromptReserveTokens
	if dataBudget <= 0 {
		dataBudget = mode.TokenBudget
	}
	if s.deps.Estimator.Trim(out.data, dataBudget) {
		out.warnings = append(out.warnings, warnTruncated)
		log.Info("context trimmed", map[string]interface{}{
			"tokenBudget":   dataBudget,
			"tokenEstimate": out.data.TokenEstimate,
		})
	}

	ranked := req.RankedModels
	if len(ranked) == 0 {
		ranked = s.config.DefaultModels
	}
	invoked, err := s.deps.Invoker.Invoke(ctx, llm.ContextPayload{
		Query:    query,
		Routing:  decision,
		Mode:     mode,
		Data:     out.data,
		Warnings: out.warnings,
	}, ranked)
	if err != nil {
		attempts := 0
		if invoked != nil {
			attempts = len(invoked.Attempts)
		}
		log.Error("no model produced an answer", map[string]interface{}{
			"attempts":  attempts,
			"errorCode": string(apperrors.CodeOf(err)),
		})
		s.finish(ctx, log, out.meta.Source, err, start)
		return nil, err
	}

	result := Assemble(requestID, decision, mode, out.data, out.meta, invoked, out.degraded, out.warnings)
	log.Info("answer assembled", map[string]interface{}{
		"source":       string(result.FetchMetadata.Source),
		"mode":         string(result.Mode),
		"model":        invoked.ModelID,
		"attempts":     len(result.ModelAttempts),
		"rowCount":     result.FetchMetadata.RowCount,
		"degraded":     result.Degraded,
		"totalCostUsd": result.TotalCostUSD,
	})
	s.finish(ctx, log, out.meta.Source, nil, start)
	return result, nil
}

// fetch loads the routed source. A BackendUnavailable failure falls back to
// decision.FallbackSource once, and then to the caller's snapshot.
func (s *Service) fetch(ctx context.Context, log logger.Logger, decision models.RoutingDecision, mode models.Mode, req models.AnswerRequest, query string) (*fetched, error) {
	data, err := s.load(ctx, decision.Source, decision, mode, req, query)
	if err == nil {
		return &fetched{data: data, meta: metadataFor(decision.Source, data)}, nil
	}
	if !stderrors.Is(err, apperrors.ErrBackendUnavailable) {
		return nil, err
	}
	s.deps.Outages.Record(ctx, failedSource(err, decision.Source))

	out := &fetched{degraded: true}
	if decision.FallbackSource != nil {
		to := *decision.FallbackSource
		metrics.SourceFallbacks.WithLabelValues(string(decision.Source), string(to)).Inc()
		log.Warn("source unavailable, using fallback", map[string]interface{}{
			"from": string(decision.Source),
			"to":   string(to),
		})

		data, ferr := s.load(ctx, to, decision, mode, req, query)
		if ferr == nil {
			out.data = data
			out.meta = metadataFor(to, data)
			out.meta.FallbackUsed = true
			out.warnings = append(out.warnings, fmt.Sprintf("The %s data source is unavailable; this answer uses %s data instead.", decision.Source, to))
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !stderrors.Is(ferr, apperrors.ErrBackendUnavailable) {
			return nil, ferr
		}
		s.deps.Outages.Record(ctx, failedSource(ferr, to))
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	log.Warn("serving snapshot-only answer", map[string]interface{}{"source": string(decision.Source)})
	out.data = s.deps.Snapshots.Read(req.Snapshot)
	out.meta = metadataFor(models.SourceSnapshot, out.data)
	out.meta.FallbackUsed = true
	out.warnings = append(out.warnings, warnDegraded)
	return out, nil
}

// failedSource is the backend named by a BackendUnavailable error, which may
// be a dependency such as the access table rather than the routed source.
func failedSource(err error, routed models.Source) models.Source {
	if stdErr := apperrors.AsStandard(err); stdErr != nil {
		if src, ok := stdErr.Metadata["source"].(string); ok && src != "" {
			return models.Source(src)
		}
	}
	return routed
}

// load plans and fetches one source. The snapshot is read in place.
func (s *Service) load(ctx context.Context, source models.Source, decision models.RoutingDecision, mode models.Mode, req models.AnswerRequest, query string) (*models.DataPayload, error) {
	if source == models.SourceSnapshot {
		return s.deps.Snapshots.Read(req.Snapshot), nil
	}

	d := models.NewRoutingDecision(source, decision.Confidence, decision.Method, decision.Reason, nil)
	plans, err := s.deps.Planner.Plan(ctx, d, mode, req.EntityIDs, query, req.CallerID)
	if err != nil {
		return nil, err
	}

	var merged *models.DataPayload
	for _, plan := range plans {
		p, err := s.deps.Fetchers.Fetch(ctx, plan)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			merged = p
			continue
		}
		merged.Rows = append(merged.Rows, p.Rows...)
		merged.SourceLatencyMs += p.SourceLatencyMs
		merged.Truncated = merged.Truncated || p.Truncated
		merged.Cached = merged.Cached && p.Cached
	}
	if merged == nil {
		merged = &models.DataPayload{Source: source, Rows: []models.Row{}}
	}
	s.deps.Estimator.Stamp(merged)
	return merged, nil
}

func metadataFor(source models.Source, p *models.DataPayload) models.FetchMetadata {
	return models.FetchMetadata{
		Source:          source,
		RowCount:        p.RowCount(),
		ExecutionTimeMs: p.SourceLatencyMs,
		TemplateID:      p.TemplateID,
		TokenEstimate:   p.TokenEstimate,
		Truncated:       p.Truncated,
		Cached:          p.Cached,
	}
}

func (s *Service) finish(ctx context.Context, log logger.Logger, source models.Source, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = string(apperrors.CodeOf(err))
		log.Warn("request failed", map[string]interface{}{
			"errorCode": status,
			"latencyMs": time.Since(start).Milliseconds(),
		})
	}
	s.deps.Metrics.RecordRequest(context.WithoutCancel(ctx), string(source), status, time.Since(start))
}
