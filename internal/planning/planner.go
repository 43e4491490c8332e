// internal/planning/planner.go
package planning

import (
	"context"
	"fmt"
	"strings"

	apperrors "analytics-assistant/internal/common/errors"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/common/observability"
	"analytics-assistant/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

// PlannerConfig bounds the row limits of generated plans.
type PlannerConfig struct {
	// MaxLimit caps any row limit, explicit or not.
	MaxLimit int
	// LiveResultCap bounds live requests independently of MaxLimit.
	LiveResultCap int
}

// Planner turns a routing decision into typed fetch plans.
type Planner struct {
	config   PlannerConfig
	resolver AccessResolver
	logger   logger.Logger
}

// NewPlanner applies the default limits. A nil resolver leaves unscoped
// requests with no accessible entities.
func NewPlanner(config PlannerConfig, resolver AccessResolver, log logger.Logger) *Planner {
	if config.MaxLimit <= 0 {
		config.MaxLimit = 1000
	}
	if config.LiveResultCap <= 0 {
		config.LiveResultCap = 100
	}
	return &Planner{
		config:   config,
		resolver: resolver,
		logger:   logger.Component(log, "planner"),
	}
}

// Plan returns no plans for the snapshot source. Historical and live plans
// need at least one accessible entity. Historical decisions get one plan per
// template the required datasets call for; live decisions get one plan.
func (p *Planner) Plan(ctx context.Context, decision models.RoutingDecision, mode models.Mode, entityIDs []string, query, callerID string) ([]models.FetchPlan, error) {
	ctx, span := observability.StartSpan(ctx, "plan", attribute.String("source", string(decision.Source)))
	defer span.End()

	switch decision.Source {
	case models.SourceSnapshot:
		return []models.FetchPlan{}, nil
	case models.SourceHistorical, models.SourceLive:
	default:
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("unknown source %q", decision.Source))
	}

	ids, err := p.scope(ctx, entityIDs, callerID, decision.Source)
	if err != nil {
		return nil, err
	}

	limit := requestedLimit(query)
	if limit <= 0 {
		limit = mode.MaxRecordsPerSource
	}
	if limit <= 0 || limit > p.config.MaxLimit {
		limit = p.config.MaxLimit
	}

	if decision.Source == models.SourceHistorical {
		plans := historicalPlans(selectTemplate(query), mode, ids, limit)
		for _, plan := range plans {
			p.logger.Debug("fetch planned", map[string]interface{}{
				"source":      string(plan.Source),
				"templateId":  string(plan.TemplateID),
				"entityCount": len(plan.EntityIDs),
				"limit":       plan.Limit,
			})
		}
		return plans, nil
	}

	if limit > p.config.LiveResultCap {
		limit = p.config.LiveResultCap
	}
	plan := models.FetchPlan{
		Source:    models.SourceLive,
		Resource:  selectResource(query),
		EntityIDs: ids[:1],
		TimeRange: mode.TimeRange,
		Limit:     limit,
	}

	p.logger.Debug("fetch planned", map[string]interface{}{
		"source":      string(plan.Source),
		"resource":    string(plan.Resource),
		"entityCount": len(plan.EntityIDs),
		"limit":       plan.Limit,
	})
	return []models.FetchPlan{plan}, nil
}

func (p *Planner) scope(ctx context.Context, entityIDs []string, callerID string, source models.Source) ([]string, error) {
	ids := uniqueIDs(entityIDs)
	if len(ids) == 0 && p.resolver != nil {
		resolved, err := p.resolver.ResolveEntities(ctx, callerID)
		if err != nil {
			return nil, err
		}
		ids = uniqueIDs(resolved)
	}
	if len(ids) == 0 {
		return nil, apperrors.NewNoAccessibleEntitiesError(string(source))
	}
	return ids, nil
}

// historicalPlans starts with the template the query asks for, then adds one
// plan for each required dataset that template does not already cover.
func historicalPlans(primary models.TemplateID, mode models.Mode, ids []string, limit int) []models.FetchPlan {
	templates := []models.TemplateID{primary}
	covered := func(options []models.TemplateID) bool {
		for _, t := range templates {
			for _, o := range options {
				if t == o {
					return true
				}
			}
		}
		return false
	}
	for _, dt := range datasetTemplates {
		if !mode.Requires(dt.Dataset) || len(dt.Templates) == 0 || covered(dt.Templates) {
			continue
		}
		templates = append(templates, dt.Templates[0])
	}

	plans := make([]models.FetchPlan, 0, len(templates))
	for _, t := range templates {
		plans = append(plans, models.FetchPlan{
			Source:     models.SourceHistorical,
			TemplateID: t,
			EntityIDs:  ids,
			TimeRange:  mode.TimeRange,
			Limit:      limit,
		})
	}
	return plans
}

// uniqueIDs trims and dedupes, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
