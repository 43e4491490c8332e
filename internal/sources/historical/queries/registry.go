// internal/sources/historical/queries/registry.go
package queries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"analytics-assistant/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

var (
	ErrMissingParam    = errors.New("missing required parameter")
	ErrUnknownTemplate = errors.New("unknown query template")
	ErrBackendMissing  = errors.New("template backend not configured")
)

// Backends are the stores a template may read. Connection lifecycle belongs
// to the caller.
type Backends struct {
	DB          *sql.DB
	ES          *elasticsearch.Client
	EngageIndex string
}

// Params are the values bound into a template.
type Params struct {
	EntityIDs       []string
	Start           time.Time
	End             time.Time
	ComparisonStart *time.Time
	ComparisonEnd   *time.Time
	Limit           int
}

// ParamsFromPlan binds a plan to template parameters.
func ParamsFromPlan(plan models.FetchPlan) Params {
	return Params{
		EntityIDs:       plan.EntityIDs,
		Start:           plan.TimeRange.Start,
		End:             plan.TimeRange.End,
		ComparisonStart: plan.TimeRange.ComparisonStart,
		ComparisonEnd:   plan.TimeRange.ComparisonEnd,
		Limit:           plan.Limit,
	}
}

func (p Params) validate() error {
	if len(p.EntityIDs) == 0 {
		return fmt.Errorf("%w: entityIds", ErrMissingParam)
	}
	if p.Limit <= 0 {
		return fmt.Errorf("%w: limit", ErrMissingParam)
	}
	if !p.End.After(p.Start) {
		return fmt.Errorf("%w: time range end must follow start", ErrMissingParam)
	}
	return nil
}

// TemplateFunc returns rows in the template's fixed aggregation shape.
type TemplateFunc func(ctx context.Context, b *Backends, p Params) ([]models.Row, error)

// Registry maps each template id to its query.
var Registry = map[models.TemplateID]TemplateFunc{
	models.TemplateEntityPerformance:      EntityPerformance,
	models.TemplateTimeSeriesFinancial:    TimeSeriesFinancial,
	models.TemplateRelationshipEngagement: RelationshipEngagement,
}

// Execute returns rows, row count and execution time in ms.
func Execute(ctx context.Context, b *Backends, templateID models.TemplateID, p Params) ([]models.Row, int, int64, error) {
	fn, exists := Registry[templateID]
	if !exists {
		return nil, 0, 0, fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}
	if err := p.validate(); err != nil {
		return nil, 0, 0, err
	}

	start := time.Now()
	rows, err := fn(ctx, b, p)
	if err != nil {
		return nil, 0, 0, err
	}
	if rows == nil {
		rows = []models.Row{}
	}
	return rows, len(rows), time.Since(start).Milliseconds(), nil
}
