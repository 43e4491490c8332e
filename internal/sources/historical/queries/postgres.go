// internal/sources/historical/queries/postgres.go
package queries

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"analytics-assistant/internal/models"

	"github.com/lib/pq"
)

const entityPerformanceQuery = `
	SELECT
		m.entity_id,
		COALESCE(e.name, '') AS name,
		COALESCE(SUM(m.revenue), 0) AS revenue,
		COALESCE(SUM(m.orders), 0) AS orders,
		COALESCE(SUM(m.recipients), 0) AS recipients,
		COALESCE(SUM(m.conversions), 0) AS conversions
	FROM entity_daily_metrics m
	LEFT JOIN entities e ON e.id = m.entity_id
	WHERE m.entity_id = ANY($1)
	  AND m.day >= $2 AND m.day < $3
	GROUP BY m.entity_id, e.name
	ORDER BY revenue DESC, m.entity_id
	LIMIT $4
`

// EntityPerformance ranks entities by revenue over the window.
func EntityPerformance(ctx context.Context, b *Backends, p Params) ([]models.Row, error) {
	if b == nil || b.DB == nil {
		return nil, fmt.Errorf("%w: postgres", ErrBackendMissing)
	}

	rows, err := b.DB.QueryContext(ctx, entityPerformanceQuery, pq.Array(p.EntityIDs), p.Start, p.End, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("entity performance query: %w", err)
	}
	defer rows.Close()

	var out []models.Row
	rank := 0
	for rows.Next() {
		var (
			entityID, name                  string
			revenue                         float64
			orders, recipients, conversions int64
		)
		if err := rows.Scan(&entityID, &name, &revenue, &orders, &recipients, &conversions); err != nil {
			return nil, fmt.Errorf("scan entity performance: %w", err)
		}
		rank++
		row := models.Row{
			"rank":        rank,
			"entity_id":   entityID,
			"name":        name,
			"revenue":     revenue,
			"orders":      orders,
			"recipients":  recipients,
			"conversions": conversions,
		}
		if orders > 0 {
			row["average_order_value"] = round2(revenue / float64(orders))
		}
		if recipients > 0 {
			row["conversion_rate"] = round4(float64(conversions) / float64(recipients))
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

const timeSeriesQuery = `
	SELECT
		m.day,
		COALESCE(SUM(m.revenue), 0) AS revenue,
		COALESCE(SUM(m.orders), 0) AS orders,
		COALESCE(SUM(m.refunds), 0) AS refunds
	FROM entity_daily_metrics m
	WHERE m.entity_id = ANY($1)
	  AND m.day >= $2 AND m.day < $3
	GROUP BY m.day
	ORDER BY m.day
	LIMIT $4
`

// TimeSeriesFinancial returns daily revenue rows. With a comparison window
// the prior period follows, tagged period=comparison.
func TimeSeriesFinancial(ctx context.Context, b *Backends, p Params) ([]models.Row, error) {
	if b == nil || b.DB == nil {
		return nil, fmt.Errorf("%w: postgres", ErrBackendMissing)
	}

	out, err := dailySeries(ctx, b.DB, p.EntityIDs, p.Start, p.End, p.Limit, "current")
	if err != nil {
		return nil, err
	}
	if p.ComparisonStart != nil && p.ComparisonEnd != nil {
		prior, err := dailySeries(ctx, b.DB, p.EntityIDs, *p.ComparisonStart, *p.ComparisonEnd, p.Limit, "comparison")
		if err != nil {
			return nil, err
		}
		out = append(out, prior...)
	}
	return out, nil
}

func dailySeries(ctx context.Context, db *sql.DB, ids []string, start, end time.Time, limit int, period string) ([]models.Row, error) {
	rows, err := db.QueryContext(ctx, timeSeriesQuery, pq.Array(ids), start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("time series query: %w", err)
	}
	defer rows.Close()

	var out []models.Row
	for rows.Next() {
		var (
			day              time.Time
			revenue, refunds float64
			orders           int64
		)
		if err := rows.Scan(&day, &revenue, &orders, &refunds); err != nil {
			return nil, fmt.Errorf("scan time series: %w", err)
		}
		out = append(out, models.Row{
			"date":    day.Format("2006-01-02"),
			"period":  period,
			"revenue": revenue,
			"orders":  orders,
			"refunds": refunds,
		})
	}
	return out, rows.Err()
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}
