package routing

import (
	"fmt"

	"analytics-assistant/internal/models"
)

// topTenSnapshot is the usual dashboard view: a top-10 slice plus totals.
func topTenSnapshot() *models.Snapshot {
	s := &models.Snapshot{
		Version:     1,
		Granularity: models.GranularityWeekly,
		Totals:      &models.Totals{Revenue: 125000, Orders: 2300, AverageOrderValue: 54.35, Currency: "USD"},
	}
	for i := 1; i <= 10; i++ {
		s.TopPerformers = append(s.TopPerformers, models.RankedEntity{
			Rank: i, EntityID: fmt.Sprintf("e%d", i), Name: fmt.Sprintf("Entity %d", i),
			Metric: "revenue", Value: float64(20000 - i*1000),
		})
	}
	for i := 1; i <= 8; i++ {
		s.TimeSeries = append(s.TimeSeries, models.TimeSeriesPoint{Date: fmt.Sprintf("2026-08-%02d", i*7-6), Revenue: 15000})
	}
	return s
}
