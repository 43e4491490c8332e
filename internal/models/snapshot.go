// internal/models/snapshot.go
package models

import "fmt"

// SnapshotSchemaVersion is the only snapshot version accepted.
const SnapshotSchemaVersion = 1

// Snapshot is the bounded view the caller already shows the user. It is
// read-only for the whole request.
type Snapshot struct {
	Version       int                       `json:"version"`
	Granularity   Granularity               `json:"granularity,omitempty"`
	EntityRecords []EntityRecord            `json:"entityRecords,omitempty"`
	Totals        *Totals                   `json:"totals,omitempty"`
	TimeSeries    []TimeSeriesPoint         `json:"timeSeries,omitempty"`
	TopPerformers []RankedEntity            `json:"topPerformers,omitempty"`
	Breakdowns    map[string][]BreakdownRow `json:"breakdowns,omitempty"`
}

// Granularity is the spacing of time-series points.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// EntityRecord is one entity row shown on the dashboard.
type EntityRecord struct {
	EntityID string             `json:"entityId"`
	Name     string             `json:"name"`
	Revenue  float64            `json:"revenue"`
	Orders   int                `json:"orders"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

// Totals are the headline figures for the visible scope.
type Totals struct {
	Revenue           float64 `json:"revenue"`
	Orders            int     `json:"orders"`
	AverageOrderValue float64 `json:"averageOrderValue"`
	Currency          string  `json:"currency,omitempty"`
}

// TimeSeriesPoint is one sample of the revenue series.
type TimeSeriesPoint struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

// RankedEntity is one entry of a top-N list.
type RankedEntity struct {
	Rank     int     `json:"rank"`
	EntityID string  `json:"entityId"`
	Name     string  `json:"name"`
	Metric   string  `json:"metric"`
	Value    float64 `json:"value"`
}

// BreakdownRow is one slice of a breakdown by dimension.
type BreakdownRow struct {
	Key     string  `json:"key"`
	Revenue float64 `json:"revenue"`
	Share   float64 `json:"share"`
}

// HasBreakdown reports whether the snapshot carries rows for dimension.
func (s *Snapshot) HasBreakdown(dimension string) bool {
	if s == nil {
		return false
	}
	return len(s.Breakdowns[dimension]) > 0
}

// Validate enforces the size bounds of a snapshot.
func (s *Snapshot) Validate(maxList, maxPoints int) error {
	if s == nil {
		return nil
	}
	if s.Version != 0 && s.Version != SnapshotSchemaVersion {
		return fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	if len(s.EntityRecords) > maxList {
		return fmt.Errorf("snapshot entityRecords has %d items, max %d", len(s.EntityRecords), maxList)
	}
	if len(s.TopPerformers) > maxList {
		return fmt.Errorf("snapshot topPerformers has %d items, max %d", len(s.TopPerformers), maxList)
	}
	if len(s.TimeSeries) > maxPoints {
		return fmt.Errorf("snapshot timeSeries has %d points, max %d", len(s.TimeSeries), maxPoints)
	}
	for dim, rows := range s.Breakdowns {
		if len(rows) > maxList {
			return fmt.Errorf("snapshot breakdown %q has %d rows, max %d", dim, len(rows), maxList)
		}
	}
	return nil
}
