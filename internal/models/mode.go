// internal/models/mode.go
package models

import (
	"sort"
	"time"
)

// ModeKind is single_entity or portfolio.
type ModeKind string

const (
	ModeSingleEntity ModeKind = "single_entity"
	ModePortfolio    ModeKind = "portfolio"
)

// Dataset names a family of data a question needs.
type Dataset string

const (
	DatasetPerformance Dataset = "performance"
	DatasetAutomations Dataset = "automations"
	DatasetRevenue     Dataset = "revenue"
	DatasetProducts    Dataset = "products"
	DatasetAudiences   Dataset = "audiences"
	DatasetTimeSeries  Dataset = "time_series"
)

// TimeRange is the analysis window, with an optional comparison window.
type TimeRange struct {
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	ComparisonStart *time.Time `json:"comparisonStart,omitempty"`
	ComparisonEnd   *time.Time `json:"comparisonEnd,omitempty"`
}

// Duration is the length of the main window.
func (t TimeRange) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// HasComparison reports whether a comparison window is set.
func (t TimeRange) HasComparison() bool {
	return t.ComparisonStart != nil && t.ComparisonEnd != nil
}

// Mode is computed once per request.
type Mode struct {
	Kind                ModeKind  `json:"kind"`
	TimeRange           TimeRange `json:"timeRange"`
	MaxRecordsPerSource int       `json:"maxRecordsPerSource"`
	RequiredDatasets    []Dataset `json:"requiredDatasets"`
	TokenBudget         int       `json:"tokenBudget"`
}

// Requires reports whether d is among the required datasets.
func (m Mode) Requires(d Dataset) bool {
	for _, r := range m.RequiredDatasets {
		if r == d {
			return true
		}
	}
	return false
}

// DatasetSet turns a set into a sorted slice so modes compare structurally.
func DatasetSet(set map[Dataset]struct{}) []Dataset {
	out := make([]Dataset, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
