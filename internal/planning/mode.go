// internal/planning/mode.go
package planning

import (
	"strconv"
	"time"

	"analytics-assistant/internal/common/config"
	"analytics-assistant/internal/models"
)

const day = 24 * time.Hour

// ModeSettings are the per-mode windows and budgets.
type ModeSettings struct {
	Days        int
	MaxRecords  int
	TokenBudget int
}

// ModeDetector holds the per-mode windows, record caps and token budgets.
type ModeDetector struct {
	SingleEntity ModeSettings
	Portfolio    ModeSettings
	Now          func() time.Time
}

// DefaultModeDetector uses the stock windows: a quarter for one entity, two
// weeks across a portfolio.
func DefaultModeDetector() *ModeDetector {
	return &ModeDetector{
		SingleEntity: ModeSettings{Days: 90, MaxRecords: 1000, TokenBudget: 50000},
		Portfolio:    ModeSettings{Days: 14, MaxRecords: 100, TokenBudget: 30000},
		Now:          time.Now,
	}
}

// NewModeDetector builds a detector from the mode config section.
func NewModeDetector(cfg config.ModeConfig) *ModeDetector {
	d := DefaultModeDetector()
	if cfg.SingleEntityDays > 0 {
		d.SingleEntity.Days = cfg.SingleEntityDays
	}
	if cfg.SingleEntityMaxRecords > 0 {
		d.SingleEntity.MaxRecords = cfg.SingleEntityMaxRecords
	}
	if cfg.SingleEntityTokenBudget > 0 {
		d.SingleEntity.TokenBudget = cfg.SingleEntityTokenBudget
	}
	if cfg.PortfolioDays > 0 {
		d.Portfolio.Days = cfg.PortfolioDays
	}
	if cfg.PortfolioMaxRecords > 0 {
		d.Portfolio.MaxRecords = cfg.PortfolioMaxRecords
	}
	if cfg.PortfolioTokenBudget > 0 {
		d.Portfolio.TokenBudget = cfg.PortfolioTokenBudget
	}
	return d
}

// DetectMode runs the default detector at a fixed instant.
func DetectMode(entityIDs []string, query string, now time.Time) models.Mode {
	d := DefaultModeDetector()
	d.Now = func() time.Time { return now }
	return d.Detect(entityIDs, query)
}

// Detect maps every input to exactly one mode. It never fails.
func (d *ModeDetector) Detect(entityIDs []string, query string) models.Mode {
	kind := models.ModePortfolio
	settings := d.Portfolio
	if len(uniqueIDs(entityIDs)) == 1 {
		kind = models.ModeSingleEntity
		settings = d.SingleEntity
	}

	now := time.Now()
	if d.Now != nil {
		now = d.Now()
	}

	days := windowDays(query, settings.Days)
	tr := models.TimeRange{Start: now.Add(-time.Duration(days) * day), End: now}
	if comparisonPattern.MatchString(query) {
		cs := tr.Start.Add(-time.Duration(days) * day)
		ce := tr.Start
		tr.ComparisonStart = &cs
		tr.ComparisonEnd = &ce
	}

	return models.Mode{
		Kind:                kind,
		TimeRange:           tr,
		MaxRecordsPerSource: settings.MaxRecords,
		RequiredDatasets:    requiredDatasets(kind, query),
		TokenBudget:         settings.TokenBudget,
	}
}

// windowDays reads a time phrase from the query, capped at the mode maximum.
func windowDays(query string, max int) int {
	if max < 1 {
		max = 1
	}
	days := max
	for _, r := range windowRules {
		if m := r.Pattern.FindStringSubmatch(query); m != nil {
			days = r.Days(m)
			break
		}
	}
	if days < 1 {
		days = 1
	}
	if days > max {
		days = max
	}
	return days
}

func requiredDatasets(kind models.ModeKind, query string) []models.Dataset {
	set := map[models.Dataset]struct{}{}
	for _, r := range datasetRules {
		if r.Pattern.MatchString(query) {
			set[r.Dataset] = struct{}{}
		}
	}
	if kind == models.ModePortfolio {
		for d := range set {
			if portfolioPruned[d] {
				delete(set, d)
			}
		}
	}
	if len(set) == 0 {
		set[models.DatasetPerformance] = struct{}{}
		set[models.DatasetRevenue] = struct{}{}
	}
	return models.DatasetSet(set)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
