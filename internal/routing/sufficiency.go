// internal/routing/sufficiency.go
package routing

import (
	"errors"
	"strconv"
	"strings"

	"analytics-assistant/internal/models"
)

// PresenceCheck names a structural check over the snapshot.
type PresenceCheck string

const (
	PresenceEntityRecords PresenceCheck = "entityRecords"
	PresenceRevenueTotals PresenceCheck = "revenueTotals"
	PresenceTimeSeries    PresenceCheck = "timeSeries"
	PresenceTopPerformers PresenceCheck = "topPerformers"
	PresenceBreakdowns    PresenceCheck = "breakdowns"
)

// AllPresenceChecks is evaluated in this order.
var AllPresenceChecks = []PresenceCheck{
	PresenceEntityRecords,
	PresenceRevenueTotals,
	PresenceTimeSeries,
	PresenceTopPerformers,
	PresenceBreakdowns,
}

// SignalEmptySnapshot fires when no presence check holds.
const SignalEmptySnapshot = "emptySnapshot"

// SufficiencyResult is the analyzer verdict with the checks that led to it.
type SufficiencyResult struct {
	Sufficient           bool            `json:"sufficient"`
	PresentSignals       []PresenceCheck `json:"presentSignals"`
	InsufficiencySignals []string        `json:"insufficiencySignals"`
}

// volumeOrFilterFamilies need more rows or a finer slice than any snapshot
// carries. Granularity and an empty snapshot are not among them: the snapshot
// still answers those, only less precisely.
var volumeOrFilterFamilies = map[string]bool{
	string(FamilyLargeList):        true,
	string(FamilyNumericFilter):    true,
	string(FamilyMissingBreakdown): true,
	string(FamilyAttribution):      true,
}

// VolumeOrFilterShortfall reports whether the snapshot failed for a reason
// only a larger store can fix.
func (r SufficiencyResult) VolumeOrFilterShortfall() bool {
	for _, s := range r.InsufficiencySignals {
		if volumeOrFilterFamilies[s] {
			return true
		}
	}
	return false
}

// Has reports whether signal is among the insufficiency signals.
func (r SufficiencyResult) Has(signal Family) bool {
	for _, s := range r.InsufficiencySignals {
		if s == string(signal) {
			return true
		}
	}
	return false
}

// SufficiencyAnalyzer decides whether the snapshot already answers a query.
type SufficiencyAnalyzer struct {
	// DefaultTopN stands in for the list size when the snapshot has no list.
	DefaultTopN int
}

// NewSufficiencyAnalyzer falls back to a top 10 when defaultTopN is not positive.
func NewSufficiencyAnalyzer(defaultTopN int) *SufficiencyAnalyzer {
	if defaultTopN <= 0 {
		defaultTopN = 10
	}
	return &SufficiencyAnalyzer{DefaultTopN: defaultTopN}
}

// AnalyzeSufficiency uses the default analyzer.
func AnalyzeSufficiency(query string, snapshot *models.Snapshot) SufficiencyResult {
	return NewSufficiencyAnalyzer(10).Analyze(query, snapshot)
}

// Analyze is pure. Any demand signal makes the result insufficient, whatever
// the snapshot holds.
func (a *SufficiencyAnalyzer) Analyze(query string, snapshot *models.Snapshot) SufficiencyResult {
	result := SufficiencyResult{
		PresentSignals:       []PresenceCheck{},
		InsufficiencySignals: []string{},
	}

	for _, check := range AllPresenceChecks {
		if present(check, snapshot) {
			result.PresentSignals = append(result.PresentSignals, check)
		}
	}

	seen := make(map[Family]bool)
	if a.largeListRequested(query, snapshot) {
		seen[FamilyLargeList] = true
		result.InsufficiencySignals = append(result.InsufficiencySignals, string(FamilyLargeList))
	}
	for _, ind := range DemandIndicators {
		if seen[ind.Family] || !ind.Match(query) || satisfiedBy(ind, snapshot) {
			continue
		}
		seen[ind.Family] = true
		result.InsufficiencySignals = append(result.InsufficiencySignals, string(ind.Family))
	}

	if len(result.PresentSignals) == 0 {
		result.InsufficiencySignals = append(result.InsufficiencySignals, SignalEmptySnapshot)
	}

	result.Sufficient = len(result.InsufficiencySignals) == 0
	return result
}

func present(check PresenceCheck, s *models.Snapshot) bool {
	if s == nil {
		return false
	}
	switch check {
	case PresenceEntityRecords:
		return len(s.EntityRecords) > 0
	case PresenceRevenueTotals:
		return s.Totals != nil
	case PresenceTimeSeries:
		return len(s.TimeSeries) > 0
	case PresenceTopPerformers:
		return len(s.TopPerformers) > 0
	case PresenceBreakdowns:
		for _, rows := range s.Breakdowns {
			if len(rows) > 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// satisfiedBy reports whether the snapshot already covers a demand.
func satisfiedBy(ind Indicator, s *models.Snapshot) bool {
	if s == nil {
		return false
	}
	switch ind.Family {
	case FamilyMissingBreakdown, FamilyAttribution:
		return s.HasBreakdown(ind.Dimension)
	case FamilyGranularity:
		if len(s.TimeSeries) == 0 {
			return false
		}
		switch ind.Name {
		case "daily-granularity":
			return s.Granularity == models.GranularityDaily
		case "weekly-granularity":
			return s.Granularity == models.GranularityDaily || s.Granularity == models.GranularityWeekly
		default:
			return true
		}
	case FamilyNumericFilter:
		return false
	default:
		return false
	}
}

func (a *SufficiencyAnalyzer) largeListRequested(query string, s *models.Snapshot) bool {
	if allRecordsPattern.MatchString(query) {
		return true
	}

	available := a.DefaultTopN
	if s != nil {
		switch {
		case len(s.TopPerformers) > 0:
			available = len(s.TopPerformers)
		case len(s.EntityRecords) > 0:
			available = len(s.EntityRecords)
		}
	}

	for _, m := range rankedCountPattern.FindAllStringSubmatch(query, -1) {
		n, err := strconv.Atoi(strings.TrimSpace(m[2]))
		if errors.Is(err, strconv.ErrRange) {
			return true
		}
		if err == nil && n > available {
			return true
		}
	}
	return false
}
