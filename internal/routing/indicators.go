// internal/routing/indicators.go
package routing

import "regexp"

// Family groups indicators that mean the same thing to the router.
type Family string

// Live-data families.
const (
	FamilyCurrentState Family = "currentState"
	FamilyListResource Family = "listResources"
	FamilyLiveCount    Family = "liveCount"
	FamilyStatusCheck  Family = "statusCheck"
	FamilyMembership   Family = "membership"
)

// Demand families. Each one names something the snapshot may not hold.
const (
	FamilyLargeList        Family = "largeListRequest"
	FamilyNumericFilter    Family = "numericFilter"
	FamilyMissingBreakdown Family = "missingBreakdown"
	FamilyAttribution      Family = "attribution"
	FamilyGranularity      Family = "granularity"
)

// Indicator is one named lexical rule. Tables are evaluated in order.
type Indicator struct {
	Name    string
	Family  Family
	Pattern *regexp.Regexp
	// Dimension is the snapshot breakdown key that satisfies this demand.
	Dimension string
}

// Match reports whether the pattern fires anywhere in query.
func (i Indicator) Match(query string) bool {
	return i.Pattern.MatchString(query)
}

// LiveIndicators detects questions about current, possibly uncommitted state.
var LiveIndicators = []Indicator{
	{
		Name:    "live-count",
		Family:  FamilyLiveCount,
		Pattern: regexp.MustCompile(`(?i)\b(how many|count of|number of)\s+(profiles?|subscribers?|people|contacts?|members?)\b`),
	},
	{
		Name:    "segment-membership",
		Family:  FamilyMembership,
		Pattern: regexp.MustCompile(`(?i)\b(who is in|who's in|who are in|members of|profiles? in|people in)\s+(my\s+|the\s+)?[\w-]+(\s+[\w-]+)?\s+(segments?|groups?|lists?)\b`),
	},
	{
		Name:    "current-resource",
		Family:  FamilyCurrentState,
		Pattern: regexp.MustCompile(`(?i)\b(current|currently|now|live|active|today'?s?)\s+(segments?|groups?|lists?|automations?|flows?|campaigns?|forms?)\b`),
	},
	{
		Name:    "right-now",
		Family:  FamilyCurrentState,
		Pattern: regexp.MustCompile(`(?i)\b(right now|currently|at the moment|as of now)\b`),
	},
	{
		Name:    "list-resources",
		Family:  FamilyListResource,
		Pattern: regexp.MustCompile(`(?i)\b(list|show|get)\s+(me\s+)?(my|all)?\s*(of\s+)?(my\s+)?(segments?|groups?|lists?|automations?|flows?|forms?|templates?)\b`),
	},
	{
		Name:    "status-check",
		Family:  FamilyStatusCheck,
		Pattern: regexp.MustCompile(`(?i)\b(active|inactive|paused|draft|scheduled|running)\s+(campaigns?|automations?|flows?|sends?)\b`),
	},
	{
		Name:    "status-of",
		Family:  FamilyStatusCheck,
		Pattern: regexp.MustCompile(`(?i)\bstatus\s+of\s+(my\s+)?(campaigns?|automations?|flows?|sends?)\b`),
	},
}

// highConfidenceLive are families whose match is unambiguous.
var highConfidenceLive = map[Family]bool{
	FamilyLiveCount:  true,
	FamilyMembership: true,
}

var (
	// "top 50", "first 25", "list 100". The count is compared with the snapshot.
	rankedCountPattern = regexp.MustCompile(`(?i)\b(top|first|bottom|best|worst|list|show)\s+(\d+)\b`)
	// "top all", "rank all of my entities", "show me every account". Plain
	// mentions such as "how are all my campaigns doing" are not list requests.
	allRecordsPattern = regexp.MustCompile(`(?i)\b(top|list)\s+all\b|\b(show|rank|sort|export|give)\s+(me\s+)?(all|every)\s+(of\s+)?(my\s+|the\s+)?(entities|entity|accounts?|stores?|brands?|campaigns?|records?)\b`)
)

// DemandIndicators ask for data a bounded snapshot cannot hold. The large
// list family is evaluated separately because it compares counts.
var DemandIndicators = []Indicator{
	{
		Name:    "metric-comparison",
		Family:  FamilyNumericFilter,
		Pattern: regexp.MustCompile(`(?i)\b(open rate|click rate|conversion rate|revenue|orders|aov|average order value)\s*(<=|>=|<|>|less than|more than|greater than|fewer than|below|above|over|under)\s*\$?\d`),
	},
	{
		Name:    "filter-clause",
		Family:  FamilyNumericFilter,
		Pattern: regexp.MustCompile(`(?i)\b(with|having|where)\s+(an?\s+)?(open rate|click rate|conversion rate|revenue|orders|aov)\s*(<=|>=|<|>|less than|more than|greater than|fewer than|below|above|over|under)\b`),
	},
	{
		Name:      "product-breakdown",
		Family:    FamilyMissingBreakdown,
		Pattern:   regexp.MustCompile(`(?i)\b(products?|skus?|items?|per product|by product)\b`),
		Dimension: "product",
	},
	{
		Name:      "customer-breakdown",
		Family:    FamilyMissingBreakdown,
		Pattern:   regexp.MustCompile(`(?i)\b(per customer|by customer|customer level|per profile|by profile)\b`),
		Dimension: "customer",
	},
	{
		Name:      "cohort-breakdown",
		Family:    FamilyMissingBreakdown,
		Pattern:   regexp.MustCompile(`(?i)\b(cohorts?|group(ed)? by|break\s?down by)\b`),
		Dimension: "cohort",
	},
	{
		Name:      "channel-attribution",
		Family:    FamilyAttribution,
		Pattern:   regexp.MustCompile(`(?i)\b(attribution|attributed|by channel|per channel|channel breakdown|which channels?|utm)\b`),
		Dimension: "channel",
	},
	{
		Name:    "daily-granularity",
		Family:  FamilyGranularity,
		Pattern: regexp.MustCompile(`(?i)\b(daily|day by day|per day|each day|day over day|hourly)\b`),
	},
	{
		Name:    "weekly-granularity",
		Family:  FamilyGranularity,
		Pattern: regexp.MustCompile(`(?i)\b(weekly|per week|each week|week over week)\b`),
	},
	{
		Name:    "trend",
		Family:  FamilyGranularity,
		Pattern: regexp.MustCompile(`(?i)\b(trend|trending|over time|growth|decline)\b`),
	},
}

// MatchFamilies returns the distinct families that fire, in table order.
func MatchFamilies(table []Indicator, query string) []Family {
	seen := make(map[Family]bool)
	var out []Family
	for _, ind := range table {
		if seen[ind.Family] || !ind.Match(query) {
			continue
		}
		seen[ind.Family] = true
		out = append(out, ind.Family)
	}
	return out
}
