// internal/planning/keywords.go
package planning

import (
	"regexp"

	"analytics-assistant/internal/models"
)

type templateRule struct {
	Template models.TemplateID
	Pattern  *regexp.Regexp
}

// templateRules are tried in order; the first match picks the template.
var templateRules = []templateRule{
	{
		Template: models.TemplateEntityPerformance,
		Pattern:  regexp.MustCompile(`(?i)\b(top|bottom|best|worst|rank(ed|ing)?|leaderboard|perform(ance|ing|ers?)|entities|accounts|stores)\b`),
	},
	{
		Template: models.TemplateTimeSeriesFinancial,
		Pattern:  regexp.MustCompile(`(?i)\b(trends?|over time|daily|weekly|monthly|revenue|sales|orders?|aov|average order|refunds?|growth|decline)\b`),
	},
	{
		Template: models.TemplateRelationshipEngagement,
		Pattern:  regexp.MustCompile(`(?i)\b(opens?|open rates?|clicks?|click rates?|engagement|unsubscribes?|bounces?|subscribers?|deliverability|relationships?)\b`),
	},
}

type resourceRule struct {
	Resource models.LiveResource
	Pattern  *regexp.Regexp
}

var resourceRules = []resourceRule{
	{
		Resource: models.LiveScheduledSends,
		Pattern:  regexp.MustCompile(`(?i)\b(scheduled|upcoming|queued|sends?|broadcasts?)\b`),
	},
	{
		Resource: models.LiveAutomationStatus,
		Pattern:  regexp.MustCompile(`(?i)\b(automations?|flows?|journeys?|workflows?)\b`),
	},
	{
		Resource: models.LiveMembership,
		Pattern:  regexp.MustCompile(`(?i)\b(members?|membership|profiles?|subscribers?|segments?|groups?|lists?|who is in)\b`),
	},
}

var quantifierPattern = regexp.MustCompile(`(?i)\b(?:top|bottom|first|best|worst|show(?:\s+me)?)\s+(\d{1,5})\b`)

type windowRule struct {
	Pattern *regexp.Regexp
	// Days maps the match to a window length. Fixed phrases ignore the groups.
	Days func(m []string) int
}

// windowRules mirror the phrases users type. First match wins.
var windowRules = []windowRule{
	{Pattern: regexp.MustCompile(`(?i)\blast (\d+) days?\b`), Days: func(m []string) int { return atoi(m[1]) }},
	{Pattern: regexp.MustCompile(`(?i)\bpast (\d+) days?\b`), Days: func(m []string) int { return atoi(m[1]) }},
	{Pattern: regexp.MustCompile(`(?i)\blast week\b`), Days: func([]string) int { return 7 }},
	{Pattern: regexp.MustCompile(`(?i)\blast month\b`), Days: func([]string) int { return 30 }},
	{Pattern: regexp.MustCompile(`(?i)\blast (\d+) weeks?\b`), Days: func(m []string) int { return atoi(m[1]) * 7 }},
	{Pattern: regexp.MustCompile(`(?i)\blast quarter\b`), Days: func([]string) int { return 90 }},
}

var comparisonPattern = regexp.MustCompile(`(?i)(\bvs\.?\s|\bversus\b|\bcompared? (to|with)\b|\bcomparison\b|\b(previous|prior) period\b|\b(period|week|month|year) over (period|week|month|year)\b)`)

type datasetRule struct {
	Dataset models.Dataset
	Pattern *regexp.Regexp
}

var datasetRules = []datasetRule{
	{Dataset: models.DatasetPerformance, Pattern: regexp.MustCompile(`(?i)\b(campaigns?|emails?|sends?|broadcasts?|newsletters?)\b`)},
	{Dataset: models.DatasetAutomations, Pattern: regexp.MustCompile(`(?i)\b(flows?|automations?|welcome|abandon(ed)?|browse|win-?back)\b`)},
	{Dataset: models.DatasetRevenue, Pattern: regexp.MustCompile(`(?i)\b(revenue|sales|orders?|aov|average order|conversions?)\b`)},
	{Dataset: models.DatasetProducts, Pattern: regexp.MustCompile(`(?i)\b(products?|items?|skus?|bestsellers?|top selling)\b`)},
	{Dataset: models.DatasetAudiences, Pattern: regexp.MustCompile(`(?i)\b(segments?|audiences?|lists?|subscribers?|vip|customers?)\b`)},
	{Dataset: models.DatasetTimeSeries, Pattern: regexp.MustCompile(`(?i)\b(trends?|over time|daily|weekly|growth|decline|compare)\b`)},
}

// datasetTemplates lists, per dataset, the templates that carry it. The
// first entry is fetched when none is planned yet. Products and audiences
// have no template of their own.
var datasetTemplates = []struct {
	Dataset   models.Dataset
	Templates []models.TemplateID
}{
	{Dataset: models.DatasetRevenue, Templates: []models.TemplateID{models.TemplateEntityPerformance, models.TemplateTimeSeriesFinancial}},
	{Dataset: models.DatasetTimeSeries, Templates: []models.TemplateID{models.TemplateTimeSeriesFinancial}},
	{Dataset: models.DatasetPerformance, Templates: []models.TemplateID{models.TemplateRelationshipEngagement}},
	{Dataset: models.DatasetAutomations, Templates: []models.TemplateID{models.TemplateRelationshipEngagement}},
	{Dataset: models.DatasetProducts},
	{Dataset: models.DatasetAudiences},
}

// portfolioPruned are too detailed to fetch across many entities.
var portfolioPruned = map[models.Dataset]bool{
	models.DatasetProducts:   true,
	models.DatasetAudiences:  true,
	models.DatasetTimeSeries: true,
}

func selectTemplate(query string) models.TemplateID {
	for _, r := range templateRules {
		if r.Pattern.MatchString(query) {
			return r.Template
		}
	}
	return models.TemplateEntityPerformance
}

func selectResource(query string) models.LiveResource {
	for _, r := range resourceRules {
		if r.Pattern.MatchString(query) {
			return r.Resource
		}
	}
	return models.LiveMembership
}

// requestedLimit returns the explicit "top N" quantifier, or 0.
func requestedLimit(query string) int {
	m := quantifierPattern.FindStringSubmatch(query)
	if m == nil {
		return 0
	}
	return atoi(m[1])
}
