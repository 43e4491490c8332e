// internal/routing/live.go
package routing

import "analytics-assistant/internal/models"

// LiveDataResult says whether a query needs current state from the live API.
type LiveDataResult struct {
	Required   bool              `json:"required"`
	Indicators []Family          `json:"indicators"`
	Confidence models.Confidence `json:"confidence"`
}

// DetectLiveData looks at the query text only.
func DetectLiveData(query string) LiveDataResult {
	families := MatchFamilies(LiveIndicators, query)
	result := LiveDataResult{
		Required:   len(families) > 0,
		Indicators: families,
		Confidence: models.ConfidenceLow,
	}
	if result.Indicators == nil {
		result.Indicators = []Family{}
	}
	for _, f := range families {
		if highConfidenceLive[f] {
			result.Confidence = models.ConfidenceHigh
			break
		}
	}
	return result
}
