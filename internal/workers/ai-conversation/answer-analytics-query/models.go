// internal/workers/ai-conversation/answer-analytics-query/models.go
package answeranalyticsquery

import "analytics-assistant/internal/models"

// Input is the job variables.
type Input struct {
	Query        string           `json:"query"`
	Snapshot     *models.Snapshot `json:"snapshot"`
	EntityIDs    []string         `json:"entityIds"`
	CallerID     string           `json:"callerId"`
	RankedModels []string         `json:"rankedModels"`
}

func (i *Input) request() models.AnswerRequest {
	return models.AnswerRequest{
		Query:        i.Query,
		Snapshot:     i.Snapshot,
		EntityIDs:    i.EntityIDs,
		CallerID:     i.CallerID,
		RankedModels: i.RankedModels,
	}
}

// Output is written back as process variables.
type Output struct {
	RequestID     string                 `json:"requestId"`
	Answer        string                 `json:"answer"`
	Routing       models.RoutingDecision `json:"routing"`
	FetchMetadata models.FetchMetadata   `json:"fetchMetadata"`
	ModelAttempts []models.ModelAttempt  `json:"modelAttempts"`
	Degraded      bool                   `json:"degraded"`
	Warnings      []string               `json:"warnings"`
	TotalCostUSD  float64                `json:"totalCostUsd"`
}

func outputFrom(r *models.AnswerResult) *Output {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return &Output{
		RequestID:     r.RequestID,
		Answer:        r.Answer,
		Routing:       r.Routing,
		FetchMetadata: r.FetchMetadata,
		ModelAttempts: r.ModelAttempts,
		Degraded:      r.Degraded,
		Warnings:      warnings,
		TotalCostUSD:  r.TotalCostUSD,
	}
}
