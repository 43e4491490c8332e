package assistant

import (
	"testing"

	"analytics-assistant/internal/llm"
	"analytics-assistant/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAssemble(t *testing.T) {
	decision := models.NewRoutingDecision(models.SourceHistorical, models.ConfidenceMedium, models.MethodModel, "needs 50 rows", models.SourcePtr(models.SourceSnapshot))
	decision.CostUSD = 0.0012
	data := &models.DataPayload{
		Source:        models.SourceHistorical,
		TemplateID:    models.TemplateEntityPerformance,
		Rows:          []models.Row{{"entityId": "e1"}, {"entityId": "e2"}},
		TokenEstimate: 12,
		Cached:        true,
	}
	invoked := &llm.InvokeResult{
		Answer:  "Two entities.",
		ModelID: "secondary",
		Attempts: []models.ModelAttempt{
			{ModelID: "primary", Outcome: models.OutcomeTimeout, CostUSD: 0},
			{ModelID: "secondary", Succeeded: true, Outcome: models.OutcomeSuccess, CostUSD: 0.0020001},
		},
		TotalCostUSD: 0.0020001,
	}

	result := Assemble("req-1", decision, models.Mode{Kind: models.ModePortfolio}, data,
		models.FetchMetadata{Source: models.SourceHistorical, ExecutionTimeMs: 41}, invoked, false, []string{"note"})

	assert.Equal(t, "req-1", result.RequestID)
	assert.Equal(t, "Two entities.", result.Answer)
	assert.Equal(t, models.ModePortfolio, result.Mode)
	assert.Equal(t, 2, result.FetchMetadata.RowCount)
	assert.Equal(t, int64(41), result.FetchMetadata.ExecutionTimeMs)
	assert.Equal(t, models.TemplateEntityPerformance, result.FetchMetadata.TemplateID)
	assert.True(t, result.FetchMetadata.Cached)
	assert.Len(t, result.ModelAttempts, 2)
	assert.Equal(t, 0.0032, result.TotalCostUSD)
	assert.Equal(t, []string{"note"}, result.Warnings)
}

func TestAssemble_NoInvocation(t *testing.T) {
	result := Assemble("req-2", models.RoutingDecision{Source: models.SourceSnapshot}, models.Mode{}, nil, models.FetchMetadata{}, nil, true, nil)

	assert.NotNil(t, result.ModelAttempts)
	assert.Empty(t, result.ModelAttempts)
	assert.True(t, result.Degraded)
	assert.Nil(t, result.Warnings)
}
