// internal/assistant/assembler.go
package assistant

import (
	"math"

	"analytics-assistant/internal/llm"
	"analytics-assistant/internal/models"
)

// Assemble builds the caller-facing result. It performs no I/O.
func Assemble(requestID string, decision models.RoutingDecision, mode models.Mode, data *models.DataPayload, meta models.FetchMetadata, invoked *llm.InvokeResult, degraded bool, warnings []string) *models.AnswerResult {
	result := &models.AnswerResult{
		RequestID:     requestID,
		Routing:       decision,
		Mode:          mode.Kind,
		FetchMetadata: meta,
		ModelAttempts: []models.ModelAttempt{},
		Degraded:      degraded,
		TotalCostUSD:  decision.CostUSD,
	}

	if data != nil {
		result.FetchMetadata.RowCount = data.RowCount()
		result.FetchMetadata.TokenEstimate = data.TokenEstimate
		result.FetchMetadata.Truncated = data.Truncated
		result.FetchMetadata.Cached = data.Cached
		if result.FetchMetadata.TemplateID == "" {
			result.FetchMetadata.TemplateID = data.TemplateID
		}
	}

	if invoked != nil {
		result.Answer = invoked.Answer
		result.ModelAttempts = append(result.ModelAttempts, invoked.Attempts...)
		result.TotalCostUSD += invoked.TotalCostUSD
	}
	result.TotalCostUSD = math.Round(result.TotalCostUSD*1e6) / 1e6

	if len(warnings) > 0 {
		result.Warnings = append([]string(nil), warnings...)
	}
	return result
}
