// internal/llm/prompt.go
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"analytics-assistant/internal/models"
)

// ContextPayload is everything the answer prompt is built from.
type ContextPayload struct {
	Query    string
	Routing  models.RoutingDecision
	Mode     models.Mode
	Data     *models.DataPayload
	Warnings []string
}

const strictAnswerInstruction = "Your previous reply was empty or unusable. Reply with a plain-text answer to the question, grounded only in the data above. Do not return JSON, code fences or an empty message."

// BuildAnswerPrompt returns the system and user prompts for one attempt.
func BuildAnswerPrompt(payload ContextPayload, strict bool) (string, string) {
	var system []string
	system = append(system, "You are an analytics assistant. Answer the user's question using ONLY the data provided.")
	system = append(system, "- Quote numbers exactly as they appear in the data")
	system = append(system, "- If the data does not cover the question, say so clearly instead of guessing")
	system = append(system, "- Keep the answer concise and use short lists for rankings")
	if payload.Mode.Kind == models.ModePortfolio {
		system = append(system, "- The user is looking at several accounts at once; compare them and call out outliers")
	} else {
		system = append(system, "- The user is looking at one account; go into detail for that account")
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("Question: %s", payload.Query))
	parts = append(parts, fmt.Sprintf("\nData source: %s (%s)", payload.Routing.Source, payload.Routing.Reason))

	tr := payload.Mode.TimeRange
	if !tr.Start.IsZero() {
		parts = append(parts, fmt.Sprintf("Time range: %s to %s", tr.Start.Format("2006-01-02"), tr.End.Format("2006-01-02")))
		if tr.HasComparison() {
			parts = append(parts, fmt.Sprintf("Comparison range: %s to %s",
				tr.ComparisonStart.Format("2006-01-02"), tr.ComparisonEnd.Format("2006-01-02")))
		}
	}

	if payload.Data != nil {
		parts = append(parts, "\nData:")
		parts = append(parts, renderData(payload.Data))
		if payload.Data.Truncated {
			parts = append(parts, "(Data was truncated to fit the budget; mention that the list may be partial.)")
		}
	}

	if len(payload.Warnings) > 0 {
		parts = append(parts, "\nNotes:")
		for _, w := range payload.Warnings {
			parts = append(parts, "- "+w)
		}
	}

	if strict {
		parts = append(parts, "\n"+strictAnswerInstruction)
	}
	parts = append(parts, "\nAnswer:")

	return strings.Join(system, "\n"), strings.Join(parts, "\n")
}

func renderData(p *models.DataPayload) string {
	var v interface{} = p.Rows
	if p.Snapshot != nil && len(p.Rows) == 0 {
		v = p.Snapshot
	}
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	if len(p.SummaryStats) > 0 {
		stats, _ := json.Marshal(p.SummaryStats)
		return string(body) + "\nSummary: " + string(stats)
	}
	return string(body)
}
