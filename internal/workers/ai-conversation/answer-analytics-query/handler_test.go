package answeranalyticsquery

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	apperrors "analytics-assistant/internal/common/errors"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnswerer struct {
	result *models.AnswerResult
	err    error
	got    models.AnswerRequest
}

func (s *stubAnswerer) Answer(ctx context.Context, req models.AnswerRequest) (*models.AnswerResult, error) {
	s.got = req
	return s.result, s.err
}

func createTestHandler(t *testing.T, a Answerer) *Handler {
	return NewHandler(LoadConfig(), a, logger.NewTestLogger(t))
}

func TestHandler_Execute_Success(t *testing.T) {
	a := &stubAnswerer{result: &models.AnswerResult{
		RequestID: "req-1",
		Answer:    "Revenue grew 12% week over week.",
		Routing:   models.NewRoutingDecision(models.SourceHistorical, models.ConfidenceMedium, models.MethodFallback, "largeListRequest", models.SourcePtr(models.SourceSnapshot)),
		FetchMetadata: models.FetchMetadata{
			Source:          models.SourceHistorical,
			RowCount:        50,
			ExecutionTimeMs: 120,
		},
		ModelAttempts: []models.ModelAttempt{{ModelID: "primary", Succeeded: true, Outcome: models.OutcomeSuccess}},
		TotalCostUSD:  0.0042,
	}}
	h := createTestHandler(t, a)

	output, err := h.Execute(context.Background(), &Input{
		Query:        "Show me top 50 entities by revenue last month",
		EntityIDs:    []string{"e1", "e2"},
		CallerID:     "user-1",
		RankedModels: []string{"primary"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Revenue grew 12% week over week.", output.Answer)
	assert.Equal(t, 50, output.FetchMetadata.RowCount)
	assert.Len(t, output.ModelAttempts, 1)
	assert.NotNil(t, output.Warnings)
	assert.Equal(t, "user-1", a.got.CallerID)
	assert.Equal(t, []string{"primary"}, a.got.RankedModels)
}

func TestHandler_Execute_PropagatesTypedErrors(t *testing.T) {
	h := createTestHandler(t, &stubAnswerer{err: apperrors.NewAllModelsExhaustedError(3)})

	_, err := h.Execute(context.Background(), &Input{Query: "top entities"})
	assert.True(t, stderrors.Is(err, apperrors.ErrAllModelsExhausted))

	throw, retries := apperrors.NewErrorHandler(nil).Decide(err, 3)
	assert.False(t, throw, "exhaustion is retried by the engine")
	assert.Positive(t, retries)
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantErr   bool
	}{
		{name: "valid", variables: `{"query":"top entities","entityIds":["e1"],"snapshot":{"version":1}}`},
		{name: "missing query", variables: `{"entityIds":["e1"]}`, wantErr: true},
		{name: "not json", variables: `query`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := parseInput(tt.variables)
			if tt.wantErr {
				assert.True(t, stderrors.Is(err, apperrors.ErrInvalidRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "top entities", input.Query)
			require.NotNil(t, input.Snapshot)
			assert.Equal(t, 1, input.Snapshot.Version)
		})
	}
}

func TestOutput_JSONShape(t *testing.T) {
	out := outputFrom(&models.AnswerResult{
		Answer:  "ok",
		Routing: models.NewRoutingDecision(models.SourceSnapshot, models.ConfidenceHigh, models.MethodHeuristic, "top list", nil),
	})

	raw, err := json.Marshal(out)
	require.NoError(t, err)

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &vars))
	for _, key := range []string{"answer", "routing", "fetchMetadata", "modelAttempts", "degraded", "warnings", "totalCostUsd"} {
		assert.Contains(t, vars, key)
	}
	routing := vars["routing"].(map[string]interface{})
	assert.Nil(t, routing["fallbackSource"])
}
