package routedatasource

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	apperrors "analytics-assistant/internal/common/errors"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/llm"
	"analytics-assistant/internal/models"
	"analytics-assistant/internal/planning"
	"analytics-assistant/internal/routing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestHandler(t *testing.T, resolver planning.AccessResolver) *Handler {
	log := logger.NewTestLogger(t)
	router := routing.NewRouter(&routing.Config{SnapshotTopN: 10}, nil, llm.Pricing{}, log)
	planner := planning.NewPlanner(planning.PlannerConfig{}, resolver, log)
	return NewHandler(LoadConfig(), router, planning.DefaultModeDetector(), planner, log)
}

func topTen() *models.Snapshot {
	s := &models.Snapshot{Version: 1, Totals: &models.Totals{Revenue: 1000, Orders: 10}}
	for i := 1; i <= 10; i++ {
		s.TopPerformers = append(s.TopPerformers, models.RankedEntity{
			Rank: i, EntityID: fmt.Sprintf("e%d", i), Metric: "revenue", Value: float64(100 - i),
		})
	}
	return s
}

func TestHandler_Execute(t *testing.T) {
	h := createTestHandler(t, planning.StaticResolver{"e1", "e2", "e3"})

	tests := []struct {
		name           string
		input          Input
		validateOutput func(t *testing.T, out *Output)
	}{
		{
			name:  "snapshot answers the top ten",
			input: Input{Query: "What are my top 10 entities by revenue?", Snapshot: topTen()},
			validateOutput: func(t *testing.T, out *Output) {
				assert.Equal(t, models.SourceSnapshot, out.Routing.Source)
				assert.Equal(t, models.ConfidenceHigh, out.Routing.Confidence)
				assert.Empty(t, out.Plans)
				assert.NotNil(t, out.Plans)
			},
		},
		{
			name:  "top fifty needs the historical store",
			input: Input{Query: "Show me top 50 entities by revenue last month", Snapshot: topTen(), CallerID: "user-1"},
			validateOutput: func(t *testing.T, out *Output) {
				assert.Equal(t, models.SourceHistorical, out.Routing.Source)
				require.Len(t, out.Plans, 1)
				assert.Equal(t, models.TemplateEntityPerformance, out.Plans[0].TemplateID)
				assert.Equal(t, 50, out.Plans[0].Limit)
				assert.Equal(t, []string{"e1", "e2", "e3"}, out.Plans[0].EntityIDs)
				assert.Equal(t, models.ModePortfolio, out.Mode.Kind)
			},
		},
		{
			name:  "membership count goes live",
			input: Input{Query: "How many members are in my VIP group right now?", EntityIDs: []string{"acct-1"}},
			validateOutput: func(t *testing.T, out *Output) {
				assert.Equal(t, models.SourceLive, out.Routing.Source)
				assert.Equal(t, models.ModeSingleEntity, out.Mode.Kind)
				require.Len(t, out.Plans, 1)
				assert.Equal(t, models.LiveMembership, out.Plans[0].Resource)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.Execute(context.Background(), &tt.input)
			require.NoError(t, err)
			tt.validateOutput(t, out)
		})
	}
}

func TestHandler_Execute_Errors(t *testing.T) {
	h := createTestHandler(t, planning.StaticResolver{})

	_, err := h.Execute(context.Background(), &Input{Query: "Show me top 50 entities by revenue last month", Snapshot: topTen()})
	assert.True(t, stderrors.Is(err, apperrors.ErrNoAccessibleEntities))

	_, err = h.Execute(context.Background(), &Input{Query: "  "})
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidRequest))

	throw, _ := apperrors.NewErrorHandler(nil).Decide(apperrors.NewNoAccessibleEntitiesError("historical"), 3)
	assert.True(t, throw, "missing access is a BPMN error, not a retry")
}
