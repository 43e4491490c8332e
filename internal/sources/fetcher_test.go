package sources

import (
	"context"
	"testing"

	apperrors "analytics-assistant/internal/common/errors"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Dispatch(t *testing.T) {
	var got models.FetchPlan
	r := NewRegistry(logger.NewTestLogger(t)).
		Register(models.SourceHistorical, FetcherFunc(func(ctx context.Context, plan models.FetchPlan) (*models.DataPayload, error) {
			got = plan
			return &models.DataPayload{Source: plan.Source, Rows: []models.Row{{"a": 1}}}, nil
		}))

	payload, err := r.Fetch(context.Background(), models.FetchPlan{Source: models.SourceHistorical, Limit: 5})

	require.NoError(t, err)
	assert.Equal(t, 1, payload.RowCount())
	assert.Equal(t, 5, got.Limit)
	assert.True(t, r.Has(models.SourceHistorical))
	assert.False(t, r.Has(models.SourceLive))
}

func TestRegistry_UnknownSource(t *testing.T) {
	_, err := NewRegistry(logger.NewNoOpLogger()).Fetch(context.Background(), models.FetchPlan{Source: models.SourceLive})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestRegistry_PassesErrorsThrough(t *testing.T) {
	r := NewRegistry(logger.NewTestLogger(t)).
		Register(models.SourceLive, FetcherFunc(func(context.Context, models.FetchPlan) (*models.DataPayload, error) {
			return nil, apperrors.NewBackendUnavailableError("live", nil)
		}))

	_, err := r.Fetch(context.Background(), models.FetchPlan{Source: models.SourceLive})
	assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
}

func TestSummarize(t *testing.T) {
	rows := []models.Row{
		{"revenue": 10.5, "orders": int64(2)},
		{"revenue": 4.5, "orders": 3, "name": "x"},
		{"revenue": "n/a"},
	}

	stats := Summarize(rows, "revenue", "orders", "missing")

	assert.Equal(t, 3.0, stats["rowCount"])
	assert.Equal(t, 15.0, stats["revenue"])
	assert.Equal(t, 5.0, stats["orders"])
	_, ok := stats["missing"]
	assert.False(t, ok)
}
