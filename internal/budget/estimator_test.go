package budget

import (
	"fmt"
	"testing"

	"analytics-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name    string
		divisor int
		input   interface{}
		want    int
	}{
		{name: "nil", divisor: 4, input: nil, want: 0},
		{name: "exact multiple", divisor: 4, input: "abcdef", want: 2}, // "abcdef" is 8 bytes
		{name: "rounds up", divisor: 4, input: "abcdefg", want: 3},     // 9 bytes
		{name: "divisor one", divisor: 1, input: []int{1, 2}, want: 5}, // [1,2]
		{name: "invalid divisor uses default", divisor: 0, input: "abcdef", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewEstimator(tt.divisor).Estimate(tt.input))
		})
	}
}

func TestFits(t *testing.T) {
	e := NewEstimator(4)
	assert.True(t, e.Fits("abcdef", 2))
	assert.False(t, e.Fits("abcdefg", 2))
}

func rows(n int) []models.Row {
	out := make([]models.Row, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Row{"entity_id": fmt.Sprintf("e%03d", i), "revenue": float64(i * 100)})
	}
	return out
}

func TestTrim_Rows(t *testing.T) {
	e := NewEstimator(4)
	p := &models.DataPayload{Source: models.SourceHistorical, Rows: rows(200)}

	cut := e.Trim(p, 500)

	require.True(t, cut)
	assert.True(t, p.Truncated)
	assert.LessOrEqual(t, p.TokenEstimate, 500)
	assert.NotEmpty(t, p.Rows)
	assert.Equal(t, "e000", p.Rows[0]["entity_id"])
	assert.Greater(t, e.Estimate(rows(len(p.Rows)+1)), 500, "trim keeps as many rows as fit")
}

func TestTrim_AlreadyFits(t *testing.T) {
	e := NewEstimator(4)
	p := &models.DataPayload{Rows: rows(3)}

	assert.False(t, e.Trim(p, 10000))
	assert.False(t, p.Truncated)
	assert.Len(t, p.Rows, 3)
	assert.Equal(t, e.Estimate(p.Rows), p.TokenEstimate)
}

func TestTrim_SnapshotLeavesInputUntouched(t *testing.T) {
	e := NewEstimator(4)
	s := &models.Snapshot{Version: 1, Breakdowns: map[string][]models.BreakdownRow{}}
	for i := 0; i < 100; i++ {
		s.TimeSeries = append(s.TimeSeries, models.TimeSeriesPoint{Date: fmt.Sprintf("d%03d", i), Revenue: 10})
		s.TopPerformers = append(s.TopPerformers, models.RankedEntity{Rank: i + 1, EntityID: fmt.Sprintf("e%d", i)})
	}
	s.Breakdowns["product"] = []models.BreakdownRow{{Key: "a"}, {Key: "b"}}
	p := &models.DataPayload{Source: models.SourceSnapshot, Snapshot: s}

	require.True(t, e.Trim(p, 800))

	assert.LessOrEqual(t, p.TokenEstimate, 800)
	assert.Len(t, s.TimeSeries, 100)
	assert.Len(t, s.TopPerformers, 100)
	require.NotEmpty(t, p.Snapshot.TimeSeries)
	assert.Equal(t, "d099", p.Snapshot.TimeSeries[len(p.Snapshot.TimeSeries)-1].Date)
	assert.Equal(t, 1, p.Snapshot.TopPerformers[0].Rank)
}

func TestStamp_NilSafe(t *testing.T) {
	NewEstimator(4).Stamp(nil)
	assert.False(t, NewEstimator(4).Trim(nil, 1))
}
