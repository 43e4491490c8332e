package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoutingDecision_DropsFallbackEqualToSource(t *testing.T) {
	d := NewRoutingDecision(SourceHistorical, ConfidenceMedium, MethodModel, "volume", SourcePtr(SourceHistorical))
	assert.Nil(t, d.FallbackSource)
	require.NoError(t, d.Validate())

	d = NewRoutingDecision(SourceHistorical, ConfidenceMedium, MethodModel, "volume", SourcePtr(SourceSnapshot))
	require.NotNil(t, d.FallbackSource)
	assert.Equal(t, SourceSnapshot, *d.FallbackSource)

	d = NewRoutingDecision(SourceLive, ConfidenceHigh, MethodHeuristic, "count", SourcePtr(Source("archive")))
	assert.Nil(t, d.FallbackSource)
}

func TestRoutingDecision_Validate(t *testing.T) {
	bad := RoutingDecision{Source: SourceLive, FallbackSource: SourcePtr(SourceLive)}
	assert.Error(t, bad.Validate())
	assert.Error(t, RoutingDecision{Source: "warehouse"}.Validate())
}

func TestSnapshot_Validate(t *testing.T) {
	s := &Snapshot{Version: 1, TopPerformers: make([]RankedEntity, 11)}
	assert.Error(t, s.Validate(10, 30))

	s = &Snapshot{Version: 1, TimeSeries: make([]TimeSeriesPoint, 31)}
	assert.Error(t, s.Validate(10, 30))

	s = &Snapshot{Version: 2}
	assert.Error(t, s.Validate(10, 30))

	s = &Snapshot{Version: 1, TopPerformers: make([]RankedEntity, 10)}
	assert.NoError(t, s.Validate(10, 30))

	var nilSnap *Snapshot
	assert.NoError(t, nilSnap.Validate(10, 30))
	assert.False(t, nilSnap.HasBreakdown("product"))
}

func TestDataPayload_RowCount(t *testing.T) {
	p := &DataPayload{Snapshot: &Snapshot{
		TopPerformers: make([]RankedEntity, 3),
		TimeSeries:    make([]TimeSeriesPoint, 2),
		Breakdowns:    map[string][]BreakdownRow{"channel": make([]BreakdownRow, 4)},
	}}
	assert.Equal(t, 9, p.RowCount())

	p = &DataPayload{Rows: []Row{{"a": 1}, {"a": 2}}}
	assert.Equal(t, 2, p.RowCount())

	var nilPayload *DataPayload
	assert.Equal(t, 0, nilPayload.RowCount())
}

func TestDatasetSet_Sorted(t *testing.T) {
	set := map[Dataset]struct{}{DatasetRevenue: {}, DatasetAutomations: {}, DatasetPerformance: {}}
	assert.Equal(t, []Dataset{DatasetAutomations, DatasetPerformance, DatasetRevenue}, DatasetSet(set))
}
