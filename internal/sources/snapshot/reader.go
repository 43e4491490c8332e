// internal/sources/snapshot/reader.go
package snapshot

import (
	"context"
	"time"

	"analytics-assistant/internal/budget"
	"analytics-assistant/internal/models"
)

// Reader serves the snapshot the caller already holds. It has no backend.
type Reader struct {
	estimator *budget.Estimator
	snapshot  *models.Snapshot
}

// NewReader creates a snapshot reader.
func NewReader(est *budget.Estimator) *Reader {
	if est == nil {
		est = budget.NewEstimator(budget.DefaultDivisor)
	}
	return &Reader{estimator: est}
}

// Read never fails. A nil snapshot yields an empty payload.
func Read(s *models.Snapshot) models.DataPayload {
	return *NewReader(nil).Read(s)
}

// Read turns the snapshot into a payload without any I/O. A nil snapshot gives an empty payload.
func (r *Reader) Read(s *models.Snapshot) *models.DataPayload {
	start := time.Now()
	p := &models.DataPayload{
		Source:       models.SourceSnapshot,
		Rows:         []models.Row{},
		Snapshot:     s,
		SummaryStats: summarize(s),
	}
	r.estimator.Stamp(p)
	p.SourceLatencyMs = time.Since(start).Milliseconds()
	return p
}

// Bind returns a Fetcher for one request's snapshot.
func (r *Reader) Bind(s *models.Snapshot) *Reader {
	return &Reader{estimator: r.estimator, snapshot: s}
}

// Fetch lets a bound reader stand in for a backend fetcher.
func (r *Reader) Fetch(ctx context.Context, plan models.FetchPlan) (*models.DataPayload, error) {
	return r.Read(r.snapshot), nil
}

func summarize(s *models.Snapshot) map[string]float64 {
	stats := map[string]float64{}
	if s == nil {
		return stats
	}
	stats["entityRecords"] = float64(len(s.EntityRecords))
	stats["topPerformers"] = float64(len(s.TopPerformers))
	stats["timeSeriesPoints"] = float64(len(s.TimeSeries))
	if s.Totals != nil {
		stats["revenue"] = s.Totals.Revenue
		stats["orders"] = float64(s.Totals.Orders)
		stats["averageOrderValue"] = s.Totals.AverageOrderValue
	}
	return stats
}
