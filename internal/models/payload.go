// internal/models/payload.go
package models

// Row is one generic tabular record from a fetcher.
type Row map[string]interface{}

// DataPayload is produced by one fetcher and discarded after the request.
type DataPayload struct {
	Source          Source             `json:"source"`
	TemplateID      TemplateID         `json:"templateId,omitempty"`
	Resource        LiveResource       `json:"resource,omitempty"`
	Rows            []Row              `json:"rows"`
	Snapshot        *Snapshot          `json:"snapshot,omitempty"`
	SummaryStats    map[string]float64 `json:"summaryStats,omitempty"`
	TokenEstimate   int                `json:"tokenEstimate"`
	SourceLatencyMs int64              `json:"sourceLatencyMs"`
	Truncated       bool               `json:"truncated,omitempty"`
	Cached          bool               `json:"cached,omitempty"`
}

// RowCount counts rows, or snapshot records for a snapshot payload.
func (p *DataPayload) RowCount() int {
	if p == nil {
		return 0
	}
	if len(p.Rows) > 0 || p.Snapshot == nil {
		return len(p.Rows)
	}
	n := len(p.Snapshot.EntityRecords) + len(p.Snapshot.TopPerformers) + len(p.Snapshot.TimeSeries)
	for _, rows := range p.Snapshot.Breakdowns {
		n += len(rows)
	}
	return n
}
