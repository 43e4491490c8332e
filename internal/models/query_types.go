// internal/models/query_types.go
package models

// TemplateID names one of the fixed historical aggregation templates.
type TemplateID string

const (
	TemplateEntityPerformance      TemplateID = "entity_performance"
	TemplateTimeSeriesFinancial    TemplateID = "time_series_financial"
	TemplateRelationshipEngagement TemplateID = "relationship_engagement"
)

// LiveResource names one of the typed live API requests.
type LiveResource string

const (
	LiveMembership       LiveResource = "membership"
	LiveAutomationStatus LiveResource = "automation_status"
	LiveScheduledSends   LiveResource = "scheduled_sends"
)

// FetchPlan is consumed exactly once by a fetcher.
type FetchPlan struct {
	Source     Source       `json:"source"`
	TemplateID TemplateID   `json:"templateId,omitempty"`
	Resource   LiveResource `json:"resource,omitempty"`
	EntityIDs  []string     `json:"entityIds"`
	TimeRange  TimeRange    `json:"timeRange"`
	Limit      int          `json:"limit"`
}
