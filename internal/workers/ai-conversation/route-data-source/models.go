// internal/workers/ai-conversation/route-data-source/models.go
package routedatasource

import "analytics-assistant/internal/models"

// Input is the job variables.
type Input struct {
	Query     string           `json:"query"`
	Snapshot  *models.Snapshot `json:"snapshot"`
	EntityIDs []string         `json:"entityIds"`
	CallerID  string           `json:"callerId"`
}

// Output lets a process branch on the source before any data is fetched.
type Output struct {
	Query   string                 `json:"sanitizedQuery"`
	Routing models.RoutingDecision `json:"routing"`
	Mode    models.Mode            `json:"mode"`
	Plans   []models.FetchPlan     `json:"plans"`
}
