// internal/sources/live/normalize.go
package live

import (
	"encoding/json"
	"strconv"
	"strings"

	"analytics-assistant/internal/models"
)

// document is the JSON:API envelope of every live endpoint.
type document struct {
	Data  []resource `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

type resource struct {
	ID         string                     `json:"id"`
	Type       string                     `json:"type"`
	Attributes map[string]json.RawMessage `json:"attributes"`
}

// normalize reduces a resource to its fixed result shape. Attribute names
// differ between API versions, so each field lists its known aliases.
func normalize(kind models.LiveResource, r resource) models.Row {
	row := models.Row{
		"id":   r.ID,
		"name": r.str("name", "title"),
	}
	switch kind {
	case models.LiveMembership:
		row["profileCount"] = r.int("profile_count", "profileCount", "member_count", "memberCount")
	case models.LiveAutomationStatus:
		row["status"] = strings.ToLower(r.str("status", "state"))
		row["triggerType"] = r.str("trigger_type", "triggerType", "trigger")
	case models.LiveScheduledSends:
		row["status"] = strings.ToLower(r.str("status", "state"))
		row["scheduledAt"] = r.str("scheduled_at", "scheduledAt", "send_time", "sendTime")
		row["channel"] = strings.ToLower(r.str("channel", "send_channel", "sendChannel"))
	}
	return row
}

func (r resource) raw(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := r.Attributes[k]; ok && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

func (r resource) str(keys ...string) string {
	v, ok := r.raw(keys...)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return strings.Trim(string(v), `"`)
}

func (r resource) int(keys ...string) int64 {
	v, ok := r.raw(keys...)
	if !ok {
		return 0
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return int64(f)
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
