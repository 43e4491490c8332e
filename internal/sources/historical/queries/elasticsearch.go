// internal/sources/historical/queries/elasticsearch.go
package queries

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"analytics-assistant/internal/models"
)

// engagementEvents are the event types counted per entity.
var engagementEvents = []string{"delivered", "opened", "clicked", "unsubscribed", "bounced"}

func buildEngagementQuery(p Params) map[string]interface{} {
	return map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"terms": map[string]interface{}{"entity_id": p.EntityIDs}},
					map[string]interface{}{"range": map[string]interface{}{
						"timestamp": map[string]interface{}{
							"gte": p.Start.UTC().Format(time.RFC3339),
							"lt":  p.End.UTC().Format(time.RFC3339),
						},
					}},
				},
			},
		},
		"aggs": map[string]interface{}{
			"by_entity": map[string]interface{}{
				"terms": map[string]interface{}{"field": "entity_id", "size": p.Limit},
				"aggs": map[string]interface{}{
					"by_type": map[string]interface{}{
						"terms": map[string]interface{}{"field": "event_type", "size": len(engagementEvents) * 2},
					},
				},
			},
		},
	}
}

type bucket struct {
	Key      string `json:"key"`
	DocCount int64  `json:"doc_count"`
	ByType   struct {
		Buckets []bucket `json:"buckets"`
	} `json:"by_type"`
}

type engagementResponse struct {
	Aggregations struct {
		ByEntity struct {
			Buckets []bucket `json:"buckets"`
		} `json:"by_entity"`
	} `json:"aggregations"`
}

// RelationshipEngagement counts engagement events per entity from the
// engagement index.
func RelationshipEngagement(ctx context.Context, b *Backends, p Params) ([]models.Row, error) {
	if b == nil || b.ES == nil {
		return nil, fmt.Errorf("%w: elasticsearch", ErrBackendMissing)
	}

	body, err := json.Marshal(buildEngagementQuery(p))
	if err != nil {
		return nil, err
	}

	res, err := b.ES.Search(
		b.ES.Search.WithContext(ctx),
		b.ES.Search.WithIndex(b.EngageIndex),
		b.ES.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("engagement search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("engagement search failed: %s", res.Status())
	}

	var r engagementResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode engagement response: %w", err)
	}

	out := make([]models.Row, 0, len(r.Aggregations.ByEntity.Buckets))
	for _, eb := range r.Aggregations.ByEntity.Buckets {
		row := models.Row{"entity_id": eb.Key, "events": eb.DocCount}
		for _, ev := range engagementEvents {
			row[ev] = int64(0)
		}
		for _, tb := range eb.ByType.Buckets {
			if _, known := row[tb.Key]; known && tb.Key != "entity_id" && tb.Key != "events" {
				row[tb.Key] = tb.DocCount
			}
		}
		if delivered, _ := row["delivered"].(int64); delivered > 0 {
			row["open_rate"] = round4(float64(row["opened"].(int64)) / float64(delivered))
			row["click_rate"] = round4(float64(row["clicked"].(int64)) / float64(delivered))
		}
		out = append(out, row)
	}
	return out, nil
}
