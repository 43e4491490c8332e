// internal/api/schema.go
package api

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const answerRequestSchemaJSON = `{
  "type": "object",
  "required": ["query"],
  "additionalProperties": false,
  "properties": {
    "query":        {"type": "string", "minLength": 1, "maxLength": 4000},
    "callerId":     {"type": "string"},
    "entityIds":    {"type": "array", "items": {"type": "string", "minLength": 1}, "maxItems": 1000},
    "rankedModels": {"type": "array", "items": {"type": "string", "minLength": 1}, "maxItems": 10},
    "snapshot": {
      "type": ["object", "null"],
      "properties": {
        "version":       {"type": "integer"},
        "granularity":   {"enum": ["daily", "weekly", "monthly", ""]},
        "entityRecords": {"type": "array"},
        "totals":        {"type": ["object", "null"]},
        "timeSeries":    {"type": "array"},
        "topPerformers": {"type": "array"},
        "breakdowns":    {"type": "object"}
      }
    }
  }
}`

var answerRequestSchema = mustSchema(answerRequestSchemaJSON)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("api: invalid request schema: %v", err))
	}
	return schema
}

// validateAnswerRequest returns one message per schema violation.
func validateAnswerRequest(body []byte) ([]string, error) {
	result, err := answerRequestSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return violations, nil
}
