// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// LoadRegistry reads and parses the registry file at path.
func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &reg, nil
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Validate checks the registry itself: unique ids and task types, parseable
// timeouts and compilable schemas. It returns every problem found.
func (r *ActivityRegistry) Validate() []string {
	var problems []string
	ids := map[string]bool{}
	taskTypes := map[string]bool{}

	for _, a := range r.Activities {
		if a.ID == "" || a.TaskType == "" {
			problems = append(problems, fmt.Sprintf("activity %q: id and taskType are required", a.DisplayName))
			continue
		}
		if ids[a.ID] {
			problems = append(problems, fmt.Sprintf("activity %q: duplicate id", a.ID))
		}
		if taskTypes[a.TaskType] {
			problems = append(problems, fmt.Sprintf("activity %q: duplicate taskType %q", a.ID, a.TaskType))
		}
		ids[a.ID] = true
		taskTypes[a.TaskType] = true

		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				problems = append(problems, fmt.Sprintf("activity %q: timeout %q: %v", a.ID, a.Timeout, err))
			}
		}
		if a.Retries < 0 {
			problems = append(problems, fmt.Sprintf("activity %q: retries must not be negative", a.ID))
		}
		for name, schema := range map[string]map[string]interface{}{"inputSchema": a.InputSchema, "outputSchema": a.OutputSchema} {
			if schema == nil {
				continue
			}
			if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema)); err != nil {
				problems = append(problems, fmt.Sprintf("activity %q: %s: %v", a.ID, name, err))
			}
		}
	}
	return problems
}

// ValidateVariables checks job variables against the activity's input schema.
func (a *Activity) ValidateVariables(variables []byte) ([]string, error) {
	if a.InputSchema == nil {
		return nil, nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema))
	if err != nil {
		return nil, fmt.Errorf("activity %q: %w", a.ID, err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(variables))
	if err != nil {
		return nil, err
	}
	var violations []string
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return violations, nil
}
