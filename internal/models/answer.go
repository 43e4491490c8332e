// internal/models/answer.go
package models

// Usage counts tokens for one model call.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{InputTokens: u.InputTokens + o.InputTokens, OutputTokens: u.OutputTokens + o.OutputTokens}
}

// AttemptOutcome classifies one model attempt.
type AttemptOutcome string

const (
	OutcomeSuccess       AttemptOutcome = "success"
	OutcomeTimeout       AttemptOutcome = "timeout"
	OutcomeMalformed     AttemptOutcome = "malformed"
	OutcomeProviderError AttemptOutcome = "provider_error"
	OutcomeCancelled     AttemptOutcome = "cancelled"
)

// ModelAttempt is one entry of the fallback chain.
type ModelAttempt struct {
	ModelID    string         `json:"modelId"`
	Succeeded  bool           `json:"succeeded"`
	Outcome    AttemptOutcome `json:"outcome"`
	Usage      Usage          `json:"usage"`
	LatencyMs  int64          `json:"latencyMs"`
	CostUSD    float64        `json:"costUsd"`
	Reprompted bool           `json:"reprompted,omitempty"`
	ErrorCode  string         `json:"errorCode,omitempty"`
}

// AnswerRequest is what a caller submits.
type AnswerRequest struct {
	Query        string    `json:"query"`
	Snapshot     *Snapshot `json:"snapshot,omitempty"`
	EntityIDs    []string  `json:"entityIds,omitempty"`
	CallerID     string    `json:"callerId,omitempty"`
	RankedModels []string  `json:"rankedModels,omitempty"`
}

// FetchMetadata describes the data the answer was built from.
type FetchMetadata struct {
	Source          Source     `json:"source"`
	RowCount        int        `json:"rowCount"`
	ExecutionTimeMs int64      `json:"executionTimeMs"`
	TemplateID      TemplateID `json:"templateId,omitempty"`
	TokenEstimate   int        `json:"tokenEstimate"`
	Truncated       bool       `json:"truncated,omitempty"`
	Cached          bool       `json:"cached,omitempty"`
	FallbackUsed    bool       `json:"fallbackUsed,omitempty"`
}

// AnswerResult is the complete contract returned to callers.
type AnswerResult struct {
	RequestID     string          `json:"requestId"`
	Answer        string          `json:"answer"`
	Routing       RoutingDecision `json:"routing"`
	Mode          ModeKind        `json:"mode"`
	FetchMetadata FetchMetadata   `json:"fetchMetadata"`
	ModelAttempts []ModelAttempt  `json:"modelAttempts"`
	Degraded      bool            `json:"degraded"`
	Warnings      []string        `json:"warnings,omitempty"`
	TotalCostUSD  float64         `json:"totalCostUsd"`
}
