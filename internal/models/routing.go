// internal/models/routing.go
package models

import "fmt"

// Source is one of the three data sources.
type Source string

const (
	SourceSnapshot   Source = "snapshot"
	SourceHistorical Source = "historical"
	SourceLive       Source = "live"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceSnapshot, SourceHistorical, SourceLive:
		return true
	}
	return false
}

// Confidence is low, medium or high.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// DecisionMethod records how a routing decision was reached.
type DecisionMethod string

const (
	MethodHeuristic DecisionMethod = "heuristic"
	MethodModel     DecisionMethod = "model"
	MethodFallback  DecisionMethod = "fallback"
)

// RoutingDecision is created once per query and never mutated.
type RoutingDecision struct {
	Source         Source         `json:"source"`
	Confidence     Confidence     `json:"confidence"`
	Reason         string         `json:"reason"`
	Method         DecisionMethod `json:"method"`
	FallbackSource *Source        `json:"fallbackSource"`
	Usage          *Usage         `json:"usage,omitempty"`
	CostUSD        float64        `json:"costUsd,omitempty"`
}

// NewRoutingDecision drops a fallback equal to the primary source.
func NewRoutingDecision(source Source, confidence Confidence, method DecisionMethod, reason string, fallback *Source) RoutingDecision {
	d := RoutingDecision{
		Source:     source,
		Confidence: confidence,
		Reason:     reason,
		Method:     method,
	}
	if fallback != nil && *fallback != source && fallback.Valid() {
		fb := *fallback
		d.FallbackSource = &fb
	}
	return d
}

// Validate checks the enums and that the fallback differs from the source.
func (d RoutingDecision) Validate() error {
	if !d.Source.Valid() {
		return fmt.Errorf("invalid source %q", d.Source)
	}
	if d.FallbackSource != nil && *d.FallbackSource == d.Source {
		return fmt.Errorf("fallbackSource must differ from source %q", d.Source)
	}
	return nil
}

// SourcePtr returns a pointer to s.
func SourcePtr(s Source) *Source {
	return &s
}
