// internal/routing/router.go
package routing

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "analytics-assistant/internal/common/errors"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/common/metrics"
	"analytics-assistant/internal/common/observability"
	"analytics-assistant/internal/llm"
	"analytics-assistant/internal/models"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
)

// Config tunes the escalation call and the sufficiency analyzer.
type Config struct {
	Model        string
	Timeout      time.Duration
	MaxTokens    int
	Temperature  float64
	SnapshotTopN int
}

// RouteContext carries request facts shown to the escalation model.
type RouteContext struct {
	SelectedEntityCount int
}

const decisionSchemaJSON = `{
  "type": "object",
  "required": ["source", "confidence", "reason", "fallback"],
  "properties": {
    "source":     {"enum": ["snapshot", "historical", "live"]},
    "confidence": {"enum": ["low", "medium", "high"]},
    "reason":     {"type": "string", "minLength": 1},
    "fallback":   {"enum": ["snapshot", "historical", "live", null]}
  }
}`

var decisionSchema = mustSchema(decisionSchemaJSON)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("routing: invalid decision schema: %v", err))
	}
	return schema
}

type modelDecision struct {
	Source     models.Source     `json:"source"`
	Confidence models.Confidence `json:"confidence"`
	Reason     string            `json:"reason"`
	Fallback   *models.Source    `json:"fallback"`
}

// Router runs the heuristics and escalates to a cheap model only when they
// cannot decide.
type Router struct {
	config   *Config
	analyzer *SufficiencyAnalyzer
	provider llm.Provider
	pricing  llm.Pricing
	logger   logger.Logger
}

// NewRouter creates a router. A nil provider disables model escalation.
func NewRouter(config *Config, provider llm.Provider, pricing llm.Pricing, log logger.Logger) *Router {
	return &Router{
		config:   config,
		analyzer: NewSufficiencyAnalyzer(config.SnapshotTopN),
		provider: provider,
		pricing:  pricing,
		logger:   logger.Component(log, "router"),
	}
}

// Route always yields exactly one decision. It fails only when ctx is done.
func (r *Router) Route(ctx context.Context, query string, snapshot *models.Snapshot, rc RouteContext) (models.RoutingDecision, error) {
	ctx, span := observability.StartSpan(ctx, "route")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return models.RoutingDecision{}, err
	}

	decision, err := r.decide(ctx, query, snapshot, rc)
	if err != nil {
		return models.RoutingDecision{}, err
	}

	span.SetAttributes(
		attribute.String("source", string(decision.Source)),
		attribute.String("method", string(decision.Method)),
	)
	metrics.RoutingDecisions.WithLabelValues(string(decision.Source), string(decision.Method)).Inc()
	r.logger.Info("routing decided", map[string]interface{}{
		"source":     string(decision.Source),
		"confidence": string(decision.Confidence),
		"method":     string(decision.Method),
	})
	return decision, nil
}

func (r *Router) decide(ctx context.Context, query string, snapshot *models.Snapshot, rc RouteContext) (models.RoutingDecision, error) {
	live := DetectLiveData(query)
	if live.Required && live.Confidence == models.ConfidenceHigh {
		return models.NewRoutingDecision(models.SourceLive, models.ConfidenceHigh, models.MethodHeuristic,
			"live indicators: "+joinFamilies(live.Indicators), models.SourcePtr(models.SourceHistorical)), nil
	}

	sufficiency := r.analyzer.Analyze(query, snapshot)
	if sufficiency.Sufficient {
		return models.NewRoutingDecision(models.SourceSnapshot, models.ConfidenceHigh, models.MethodHeuristic,
			"snapshot holds "+joinPresence(sufficiency.PresentSignals), nil), nil
	}

	decision, err := r.escalate(ctx, query, snapshot, rc, sufficiency, live)
	if err == nil {
		return decision, nil
	}
	if ctx.Err() != nil {
		return models.RoutingDecision{}, ctx.Err()
	}

	ambiguous := apperrors.NewRoutingAmbiguousError(err.Error())
	r.logger.Warn("routing escalation failed, using fallback rule", map[string]interface{}{
		"errorCode": string(ambiguous.Code),
		"cause":     string(apperrors.CodeOf(err)),
	})

	fallback := fallbackDecision(sufficiency)
	fallback.Usage = decision.Usage
	fallback.CostUSD = decision.CostUSD
	return fallback, nil
}

// fallbackDecision is the deterministic rule used when the model cannot help.
func fallbackDecision(s SufficiencyResult) models.RoutingDecision {
	if s.VolumeOrFilterShortfall() {
		return models.NewRoutingDecision(models.SourceHistorical, models.ConfidenceMedium, models.MethodFallback,
			"snapshot insufficient: "+strings.Join(s.InsufficiencySignals, ", "), models.SourcePtr(models.SourceSnapshot))
	}
	return models.NewRoutingDecision(models.SourceSnapshot, models.ConfidenceMedium, models.MethodFallback,
		"no volume or filter demand: "+strings.Join(s.InsufficiencySignals, ", "), nil)
}

func (r *Router) escalate(ctx context.Context, query string, snapshot *models.Snapshot, rc RouteContext, s SufficiencyResult, live LiveDataResult) (models.RoutingDecision, error) {
	if r.provider == nil || r.config.Model == "" {
		return models.RoutingDecision{}, stderrors.New("no routing model configured")
	}

	callCtx := ctx
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	resp, err := r.provider.Complete(callCtx, llm.CompletionRequest{
		Model:        r.config.Model,
		SystemPrompt: buildRoutingPrompt(snapshot, rc, s, live),
		UserPrompt:   fmt.Sprintf("Route this user query to the best data source:\n\n%q\n\nReturn only JSON.", query),
		MaxTokens:    r.config.MaxTokens,
		Temperature:  r.config.Temperature,
	})
	if err != nil {
		return models.RoutingDecision{}, err
	}

	usage := resp.Usage
	cost := r.pricing.Cost(r.config.Model, usage)
	annotated := models.RoutingDecision{Usage: &usage, CostUSD: cost}

	parsed, err := parseModelDecision(resp.Text)
	if err != nil {
		return annotated, apperrors.NewMalformedModelOutputError(r.config.Model, err.Error())
	}

	fallback := parsed.Fallback
	if fallback == nil {
		fallback = defaultFallback(parsed.Source)
	}
	decision := models.NewRoutingDecision(parsed.Source, parsed.Confidence, models.MethodModel, parsed.Reason, fallback)
	decision.Usage = &usage
	decision.CostUSD = cost
	return decision, nil
}

func defaultFallback(source models.Source) *models.Source {
	switch source {
	case models.SourceHistorical:
		return models.SourcePtr(models.SourceSnapshot)
	case models.SourceLive:
		return models.SourcePtr(models.SourceHistorical)
	default:
		return nil
	}
}

// parseModelDecision takes the first well-formed JSON object in text and
// checks it against the decision contract.
func parseModelDecision(text string) (*modelDecision, error) {
	raw, ok := extractFirstJSONObject(text)
	if !ok {
		return nil, stderrors.New("no JSON object in response")
	}

	result, err := decisionSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validate decision: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("decision does not match contract: %s", strings.Join(msgs, "; "))
	}

	var d modelDecision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}
	return &d, nil
}

func extractFirstJSONObject(text string) ([]byte, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err == nil {
			return raw, true
		}
	}
	return nil, false
}

func buildRoutingPrompt(snapshot *models.Snapshot, rc RouteContext, s SufficiencyResult, live LiveDataResult) string {
	var parts []string

	parts = append(parts, "You are a data source router for an analytics assistant.")
	parts = append(parts, "Decide which data source can best answer the user's query.")
	parts = append(parts, "\nDATA SOURCES:")
	parts = append(parts, "1. snapshot - the aggregated view already on screen (fast, limited): ranked top entities, totals, a sampled time series.")
	parts = append(parts, "   USE WHEN the visible aggregates answer the question.")
	parts = append(parts, "2. historical - the analytical store (complete, slower): every entity, filters, product and customer breakdowns, daily granularity.")
	parts = append(parts, "   USE WHEN the question needs more rows, filters or dimensions than the snapshot holds.")
	parts = append(parts, "3. live - the live API (current state): group membership counts, automation status, scheduled sends.")
	parts = append(parts, "   USE WHEN the question is about what is true right now.")

	summary, _ := json.Marshal(snapshotSummary(snapshot))
	parts = append(parts, "\nAVAILABLE SNAPSHOT DATA:")
	parts = append(parts, string(summary))

	parts = append(parts, "\nHEURISTIC ANALYSIS:")
	parts = append(parts, fmt.Sprintf("- Snapshot sufficient: %t", s.Sufficient))
	parts = append(parts, fmt.Sprintf("- Insufficiency reasons: %s", orNone(s.InsufficiencySignals)))
	parts = append(parts, fmt.Sprintf("- Live indicators: %s", orNone(familyStrings(live.Indicators))))
	parts = append(parts, fmt.Sprintf("- Selected entities: %d", rc.SelectedEntityCount))

	parts = append(parts, "\nReturn JSON only:")
	parts = append(parts, `{"source": "snapshot" | "historical" | "live", "confidence": "low" | "medium" | "high", "reason": "brief explanation", "fallback": "snapshot" | "historical" | "live" | null}`)

	return strings.Join(parts, "\n")
}

func snapshotSummary(s *models.Snapshot) map[string]interface{} {
	if s == nil {
		return map[string]interface{}{"empty": true}
	}
	dims := make([]string, 0, len(s.Breakdowns))
	for d := range s.Breakdowns {
		dims = append(dims, d)
	}
	sort.Strings(dims)
	return map[string]interface{}{
		"entityRecords":    len(s.EntityRecords),
		"topPerformers":    len(s.TopPerformers),
		"hasTotals":        s.Totals != nil,
		"timeSeriesPoints": len(s.TimeSeries),
		"granularity":      s.Granularity,
		"breakdowns":       dims,
	}
}

func joinFamilies(fs []Family) string {
	return strings.Join(familyStrings(fs), ", ")
}

func familyStrings(fs []Family) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, string(f))
	}
	return out
}

func joinPresence(ps []PresenceCheck) string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, string(p))
	}
	return strings.Join(out, ", ")
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
