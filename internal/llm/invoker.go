// internal/llm/invoker.go
package llm

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	apperrors "analytics-assistant/internal/common/errors"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/common/metrics"
	"analytics-assistant/internal/common/observability"
	"analytics-assistant/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

// InvokerConfig holds generation settings and per-model overrides.
type InvokerConfig struct {
	MaxTokens      int
	Temperature    float64
	AttemptTimeout time.Duration
	// ModelTimeouts overrides AttemptTimeout per model id.
	ModelTimeouts map[string]time.Duration
	// NoReprompt lists models that get a single pass.
	NoReprompt map[string]bool
}

// InvokeResult is the winning answer plus every attempt made.
type InvokeResult struct {
	Answer       string
	ModelID      string
	Attempts     []models.ModelAttempt
	TotalCostUSD float64
}

// Invoker walks a ranked model list strictly in order and stops at the first
// usable answer.
type Invoker struct {
	provider Provider
	pricing  Pricing
	config   InvokerConfig
	logger   logger.Logger
	now      func() time.Time
}

// NewInvoker creates a fallback invoker over provider.
func NewInvoker(provider Provider, pricing Pricing, config InvokerConfig, log logger.Logger) *Invoker {
	return &Invoker{
		provider: provider,
		pricing:  pricing,
		config:   config,
		logger:   logger.Component(log, "invoker"),
		now:      time.Now,
	}
}

// Invoke returns the attempts made even when it fails, so callers can report them.
func (i *Invoker) Invoke(ctx context.Context, payload ContextPayload, rankedModels []string) (*InvokeResult, error) {
	ctx, span := observability.StartSpan(ctx, "invoke", attribute.Int("candidates", len(rankedModels)))
	defer span.End()

	result := &InvokeResult{Attempts: make([]models.ModelAttempt, 0, len(rankedModels))}

	for _, model := range rankedModels {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		attempt, answer := i.attempt(ctx, payload, model)
		result.Attempts = append(result.Attempts, attempt)
		result.TotalCostUSD += attempt.CostUSD
		metrics.ModelAttempts.WithLabelValues(model, string(attempt.Outcome)).Inc()

		if attempt.Succeeded {
			result.Answer = answer
			result.ModelID = model
			i.logger.Info("model answered", map[string]interface{}{
				"model":     model,
				"attempts":  len(result.Attempts),
				"latencyMs": attempt.LatencyMs,
			})
			return result, nil
		}

		i.logger.Warn("model attempt failed", map[string]interface{}{
			"model":      model,
			"outcome":    string(attempt.Outcome),
			"errorCode":  attempt.ErrorCode,
			"reprompted": attempt.Reprompted,
		})

		if attempt.Outcome == models.OutcomeCancelled {
			return result, ctx.Err()
		}
	}

	return result, apperrors.NewAllModelsExhaustedError(len(result.Attempts))
}

// attempt calls one model, re-prompting once with a stricter instruction when
// the reply is unusable.
func (i *Invoker) attempt(ctx context.Context, payload ContextPayload, model string) (models.ModelAttempt, string) {
	start := i.now()
	attempt := models.ModelAttempt{ModelID: model}

	attemptCtx := ctx
	if timeout := i.timeoutFor(model); timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var answer string
	var err error
	passes := 2
	if i.config.NoReprompt[model] {
		passes = 1
	}
	for pass := 0; pass < passes; pass++ {
		strict := pass == 1
		attempt.Reprompted = strict

		system, user := BuildAnswerPrompt(payload, strict)
		var resp *CompletionResponse
		resp, err = i.provider.Complete(attemptCtx, CompletionRequest{
			Model:        model,
			SystemPrompt: system,
			UserPrompt:   user,
			MaxTokens:    i.config.MaxTokens,
			Temperature:  i.config.Temperature,
		})
		if resp != nil {
			attempt.Usage = attempt.Usage.Add(resp.Usage)
		}
		if err == nil {
			answer = strings.TrimSpace(resp.Text)
			if answer != "" {
				break
			}
			err = apperrors.NewMalformedModelOutputError(model, "empty answer")
		}
		if !stderrors.Is(err, apperrors.ErrMalformedModelOutput) {
			break
		}
	}

	attempt.LatencyMs = i.now().Sub(start).Milliseconds()
	attempt.CostUSD = i.pricing.Cost(model, attempt.Usage)

	if err == nil {
		attempt.Succeeded = true
		attempt.Outcome = models.OutcomeSuccess
		return attempt, answer
	}

	attempt.ErrorCode = string(apperrors.CodeOf(err))
	switch {
	case ctx.Err() != nil:
		attempt.Outcome = models.OutcomeCancelled
	case stderrors.Is(err, apperrors.ErrModelTimeout) || stderrors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		attempt.Outcome = models.OutcomeTimeout
	case stderrors.Is(err, apperrors.ErrMalformedModelOutput):
		attempt.Outcome = models.OutcomeMalformed
	default:
		attempt.Outcome = models.OutcomeProviderError
	}
	return attempt, ""
}

func (i *Invoker) timeoutFor(model string) time.Duration {
	if d, ok := i.config.ModelTimeouts[model]; ok && d > 0 {
		return d
	}
	return i.config.AttemptTimeout
}
