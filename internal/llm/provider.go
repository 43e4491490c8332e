// internal/llm/provider.go
package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	apperrors "analytics-assistant/internal/common/errors"
	commonhttp "analytics-assistant/internal/common/http"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/models"
)

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// CompletionResponse carries the reply text and token usage.
type CompletionResponse struct {
	Model        string
	Text         string
	Usage        models.Usage
	FinishReason string
}

// Provider is the language-model collaborator. Implementations own auth and
// transport; callers only pick the model id.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ProviderConfig points the chat provider at the model gateway.
type ProviderConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	AppName    string
}

// ChatProvider talks to an OpenAI-compatible /chat/completions endpoint.
type ChatProvider struct {
	config *ProviderConfig
	client *commonhttp.Client
	logger logger.Logger
}

// NewChatProvider creates an HTTP chat completion provider.
func NewChatProvider(config *ProviderConfig, log logger.Logger) *ChatProvider {
	headers := map[string]string{}
	if config.APIKey != "" {
		headers["Authorization"] = "Bearer " + config.APIKey
	}
	if config.AppName != "" {
		headers["X-Title"] = config.AppName
	}
	return &ChatProvider{
		config: config,
		client: commonhttp.NewClient(config.Timeout, headers),
		logger: logger.Component(log, "provider"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends one completion request and classifies failures.
func (p *ChatProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	body := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	url := strings.TrimRight(p.config.BaseURL, "/") + "/chat/completions"

	var apiResponse chatResponse
	var lastErr error

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, p.contextError(ctx, req.Model)
			}
		}

		apiResponse = chatResponse{}
		lastErr = p.client.PostJSON(ctx, url, body, &apiResponse)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, p.contextError(ctx, req.Model)
		}

		var statusErr *commonhttp.StatusError
		if stderrors.As(lastErr, &statusErr) && !statusErr.Retryable() {
			break
		}

		p.logger.Warn("model request failed", map[string]interface{}{
			"model":   req.Model,
			"attempt": attempt + 1,
			"error":   lastErr.Error(),
		})
	}

	if lastErr != nil {
		return nil, apperrors.NewModelProviderFailedError(req.Model, lastErr)
	}

	if len(apiResponse.Choices) == 0 {
		return nil, apperrors.NewMalformedModelOutputError(req.Model, "response has no choices")
	}

	model := apiResponse.Model
	if model == "" {
		model = req.Model
	}

	return &CompletionResponse{
		Model:        model,
		Text:         apiResponse.Choices[0].Message.Content,
		FinishReason: apiResponse.Choices[0].FinishReason,
		Usage: models.Usage{
			InputTokens:  apiResponse.Usage.PromptTokens,
			OutputTokens: apiResponse.Usage.CompletionTokens,
		},
	}, nil
}

func (p *ChatProvider) contextError(ctx context.Context, model string) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewModelTimeoutError(model)
	}
	return apperrors.NewModelProviderFailedError(model, fmt.Errorf("request cancelled: %w", ctx.Err()))
}
