// internal/common/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode identifies a failure class.
type ErrorCode string

const (
	// Routing and planning
	ErrCodeRoutingAmbiguous     ErrorCode = "ROUTING_AMBIGUOUS"
	ErrCodeNoAccessibleEntities ErrorCode = "NO_ACCESSIBLE_ENTITIES"
	ErrCodeInvalidRequest       ErrorCode = "INVALID_REQUEST"

	// Source fetchers
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeUnknownTemplate    ErrorCode = "UNKNOWN_TEMPLATE"

	// Model invocation
	ErrCodeAllModelsExhausted   ErrorCode = "ALL_MODELS_EXHAUSTED"
	ErrCodeMalformedModelOutput ErrorCode = "MALFORMED_MODEL_OUTPUT"
	ErrCodeModelProviderFailed  ErrorCode = "MODEL_PROVIDER_FAILED"
	ErrCodeModelTimeout         ErrorCode = "MODEL_TIMEOUT"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the typed failure every component returns. Metadata
// carries component/source/model/retried so callers can log without
// touching prompts or credentials.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches on code only, so the sentinels below work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata returns e after merging kv into its metadata.
func (e *StandardError) WithMetadata(kv map[string]interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{}, len(kv))
	}
	for k, v := range kv {
		e.Metadata[k] = v
	}
	return e
}

// Sentinels for errors.Is.
var (
	ErrRoutingAmbiguous     = &StandardError{Code: ErrCodeRoutingAmbiguous}
	ErrNoAccessibleEntities = &StandardError{Code: ErrCodeNoAccessibleEntities}
	ErrInvalidRequest       = &StandardError{Code: ErrCodeInvalidRequest}
	ErrBackendUnavailable   = &StandardError{Code: ErrCodeBackendUnavailable}
	ErrUnknownTemplate      = &StandardError{Code: ErrCodeUnknownTemplate}
	ErrAllModelsExhausted   = &StandardError{Code: ErrCodeAllModelsExhausted}
	ErrMalformedModelOutput = &StandardError{Code: ErrCodeMalformedModelOutput}
	ErrModelProviderFailed  = &StandardError{Code: ErrCodeModelProviderFailed}
	ErrModelTimeout         = &StandardError{Code: ErrCodeModelTimeout}
)

// BPMNError is the error thrown back to the process.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns the process variables set on a thrown error.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// NewRoutingAmbiguousError reports that the routing model gave no usable answer.
func NewRoutingAmbiguousError(reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRoutingAmbiguous,
		Message:   "Routing could not be decided by heuristics or model",
		Details:   reason,
		Retryable: false,
		Metadata:  map[string]interface{}{"component": "router"},
		Timestamp: time.Now().UTC(),
	}
}

// NewNoAccessibleEntitiesError reports an empty entity scope.
func NewNoAccessibleEntitiesError(source string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoAccessibleEntities,
		Message:   "No accessible entities for this request",
		Details:   fmt.Sprintf("source: %s", source),
		Retryable: false,
		Metadata:  map[string]interface{}{"component": "planner", "source": source},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError reports a malformed request.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBackendUnavailableError reports that source could not be reached.
func NewBackendUnavailableError(source string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeBackendUnavailable,
		Message:   "Data backend unavailable",
		Details:   details,
		Retryable: true,
		Metadata:  map[string]interface{}{"component": "fetcher", "source": source},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUnknownTemplateError reports a template id with no registered query.
func NewUnknownTemplateError(templateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownTemplate,
		Message:   "Query template not found in registry",
		Details:   fmt.Sprintf("templateId: %s", templateID),
		Retryable: false,
		Metadata:  map[string]interface{}{"component": "fetcher", "source": "historical"},
		Timestamp: time.Now().UTC(),
	}
}

// NewAllModelsExhaustedError reports that every ranked model failed.
func NewAllModelsExhaustedError(attempts int) *StandardError {
	return &StandardError{
		Code:      ErrCodeAllModelsExhausted,
		Message:   "All candidate models failed",
		Details:   fmt.Sprintf("attempts: %d", attempts),
		Retryable: true,
		Metadata:  map[string]interface{}{"component": "invoker", "attempts": attempts},
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedModelOutputError reports an unusable model reply.
func NewMalformedModelOutputError(model, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedModelOutput,
		Message:   "Model returned malformed output",
		Details:   details,
		Retryable: true,
		Metadata:  map[string]interface{}{"component": "invoker", "model": model},
		Timestamp: time.Now().UTC(),
	}
}

// NewModelProviderFailedError reports a provider call failure.
func NewModelProviderFailedError(model string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelProviderFailed,
		Message:   "Model provider call failed",
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"component": "provider", "model": model},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewModelTimeoutError reports a model call past its deadline.
func NewModelTimeoutError(model string) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelTimeout,
		Message:   "Model provider call timed out",
		Details:   fmt.Sprintf("model: %s", model),
		Retryable: true,
		Metadata:  map[string]interface{}{"component": "provider", "model": model},
		Timestamp: time.Now().UTC(),
	}
}

// AsStandard unwraps err to a StandardError, or wraps it as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// CodeOf returns the code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsStandard(err).Code
}

// UserMessage is the caller-facing text for err. Details never leak.
func UserMessage(err error) string {
	switch CodeOf(err) {
	case ErrCodeNoAccessibleEntities:
		return "You don't have access to any data for this question. Select an account you have access to and try again."
	case ErrCodeAllModelsExhausted:
		return "The assistant is temporarily unavailable. Please try again in a moment."
	case ErrCodeBackendUnavailable:
		return "Some data sources are unavailable right now, so this answer may be incomplete."
	case ErrCodeInvalidRequest:
		return "The question could not be processed. Please rephrase it and try again."
	default:
		return "Something went wrong while answering your question."
	}
}

// BPMNErrorMapping maps internal codes to the codes the process models catch.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeNoAccessibleEntities: "NO_DATA_ACCESS",
	ErrCodeInvalidRequest:       "INVALID_REQUEST",
	ErrCodeAllModelsExhausted:   "ASSISTANT_UNAVAILABLE",
	ErrCodeBackendUnavailable:   "BACKEND_UNAVAILABLE",
	ErrCodeUnknownTemplate:      "UNKNOWN_TEMPLATE",
}

// GetRetryCount returns how many job retries a code deserves.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeBackendUnavailable,
		ErrCodeModelProviderFailed:
		return 3

	case ErrCodeAllModelsExhausted,
		ErrCodeModelTimeout:
		return 2

	case ErrCodeMalformedModelOutput:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError maps a standard error to its BPMN form.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   UserMessage(stdErr),
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// IsRetryableErrorCode reports whether the code gets any retries.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for logging.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "ROUTING"):
		return "ROUTING"
	case strings.Contains(codeStr, "ENTITIES") || strings.Contains(codeStr, "REQUEST"):
		return "ACCESS/REQUEST"
	case strings.Contains(codeStr, "BACKEND") || strings.Contains(codeStr, "TEMPLATE"):
		return "DATA_SOURCE"
	case strings.Contains(codeStr, "MODEL"):
		return "MODEL"
	default:
		return "INTERNAL"
	}
}
