// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "analytics-assistant/internal/common/errors"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/models"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// Answerer is the pipeline behind POST /v1/answer.
type Answerer interface {
	Answer(ctx context.Context, req models.AnswerRequest) (*models.AnswerResult, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Retryable  bool     `json:"retryable"`
	Violations []string `json:"violations,omitempty"`
}

// Handler serves the answer, health and metrics endpoints.
type Handler struct {
	answerer Answerer
	checks   map[string]ReadinessCheck
	timeout  time.Duration
	logger   logger.Logger
}

// NewHandler creates the HTTP handler. timeout bounds each answer.
func NewHandler(answerer Answerer, checks map[string]ReadinessCheck, timeout time.Duration, log logger.Logger) *Handler {
	return &Handler{
		answerer: answerer,
		checks:   checks,
		timeout:  timeout,
		logger:   logger.Component(log, "api"),
	}
}

// Routes registers health, readiness, metrics and the answer endpoint.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/ready", h.ready)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/answer", h.answer)
	return mux
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	code := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	if code == http.StatusOK {
		status["status"] = "ready"
	} else {
		status["status"] = "not ready"
	}
	writeJSON(w, code, status)
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Use POST.", false, nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, string(apperrors.ErrCodeInvalidRequest), "Request body is too large.", false, nil)
		return
	}

	violations, err := validateAnswerRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(apperrors.ErrCodeInvalidRequest), "Request body is not valid JSON.", false, nil)
		return
	}
	if len(violations) > 0 {
		writeError(w, http.StatusBadRequest, string(apperrors.ErrCodeInvalidRequest), "Request does not match the answer contract.", false, violations)
		return
	}

	var req models.AnswerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperrors.ErrCodeInvalidRequest), "Request body is not valid JSON.", false, nil)
		return
	}
	if caller := strings.TrimSpace(r.Header.Get("X-Caller-Id")); caller != "" && req.CallerID == "" {
		req.CallerID = caller
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.answerer.Answer(ctx, req)
	if err != nil {
		status := statusFor(err)
		stdErr := apperrors.AsStandard(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("answer failed", map[string]interface{}{
				"errorCode": string(stdErr.Code),
				"status":    status,
			})
		}
		writeError(w, status, string(stdErr.Code), apperrors.UserMessage(err), stdErr.Retryable, nil)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func statusFor(err error) int {
	switch {
	case stderrors.Is(err, apperrors.ErrInvalidRequest), stderrors.Is(err, apperrors.ErrUnknownTemplate):
		return http.StatusBadRequest
	case stderrors.Is(err, apperrors.ErrNoAccessibleEntities):
		return http.StatusForbidden
	case stderrors.Is(err, apperrors.ErrAllModelsExhausted), stderrors.Is(err, apperrors.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case stderrors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, retryable bool, violations []string) {
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:       code,
		Message:    message,
		Retryable:  retryable,
		Violations: violations,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
