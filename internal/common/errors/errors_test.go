package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStandardError_IsMatchesOnCode(t *testing.T) {
	err := fmt.Errorf("fetch historical: %w", NewBackendUnavailableError("historical", stderrors.New("dial tcp: refused")))

	assert.True(t, stderrors.Is(err, ErrBackendUnavailable))
	assert.False(t, stderrors.Is(err, ErrAllModelsExhausted))
	assert.Equal(t, ErrCodeBackendUnavailable, CodeOf(err))
}

func TestStandardError_UnwrapsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewBackendUnavailableError("live", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, "live", err.Metadata["source"])
}

func TestAsStandard_WrapsPlainErrors(t *testing.T) {
	stdErr := AsStandard(stderrors.New("boom"))

	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.Equal(t, "boom", stdErr.Details)
	assert.Nil(t, AsStandard(nil))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{name: "no access", err: NewNoAccessibleEntitiesError("historical"), contains: "don't have access"},
		{name: "exhausted", err: NewAllModelsExhaustedError(3), contains: "temporarily unavailable"},
		{name: "backend", err: NewBackendUnavailableError("historical", nil), contains: "incomplete"},
		{name: "internal", err: stderrors.New("secret prompt text"), contains: "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := UserMessage(tt.err)
			assert.Contains(t, msg, tt.contains)
			assert.NotContains(t, msg, "secret")
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	bpmn := ConvertToBPMNError(NewNoAccessibleEntitiesError("live"))
	assert.Equal(t, "NO_DATA_ACCESS", bpmn.Code)
	assert.Equal(t, 0, bpmn.Retries)
	assert.False(t, bpmn.Retryable)

	bpmn = ConvertToBPMNError(NewAllModelsExhaustedError(2))
	assert.Equal(t, "ASSISTANT_UNAVAILABLE", bpmn.Code)
	assert.Equal(t, 2, bpmn.Retries)

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "ALL_MODELS_EXHAUSTED", vars["originalErrorCode"])
}

func TestErrorHandler_Decide(t *testing.T) {
	h := NewErrorHandler(nil)

	throw, retries := h.Decide(NewNoAccessibleEntitiesError("historical"), 3)
	assert.True(t, throw)
	assert.Equal(t, 0, retries)

	throw, retries = h.Decide(NewBackendUnavailableError("historical", nil), 2)
	assert.False(t, throw)
	assert.Equal(t, 2, retries)

	throw, _ = h.Decide(NewBackendUnavailableError("historical", nil), 0)
	assert.True(t, throw)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "ROUTING", GetErrorCategory(ErrCodeRoutingAmbiguous))
	assert.Equal(t, "ACCESS/REQUEST", GetErrorCategory(ErrCodeNoAccessibleEntities))
	assert.Equal(t, "DATA_SOURCE", GetErrorCategory(ErrCodeBackendUnavailable))
	assert.Equal(t, "MODEL", GetErrorCategory(ErrCodeMalformedModelOutput))
	assert.Equal(t, "INTERNAL", GetErrorCategory(ErrCodeInternal))
}
