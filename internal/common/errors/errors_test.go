package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name          string
		err           *StandardError
		expectedCode  string
		expectedRetry int
	}{
		{
			name:          "configuration error is terminal",
			err:           NewConfigurationError(fmt.Errorf("pca key missing")),
			expectedCode:  "CONFIGURATION_ERROR",
			expectedRetry: 0,
		},
		{
			name:          "transport error retries",
			err:           NewTransportError(fmt.Errorf("connection refused")),
			expectedCode:  "ADDRESS_LOOKUP_FAILED",
			expectedRetry: 3,
		},
		{
			name:          "upstream data error is terminal",
			err:           NewUpstreamDataError("Postcode Invalid"),
			expectedCode:  "ADDRESS_DATA_INVALID",
			expectedRetry: 0,
		},
		{
			name:          "unmapped code falls back to itself",
			err:           NewTimeoutError("pca", fmt.Errorf("deadline exceeded")),
			expectedCode:  "TIMEOUT_ERROR",
			expectedRetry: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmnErr := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.expectedCode, bpmnErr.Code)
			assert.Equal(t, tt.expectedRetry, bpmnErr.Retries)
			assert.Equal(t, tt.err.Message, bpmnErr.Message)

			vars := bpmnErr.ToErrorVariables()
			assert.Equal(t, tt.expectedCode, vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestStandardError_Unwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := fmt.Errorf("wrapped: %w", NewCacheWriteFailedError("SW1A 1AA", cause))

	assert.True(t, stderrors.Is(err, cause))

	stdErr, ok := AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeCacheWriteFailed, stdErr.Code)
	assert.Contains(t, stdErr.Details, "SW1A 1AA")
}

func TestAsStandardError_NotStandard(t *testing.T) {
	_, ok := AsStandardError(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "validation", GetErrorCategory(ErrCodeInvalidPostcode))
	assert.Equal(t, "configuration", GetErrorCategory(ErrCodeConfiguration))
	assert.Equal(t, "integration", GetErrorCategory(ErrCodeTransport))
	assert.Equal(t, "upstream_data", GetErrorCategory(ErrCodeUpstreamData))
	assert.Equal(t, "infrastructure", GetErrorCategory(ErrCodeCacheReadFailed))
	assert.Equal(t, "unknown", GetErrorCategory(ErrorCode("SOMETHING_ELSE")))
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeTransport))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidPostcode))
}
