// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidPostcode    ErrorCode = "INVALID_POSTCODE"
	ErrCodeConfiguration      ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeTransport          ErrorCode = "TRANSPORT_ERROR"
	ErrCodeUpstreamData       ErrorCode = "UPSTREAM_DATA_ERROR"
	ErrCodeCacheReadFailed    ErrorCode = "CACHE_READ_FAILED"
	ErrCodeCacheWriteFailed   ErrorCode = "CACHE_WRITE_FAILED"
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeExternalService    ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout            ErrorCode = "TIMEOUT_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
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

// ==========================
// 3. Error Constructors
// ==========================

// NewConfigurationError creates a non-retryable misconfiguration error.
// Ops must fix the configuration before any lookup can succeed.
func NewConfigurationError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfiguration,
		Message:   "Address lookup is not configured",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTransportError creates an error for a failed remote call.
func NewTransportError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransport,
		Message:   "Address lookup fail",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUpstreamDataError creates an error for a payload the vendor returned but
// which carried no usable addresses.
func NewUpstreamDataError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamData,
		Message:   "Problem fetching Postcode addresses",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCacheReadFailedError(postcode string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheReadFailed,
		Message:   "Address cache read failed",
		Details:   fmt.Sprintf("postcode: %s, error: %s", postcode, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewCacheWriteFailedError(postcode string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheWriteFailed,
		Message:   "Address cache write failed",
		Details:   fmt.Sprintf("postcode: %s, error: %s", postcode, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidInputError creates a non-retryable job input error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid job input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. BPMN Mapping
// ==========================

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidPostcode:    "INVALID_POSTCODE",
	ErrCodeConfiguration:      "CONFIGURATION_ERROR",
	ErrCodeTransport:          "ADDRESS_LOOKUP_FAILED",
	ErrCodeUpstreamData:       "ADDRESS_DATA_INVALID",
	ErrCodeCacheReadFailed:    "CACHE_READ_FAILED",
	ErrCodeCacheWriteFailed:   "CACHE_WRITE_FAILED",
	ErrCodeInvalidInput:       "INVALID_INPUT",
}

// GetRetryCount returns how many job retries an error code deserves.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTransport,
		ErrCodeExternalService:
		return 3

	case ErrCodeTimeout:
		return 2

	default:
		return 0
	}
}

// GetErrorCategory groups error codes for logging.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidPostcode, ErrCodeInvalidInput:
		return "validation"
	case ErrCodeConfiguration:
		return "configuration"
	case ErrCodeTransport, ErrCodeExternalService, ErrCodeTimeout:
		return "integration"
	case ErrCodeUpstreamData:
		return "upstream_data"
	case ErrCodeCacheReadFailed, ErrCodeCacheWriteFailed:
		return "infrastructure"
	default:
		return "unknown"
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// AsStandardError extracts a StandardError from err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}
