package errors

import (
	"errors"
	"fmt"
	"time"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeCheckFailed       ErrorCode = "CHECK_FAILED"
	ErrCodeCheckPanicked     ErrorCode = "CHECK_PANICKED"
	ErrCodeCheckTimeout      ErrorCode = "CHECK_TIMEOUT"
	ErrCodeOverrideLookup    ErrorCode = "OVERRIDE_LOOKUP_FAILED"
	ErrCodeCredentialsMissed ErrorCode = "PLAN_CREDENTIALS_MISSING"

	ErrCodeCallbackRequestFailed  ErrorCode = "CALLBACK_REQUEST_FAILED"
	ErrCodeCallbackRejected       ErrorCode = "CALLBACK_REJECTED"
	ErrCodeCallbackDeliveryFailed ErrorCode = "CALLBACK_DELIVERY_FAILED"
	ErrCodeDeliveryPanicked       ErrorCode = "DELIVERY_PANICKED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the normalized form every fault is logged in.
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

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Fields flattens the error for structured logging.
func (e *StandardError) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"errorCode":     string(e.Code),
		"errorMessage":  e.Message,
		"errorDetails":  e.Details,
		"retryable":     e.Retryable,
		"errorCategory": GetErrorCategory(e.Code),
	}
	for k, v := range e.Metadata {
		fields[k] = v
	}
	return fields
}

func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request payload validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCheckFailedError(plan string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCheckFailed,
		Message:   "Eligibility check failed",
		Details:   fmt.Sprintf("plan: %s, error: %s", plan, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewCheckPanickedError(plan string, recovered interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeCheckPanicked,
		Message:   "Eligibility check panicked",
		Details:   fmt.Sprintf("plan: %s, panic: %v", plan, recovered),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCheckTimeoutError(plan string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCheckTimeout,
		Message:   "Eligibility check interrupted",
		Details:   fmt.Sprintf("plan: %s, error: %s", plan, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewOverrideLookupError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOverrideLookup,
		Message:   "Override allow-list lookup failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewCredentialsMissingError(plan string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCredentialsMissed,
		Message:   "Plan credentials are not configured",
		Details:   fmt.Sprintf("plan: %s", plan),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCallbackRequestFailedError(attempt int, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCallbackRequestFailed,
		Message:   "Callback request failed",
		Details:   fmt.Sprintf("attempt: %d, error: %s", attempt, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewCallbackRejectedError(attempt, statusCode int) *StandardError {
	return &StandardError{
		Code:      ErrCodeCallbackRejected,
		Message:   fmt.Sprintf("Callback rejected with status %d", statusCode),
		Details:   fmt.Sprintf("attempt: %d, statusCode: %d", attempt, statusCode),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewCallbackDeliveryFailedError(attempts int) *StandardError {
	return &StandardError{
		Code:      ErrCodeCallbackDeliveryFailed,
		Message:   "Callback delivery exhausted all attempts",
		Details:   fmt.Sprintf("attempts: %d", attempts),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDeliveryPanickedError(recovered interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryPanicked,
		Message:   "Callback delivery panicked",
		Details:   fmt.Sprintf("panic: %v", recovered),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Normalize converts any error into a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
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

// IsRetryable reports whether err is a transient fault.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed:
		return "VALIDATION"
	case ErrCodeCheckFailed, ErrCodeCheckPanicked, ErrCodeCheckTimeout, ErrCodeOverrideLookup:
		return "CAPABILITY"
	case ErrCodeCallbackRequestFailed, ErrCodeCallbackRejected, ErrCodeCallbackDeliveryFailed, ErrCodeDeliveryPanicked:
		return "DELIVERY"
	case ErrCodeCredentialsMissed:
		return "CONFIGURATION"
	default:
		return "INTERNAL"
	}
}
