package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a cliptitle error code.
type ErrorCode string

const (
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"       // 400
	ErrNotFound             ErrorCode = "NOT_FOUND"             // 404
	ErrConflict             ErrorCode = "CONFLICT"              // 409
	ErrSettingsInvalid      ErrorCode = "SETTINGS_INVALID"      // 422
	ErrCancelled            ErrorCode = "CANCELLED"             // 499
	ErrInternal             ErrorCode = "INTERNAL"              // 500
	ErrWriteFailed          ErrorCode = "WRITE_FAILED"          // 500
	ErrInferenceUnavailable ErrorCode = "INFERENCE_UNAVAILABLE" // 503
)

// ClipError represents a structured error with code, status, and details.
type ClipError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *ClipError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ClipError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ClipError {
	return &ClipError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing clip, file or pending request.
func NewNotFound(kind, identifier string) *ClipError {
	return &ClipError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *ClipError {
	return &ClipError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewSettingsInvalid creates a 422 error for settings that fail validation.
func NewSettingsInvalid(field, reason string) *ClipError {
	return &ClipError{
		Code:    ErrSettingsInvalid,
		Status:  422,
		Message: fmt.Sprintf("invalid setting %s: %s", field, reason),
		Details: map[string]any{"field": field, "reason": reason},
	}
}

// NewCancelled creates an error for operations aborted by context cancellation.
func NewCancelled(operation string) *ClipError {
	return &ClipError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewWriteFailed creates a 500 error after a file write exhausted its retries.
func NewWriteFailed(path string, attempts int, err error) *ClipError {
	return &ClipError{
		Code:    ErrWriteFailed,
		Status:  500,
		Message: fmt.Sprintf("failed to write %s after %d attempts", path, attempts),
		Details: map[string]any{"path": path, "attempts": attempts},
		Err:     err,
	}
}

// NewInferenceUnavailable creates a 503 error when the inference service cannot be reached.
func NewInferenceUnavailable(baseURL string, err error) *ClipError {
	msg := fmt.Sprintf("inference service unavailable at %s", baseURL)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &ClipError{
		Code:    ErrInferenceUnavailable,
		Status:  503,
		Message: msg,
		Details: map[string]any{"base_url": baseURL},
		Err:     err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ClipError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ClipError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err (or anything it wraps) is a ClipError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *ClipError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// As is a re-export of the standard library errors.As so callers can stay on one import.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
