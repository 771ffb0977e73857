package utils

import (
	"errors"
	"fmt"
	"runtime"
)

// AppError represents an application error with context
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAppError creates a new application error
func NewAppError(code, message string, details ...string) *AppError {
	_, file, line, _ := runtime.Caller(1)

	err := &AppError{
		Code:    code,
		Message: message,
		File:    file,
		Line:    line,
	}

	if len(details) > 0 {
		err.Details = details[0]
	}

	return err
}

// Common error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeResourceExhausted = "RESOURCE_EXHAUSTED"
	ErrCodeExecution         = "EXECUTION_ERROR"
	ErrCodeConnection        = "CONNECTION_ERROR"
	ErrCodeDatabase          = "DATABASE_ERROR"
	ErrCodeConfiguration     = "CONFIGURATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// ErrorCode extracts the application error code, or ErrCodeInternal for
// errors that did not originate here.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsValidationError reports whether err is a static validation failure.
func IsValidationError(err error) bool {
	return ErrorCode(err) == ErrCodeValidation
}

// IsResourceExhausted reports whether err is a pool acquisition timeout.
func IsResourceExhausted(err error) bool {
	return ErrorCode(err) == ErrCodeResourceExhausted
}

// IsExecutionError reports whether err is a data-store execution failure.
func IsExecutionError(err error) bool {
	return ErrorCode(err) == ErrCodeExecution
}

// IsConnectionError reports whether err is a connectivity failure.
func IsConnectionError(err error) bool {
	return ErrorCode(err) == ErrCodeConnection
}
