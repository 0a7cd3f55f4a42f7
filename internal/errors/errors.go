package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeUnsupportedMethod ErrorType = "unsupported_method"
	ErrorTypeDecode            ErrorType = "decode_failure"
	ErrorTypeEngineUnavailable ErrorType = "engine_unavailable"
	ErrorTypeRecognition       ErrorType = "recognition"
	ErrorTypeStorage           ErrorType = "storage"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeNetwork           ErrorType = "network"
	ErrorTypeTimeout           ErrorType = "timeout"
	ErrorTypeInternal          ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

// NewUnsupportedMethodError reports an enhancement identifier outside the known set.
func NewUnsupportedMethodError(method string) *AppError {
	return newError(ErrorTypeUnsupportedMethod, http.StatusBadRequest,
		fmt.Sprintf("unsupported enhancement method %q", method), nil)
}

// NewDecodeError reports input bytes that do not form a valid image.
func NewDecodeError(message string, cause error) *AppError {
	return newError(ErrorTypeDecode, http.StatusBadRequest, message, cause)
}

// NewEngineUnavailableError reports a recognition engine that cannot be located or started.
func NewEngineUnavailableError(message string, cause error) *AppError {
	return newError(ErrorTypeEngineUnavailable, http.StatusServiceUnavailable, message, cause)
}

// NewRecognitionError reports a recognition engine that ran but failed.
func NewRecognitionError(message string, cause error) *AppError {
	return newError(ErrorTypeRecognition, http.StatusBadGateway, message, cause)
}

// NewStorageError reports a failure persisting run output.
func NewStorageError(message string, cause error) *AppError {
	return newError(ErrorTypeStorage, http.StatusInternalServerError, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, message, cause)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return newError(ErrorTypeNetwork, http.StatusBadGateway, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newError(ErrorTypeTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// IsType checks if the error, or any error it wraps, is an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
