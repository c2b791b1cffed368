package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeInternal    ErrorType = "INTERNAL_ERROR"
	ErrorTypeConflict    ErrorType = "CONFLICT"
	ErrorTypeServiceDown ErrorType = "SERVICE_DOWN"
	ErrorTypeRateLimit   ErrorType = "RATE_LIMITED"

	// ErrorTypeFormat marks a container that cannot be played: bad signature,
	// impossible dimensions or a missing first frame.
	ErrorTypeFormat ErrorType = "FORMAT_ERROR"

	// ErrorTypeIO marks a failure to create or write a container.
	ErrorTypeIO ErrorType = "IO_ERROR"
)

// AppError represents an application error with additional context.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCode adds an error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// New creates a new AppError.
func New(errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewInternalError creates an internal server error.
func NewInternalError(message string) *AppError {
	return New(ErrorTypeInternal, message, http.StatusInternalServerError)
}

// WrapInternalError wraps an error as internal server error.
func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, http.StatusInternalServerError)
}

// NewConflictError creates a conflict error.
func NewConflictError(message string) *AppError {
	return New(ErrorTypeConflict, message, http.StatusConflict)
}

// NewServiceDownError creates a service down error.
func NewServiceDownError(service string) *AppError {
	return New(ErrorTypeServiceDown, fmt.Sprintf("%s service is currently unavailable", service), http.StatusServiceUnavailable)
}

// NewRateLimitError creates a too many requests error.
func NewRateLimitError() *AppError {
	return New(ErrorTypeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

// NewFormatError creates a format error for an unplayable container.
func NewFormatError(message string) *AppError {
	return New(ErrorTypeFormat, message, http.StatusUnprocessableEntity)
}

// WrapFormatError wraps a read failure as a format error.
func WrapFormatError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeFormat, message, http.StatusUnprocessableEntity)
}

// WrapIOError wraps a filesystem failure as an IO error.
func WrapIOError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeIO, message, http.StatusInternalServerError)
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// GetAppError extracts AppError from an error chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether any AppError in the chain has the given type.
func IsType(err error, errType ErrorType) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Type == errType
}
