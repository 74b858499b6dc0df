package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types exposed to API callers alongside the HTTP status code
const (
	ErrorTypeNotFound         = "not_found"
	ErrorTypeInvalidRequest   = "invalid_request"
	ErrorTypeConflict         = "conflict"
	ErrorTypeUnauthorized     = "unauthorized"
	ErrorTypeForbidden        = "forbidden"
	ErrorTypeRateLimited      = "rate_limited"
	ErrorTypeStoreUnavailable = "store_unavailable"
	ErrorTypeInternal         = "internal"
)

// AppError represents an application error with an HTTP status and a stable type
type AppError struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error
func NewAppError(code int, errType, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// NewBadRequestError creates a 400 error
func NewBadRequestError(message string, err error) *AppError {
	return NewAppError(http.StatusBadRequest, ErrorTypeInvalidRequest, message, err)
}

// NewUnauthorizedError creates a 401 error
func NewUnauthorizedError(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, ErrorTypeUnauthorized, message, nil)
}

// NewForbiddenError creates a 403 error
func NewForbiddenError(message string) *AppError {
	return NewAppError(http.StatusForbidden, ErrorTypeForbidden, message, nil)
}

// NewNotFoundError creates a 404 error
func NewNotFoundError(message string, err error) *AppError {
	return NewAppError(http.StatusNotFound, ErrorTypeNotFound, message, err)
}

// NewConflictError creates a 409 error
func NewConflictError(message string) *AppError {
	return NewAppError(http.StatusConflict, ErrorTypeConflict, message, nil)
}

// NewTooManyRequestsError creates a 429 error
func NewTooManyRequestsError(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, ErrorTypeRateLimited, message, nil)
}

// NewInternalError creates a 500 error wrapping the cause
func NewInternalError(message string, err error) *AppError {
	return NewAppError(http.StatusInternalServerError, ErrorTypeInternal, message, err)
}

// NewStoreUnavailableError creates a 503 error wrapping a failed store call
func NewStoreUnavailableError(message string, err error) *AppError {
	return NewAppError(http.StatusServiceUnavailable, ErrorTypeStoreUnavailable, message, err)
}

// AsAppError extracts an *AppError from an error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, errType string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Type == errType
}
