// Package errors provides structured error handling for the application.
// Every error surfaced by the core carries one of a closed set of stable
// codes; adapters map transport failures into this taxonomy before the
// core ever sees them.
package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents a stable error code
type ErrorCode string

// The closed code set. The HTTP/WS facade maps these to status codes;
// the core guarantees the codes and message shapes stay stable.
const (
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeConflict           ErrorCode = "CONFLICT"
	CodePreconditionFailed ErrorCode = "PRECONDITION_FAILED"
	CodeUpstream           ErrorCode = "UPSTREAM_UNAVAILABLE"
	CodePartialResponse    ErrorCode = "PARTIAL_RESPONSE"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeInternal           ErrorCode = "INTERNAL"
)

// AppError represents an application error with structured information
type AppError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Details  string                 `json:"details,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Cause    error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the appropriate HTTP status code
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case CodeUpstream:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodePartialResponse:
		return http.StatusPartialContent
	default:
		return http.StatusInternalServerError
	}
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithCause adds a cause error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// New creates a new application error
func New(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Predefined constructors for common scenarios

// NewInvalidInput creates a validation error
func NewInvalidInput(details string) *AppError {
	return New(CodeInvalidInput, "Request failed validation", details)
}

// NewNotFound creates a not found error for the named resource
func NewNotFound(resource, id string) *AppError {
	message := "Resource not found"
	if resource != "" {
		message = fmt.Sprintf("%s not found", strings.Title(resource))
	}
	e := New(CodeNotFound, message, "")
	if id != "" {
		e = e.WithMetadata(resource+"_id", id)
	}
	return e
}

// NewForbidden creates an ownership violation error
func NewForbidden(action string) *AppError {
	return New(CodeForbidden, "Access forbidden",
		fmt.Sprintf("You don't have permission to %s", action))
}

// NewConflict creates a lost-CAS-race error
func NewConflict(resource string) *AppError {
	return New(CodeConflict, "Concurrent modification",
		fmt.Sprintf("The %s was modified by another request", resource)).
		WithMetadata("resource", resource)
}

// NewPreconditionFailed creates a precondition error
func NewPreconditionFailed(details string) *AppError {
	return New(CodePreconditionFailed, "Precondition failed", details)
}

// NewUpstream creates an upstream provider error
func NewUpstream(service string, cause error) *AppError {
	return New(CodeUpstream, "Upstream service unavailable",
		fmt.Sprintf("Failed to communicate with %s", service)).WithCause(cause)
}

// NewPartialResponse marks a stream that completed partially
func NewPartialResponse(details string) *AppError {
	return New(CodePartialResponse, "Response completed partially", details)
}

// NewTimeout creates a per-operation timeout error
func NewTimeout(operation string) *AppError {
	return New(CodeTimeout, "Operation timed out",
		fmt.Sprintf("%s exceeded its time limit", operation)).
		WithMetadata("operation", operation)
}

// NewInternal creates an internal error
func NewInternal(message string) *AppError {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return New(CodeInternal, message, "")
}

// Utility functions

// Wrap wraps an error as an internal error if it's not already an AppError
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	return NewInternal(message).WithCause(err)
}

// Is checks if an error carries a specific error code
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return CodeInternal
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails represents the error details in API responses
type ErrorDetails struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ToErrorResponse converts an AppError to an API error response
func ToErrorResponse(err *AppError, requestID string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetails{
			Code:      err.Code,
			Message:   err.Message,
			Details:   err.Details,
			Metadata:  err.Metadata,
			RequestID: requestID,
		},
	}
}
