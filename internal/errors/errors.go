// Package errors provides a standardized error handling framework for the
// fan-out services. It defines common error types, wrapping functions, and
// classification methods so handlers can map failures to distinct HTTP
// responses (validation vs. upstream vs. database) consistently.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Standard error types for the application
var (
	ErrValidation = errors.New("validation error")
	ErrUpstream   = errors.New("upstream error")
	ErrDatabase   = errors.New("database error")
	ErrConnection = errors.New("connection error")
	ErrRateLimit  = errors.New("rate limit error")
	ErrTimeout    = errors.New("timeout error")
	ErrInternal   = errors.New("internal error")
)

// errorType is a custom error with a specific type
type errorType struct {
	baseErr error
	msg     string
	cause   error
	details map[string]interface{}
	// Flag to indicate if the error is retryable
	retryable bool
}

type ErrorWithDetails interface {
	Error() string
	Details() map[string]interface{}
}

// Error implements the error interface
func (e *errorType) Error() string {
	if e == nil {
		return ""
	}

	base := fmt.Sprintf("%s: %s", e.baseErr.Error(), e.msg)

	if len(e.details) > 0 {
		detailsJSON, err := json.Marshal(e.details)
		if err == nil {
			base += fmt.Sprintf(" - details: %s", detailsJSON)
		}
	}

	if e.cause != nil {
		base += fmt.Sprintf(" - caused by: %v", e.cause)
	}

	return base
}

// Unwrap returns the underlying cause of the error
func (e *errorType) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether the error is of the specified type
func (e *errorType) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	return errors.Is(e.baseErr, target)
}

// Details returns the detail map attached to the error
func (e *errorType) Details() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.details
}

// NewValidationError creates a new validation error
func NewValidationError(msg string) error {
	return &errorType{
		baseErr:   ErrValidation,
		msg:       msg,
		retryable: false,
	}
}

// NewUpstreamError creates a new upstream error. Upstream errors represent a
// downstream dependency that was reached but answered with a failure.
func NewUpstreamError(msg string, cause error) error {
	return &errorType{
		baseErr:   ErrUpstream,
		msg:       msg,
		cause:     cause,
		retryable: true,
	}
}

// NewDatabaseError creates a new database error
func NewDatabaseError(msg string, cause error) error {
	return &errorType{
		baseErr:   ErrDatabase,
		msg:       msg,
		cause:     cause,
		retryable: false,
	}
}

// NewConnectionError creates a new connection error
func NewConnectionError(msg string) error {
	return &errorType{
		baseErr:   ErrConnection,
		msg:       msg,
		retryable: true,
	}
}

// NewRateLimitError creates a new rate limit error
func NewRateLimitError(msg string) error {
	return &errorType{
		baseErr:   ErrRateLimit,
		msg:       msg,
		retryable: true,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(msg string) error {
	return &errorType{
		baseErr:   ErrTimeout,
		msg:       msg,
		retryable: true,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(msg string) error {
	return &errorType{
		baseErr:   ErrInternal,
		msg:       msg,
		retryable: false,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}

	// Check if it's our custom type
	if customErr, ok := err.(*errorType); ok {
		return &errorType{
			baseErr:   customErr.baseErr,
			msg:       msg + ": " + customErr.msg,
			cause:     customErr.cause,
			details:   customErr.details,
			retryable: customErr.retryable,
		}
	}

	// If it's a standard error, wrap it as an internal error
	return &errorType{
		baseErr:   ErrInternal,
		msg:       msg,
		cause:     err,
		retryable: false,
	}
}

// Unwrap returns the wrapped error, following Go 1.13 error unwrapping convention
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// WithDetails adds detail information to an error
func WithDetails(err error, details map[string]interface{}) error {
	if err == nil {
		return nil
	}

	if customErr, ok := err.(*errorType); ok {
		return &errorType{
			baseErr:   customErr.baseErr,
			msg:       customErr.msg,
			cause:     customErr.cause,
			details:   details,
			retryable: customErr.retryable,
		}
	}

	return &errorType{
		baseErr:   ErrInternal,
		msg:       err.Error(),
		details:   details,
		retryable: false,
	}
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrValidation)
}

// IsUpstreamError checks if the error is an upstream error
func IsUpstreamError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrUpstream)
}

// IsDatabaseError checks if the error is a database error
func IsDatabaseError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrDatabase)
}

// IsConnectionError checks if the error is a connection error
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrConnection)
}

// IsRateLimitError checks if the error is a rate limit error
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRateLimit)
}

// IsTimeoutError checks if the error is a timeout error
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTimeout)
}

// IsInternalError checks if the error is an internal error
func IsInternalError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrInternal)
}

// IsRetryable checks if the error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	customErr, ok := err.(*errorType)
	if !ok {
		return false
	}

	return customErr.retryable
}

// Format returns a properly formatted error string
func Format(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// GetDetails returns error details if available, nil otherwise
func GetDetails(err error) map[string]interface{} {
	if err == nil {
		return nil
	}

	if detailedErr, ok := err.(ErrorWithDetails); ok {
		return detailedErr.Details()
	}

	return nil
}

// TypeOf returns the short classification name for an error, matching the
// error_type field of ErrorResponse.
func TypeOf(err error) string {
	switch {
	case IsValidationError(err):
		return "validation"
	case IsUpstreamError(err):
		return "upstream"
	case IsDatabaseError(err):
		return "database"
	case IsConnectionError(err):
		return "connection"
	case IsRateLimitError(err):
		return "rate_limit"
	case IsTimeoutError(err):
		return "timeout"
	default:
		return "internal"
	}
}

// StatusCode returns the HTTP status code an error should map to.
// Validation failures are the client's fault, an unreachable or failing
// downstream service surfaces as a gateway problem, and database failures
// stay a plain server error so operators can tell the two outages apart.
func StatusCode(err error) int {
	switch {
	case IsValidationError(err):
		return http.StatusBadRequest
	case IsUpstreamError(err), IsConnectionError(err):
		return http.StatusBadGateway
	case IsRateLimitError(err):
		return http.StatusTooManyRequests
	case IsTimeoutError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse provides a consistent structure for error responses
type ErrorResponse struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message"`
	ErrorType string                 `json:"error_type"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ToErrorResponse converts an error to a standardized ErrorResponse
func ToErrorResponse(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{
			Status:  "error",
			Message: "Unknown error",
		}
	}

	return ErrorResponse{
		Status:    "error",
		Message:   Format(err),
		ErrorType: TypeOf(err),
		Details:   GetDetails(err),
	}
}
