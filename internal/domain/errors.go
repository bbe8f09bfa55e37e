package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID      = "invalid"           // Invalid input or validation failure
	EMISSINGPARAM = "missing_parameter" // Required parameter absent
	EUNAUTHORIZED = "unauthorized"      // Authentication required or credential mismatch
	EFORBIDDEN    = "forbidden"         // Permission denied
	ENOTFOUND     = "not_found"         // Resource not found (or not owned by caller)
	ECONFLICT     = "conflict"          // Resource conflict
	ETOOLARGE     = "too_large"         // Request entity too large
	ERATELIMIT    = "rate_limit"        // Rate limit exceeded
	EQUOTA        = "quota_exceeded"    // Plan usage limit reached
	EPERSISTENCE  = "persistence"       // Record store read/write failure
	EDISPATCH     = "dispatch_failed"   // Analyzer dispatch failure (never surfaced synchronously)
	ETIMEOUT      = "timeout"           // Client-side polling timeout
	EANALYZER     = "analyzer_error"    // Malformed or unexpected analyzer payload
	EINTERNAL     = "internal"          // Internal server error
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "analysis.submit")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return EINVALID
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case EINTERNAL:
			return "An internal error occurred. Please try again later."
		case EPERSISTENCE:
			return "The record store is temporarily unavailable. Please try again."
		}
		return e.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return "Validation failed"
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// MissingParameter reports a required request parameter that was absent.
func MissingParameter(op, name string) *Error {
	return &Error{
		Code:    EMISSINGPARAM,
		Op:      op,
		Message: fmt.Sprintf("%s is required", name),
	}
}

// Unauthorized creates an authentication error.
func Unauthorized(op, message string) *Error {
	return &Error{
		Code:    EUNAUTHORIZED,
		Op:      op,
		Message: message,
	}
}

// TooLarge creates a payload size error.
func TooLarge(op, message string) *Error {
	return &Error{
		Code:    ETOOLARGE,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Persistence wraps a record store failure.
func Persistence(err error, op, message string) *Error {
	return &Error{
		Code:    EPERSISTENCE,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// RateLimit creates a rate limit error.
func RateLimit(op string) *Error {
	return &Error{
		Code:    ERATELIMIT,
		Op:      op,
		Message: "Too many requests. Please try again later.",
	}
}

// QuotaExceeded reports that the caller's plan limit has been reached.
func QuotaExceeded(op string, quotaType QuotaType, used, limit int64) *Error {
	return &Error{
		Code:    EQUOTA,
		Op:      op,
		Message: fmt.Sprintf("Free plan %s limit reached (%d of %d used). Upgrade to premium to continue.", quotaType, used, limit),
	}
}

// Timeout reports that a wait exceeded its deadline.
func Timeout(op, message string) *Error {
	return &Error{
		Code:    ETIMEOUT,
		Op:      op,
		Message: message,
	}
}

// AnalyzerError reports a malformed or unexpected analyzer payload.
func AnalyzerError(err error, op, message string) *Error {
	return &Error{
		Code:    EANALYZER,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents field-level validation errors.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed", e.Op)
}

// NewValidationError creates a new validation error with the first field error.
func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{
		Op: op,
		Fields: map[string]string{
			field: message,
		},
	}
}
