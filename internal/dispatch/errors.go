package dispatch

import (
	"errors"
	"fmt"
)

// Error values for analyzer webhook delivery
var (
	// EDispatchRateLimit indicates the analyzer throttled the request (429)
	EDispatchRateLimit = errors.New("analyzer rate limit exceeded")

	// EDispatchTimeout indicates the analyzer timed out (408 or client timeout)
	EDispatchTimeout = errors.New("analyzer request timed out")

	// EDispatchUnavailable indicates a network failure or a 5xx response
	EDispatchUnavailable = errors.New("analyzer temporarily unavailable")

	// EDispatchUnauthorized indicates the analyzer refused our credentials (401/403)
	EDispatchUnauthorized = errors.New("analyzer authentication failed")

	// EDispatchRejected indicates any other non-2xx response
	EDispatchRejected = errors.New("analyzer rejected the request")
)

// IsRetryable returns true if the error is a transient delivery failure
func IsRetryable(err error) bool {
	return errors.Is(err, EDispatchRateLimit) ||
		errors.Is(err, EDispatchTimeout) ||
		errors.Is(err, EDispatchUnavailable)
}

// StatusError carries the analyzer's HTTP status alongside the sentinel.
type StatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v (status %d)", e.Err, e.StatusCode)
	}
	return fmt.Sprintf("%v (status %d): %s", e.Err, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}
