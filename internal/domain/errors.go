package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound signals that no provider produced data for any candidate
// symbol. Recoverable inside the provider chain (try the next candidate),
// surfaced as 404 once the chain is exhausted.
var ErrNotFound = errors.New("symbol not found")

// RateLimitedError signals the upstream rate-limit signature: the provider
// served a non-JSON body (typically an HTML error page) where JSON was
// expected. It escalates immediately - the chain aborts, the circuit breaker
// trips, and the caller gets a 429/503 with the remaining wait.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s is rate limiting requests, retry in %ds", e.Provider, int(e.RetryAfter.Seconds()))
	}
	return fmt.Sprintf("%s is rate limiting requests", e.Provider)
}

// IsRateLimited reports whether err carries the rate-limit signature.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// ValidationError signals malformed caller input (bad or inverted date
// range, empty ticker). It never reaches upstream and maps to 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is caller-input related.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// UpstreamError wraps any other provider failure. The chain records it and
// keeps going; if all candidates are exhausted it maps to 500 with the last
// provider's message.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
