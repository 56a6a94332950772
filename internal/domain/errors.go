package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that a provider rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that an external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation exceeded its per-call timeout.
	ErrTimeout = errors.New("operation timed out")

	// ErrCacheBackend indicates that a cache tier backend failed. Callers
	// degrade to the remaining tiers rather than failing.
	ErrCacheBackend = errors.New("cache backend unavailable")

	// ErrEmptyMergeInput indicates that a merge was attempted on an empty
	// record set. This is an invariant violation the immediate caller must
	// handle; it is never swallowed.
	ErrEmptyMergeInput = errors.New("empty merge input")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     Source
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ProviderError describes a failure from one external metadata provider:
// a network failure, an HTTP error status, or a malformed payload. It is
// swallowed at the aggregation boundary and contributes zero records.
type ProviderError struct {
	Source     Source
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (status %d): %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s provider error: %s", e.Source, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// PipelineError wraps an unexpected failure in orchestration logic itself.
// It propagates to the HTTP boundary as a single failed response.
type PipelineError struct {
	Stage string
	Cause error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("search pipeline failed at %s: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new ProviderError.
func NewProviderError(source Source, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source Source, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}
