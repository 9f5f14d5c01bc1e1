package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates an external dependency is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Pipeline-specific errors

var (
	// ErrSourceUnavailable indicates the upstream feed could not be reached
	// or returned a non-success payload
	ErrSourceUnavailable = errors.New("feed source unavailable")

	// ErrValidation indicates a provider response failed shape validation
	ErrValidation = errors.New("response validation failed")

	// ErrRetriesExhausted indicates a bounded retry budget ran out
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrRateLimitExceeded indicates the provider rate limit was hit
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// ValidationError carries the raw provider response alongside the reason,
// so a failed enrichment attempt stays diagnosable.
type ValidationError struct {
	Reason      string
	RawResponse string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.RawResponse != "" {
		return fmt.Sprintf("%s (raw response: %s)", e.Reason, e.RawResponse)
	}
	return e.Reason
}

// Unwrap marks every ValidationError as an ErrValidation
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a new validation error
func NewValidationError(reason, rawResponse string) *ValidationError {
	return &ValidationError{
		Reason:      reason,
		RawResponse: rawResponse,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
