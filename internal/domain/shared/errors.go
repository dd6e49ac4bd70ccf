// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies
// besides uuid parsing.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidID       = errors.New("invalid ID")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progression", "goal", "assessment"
	Op      string // Operation that failed, e.g., "LevelFromTotalXP"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// InvalidArgument is a shorthand for the most common core failure.
func InvalidArgument(domain, op, format string, args ...interface{}) *DomainError {
	return NewDomainError(domain, op, ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Progression domain errors
var (
	ErrProgressNotFound = NewDomainError("progression", "Find", ErrNotFound, "progression state not found")
	ErrVersionConflict  = NewDomainError("progression", "ApplyGrant", ErrConcurrentModification, "progression state was modified concurrently")
)

// Goal domain errors
var (
	ErrGoalNotFound         = NewDomainError("goal", "Find", ErrNotFound, "goal not found")
	ErrGoalAlreadyCompleted = NewDomainError("goal", "Complete", ErrInvalidState, "goal already completed")
	ErrGoalNotOwned         = NewDomainError("goal", "Authorize", ErrForbidden, "goal belongs to another user")
)

// Challenge domain errors
var (
	ErrChallengeNotFound         = NewDomainError("challenge", "Find", ErrNotFound, "challenge not found")
	ErrChallengeAlreadyCompleted = NewDomainError("challenge", "Complete", ErrAlreadyExists, "challenge already completed today")
)

// Companion domain errors
var (
	ErrCompanionProfileNotFound = NewDomainError("companion", "Find", ErrNotFound, "companion profile not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInvalidArgument reports whether err is an argument validation failure.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConflict reports whether err represents a state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrStateTransition) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
