/*
errors.go - Centralized error types for the planning engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages (supervision, rules, quota) wrap these errors with
  additional context using fmt.Errorf("...: %w", err).

ERROR CATEGORIES:
  1. Structural errors - Malformed input, rejected before any business logic
  2. State-conflict errors - Caller mistakes against persisted state
  3. Store errors - Database-level failures (not classified here)

BUSINESS FINDINGS ARE NOT ERRORS:
  An overlap, an exceeded room cap or a transfer over its limit is
  returned as data (supervision.Issue, quota.SimulationResult). Only
  structural and state-conflict problems travel as error values.

USAGE:
    if generic.IsClientError(err) {
        // 400
    }
    if errors.Is(err, generic.ErrAlreadyResolved) {
        // 409
    }

SEE ALSO:
  - api/handlers.go: Maps these errors to HTTP status codes
  - rules/resolver.go: State-conflict errors on resolution
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned when a request is structurally malformed:
	// a missing field, an unknown enum value, a non-positive quantity.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidPeriod is returned when a time period does not satisfy start < end.
	ErrInvalidPeriod = errors.New("invalid period: end not after start")

	// ErrNotFound is returned when a referenced entity cannot be fetched
	// or a derived conflict can no longer be re-derived.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyResolved is returned when a conflict already has a persisted resolution.
	ErrAlreadyResolved = errors.New("conflict already resolved")

	// ErrInvalidAction is returned when an operation cannot be applied as
	// requested, e.g. a resolution strategy without its required payload.
	ErrInvalidAction = errors.New("invalid action")

	// ErrDuplicateIdempotencyKey is returned when a write with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInsufficientBalance is returned when a committed transfer would
	// drive a balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInputError names the offending field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// InvalidInput builds an *InvalidInputError.
func InvalidInput(field, format string, args ...any) error {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InvalidActionError explains why an action was refused.
type InvalidActionError struct {
	Action string
	Reason string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action %q: %s", e.Action, e.Reason)
}

func (e *InvalidActionError) Unwrap() error {
	return ErrInvalidAction
}

// NotFoundError identifies the missing entity.
type NotFoundError struct {
	Kind string // e.g., "rule", "conflict", "transfer"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error reports a clash with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyResolved) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}
