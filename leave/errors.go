/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these to HTTP statuses; the core only raises them.

ERROR CATEGORIES:
  1. Authentication/authorization - missing session, role lacks capability
  2. Validation - malformed input (bad dates, missing fields, length)
  3. Not found - unknown identifiers
  4. Conflict - duplicate identifiers, invalid state transitions

USAGE:
  Callers should test with errors.Is():

    if errors.Is(err, leave.ErrInvalidTransition) {
        // request already evaluated
    }

SEE ALSO:
  - service.go: Raises these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnauthenticated is returned when no valid session backs the call.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrForbidden is returned when the caller is authenticated but the
	// role lacks the capability, or the resource belongs to someone else.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned on malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced identifier does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on duplicate identifiers and state conflicts.
	ErrConflict = errors.New("conflict")

	// ErrInvalidTransition is returned when a request is transitioned out
	// of a non-pending state. A second evaluate on the same request fails
	// with this error and leaves state unchanged.
	ErrInvalidTransition = fmt.Errorf("%w: request is not pending", ErrConflict)

	// ErrDuplicateCategory is returned when a category id already exists.
	ErrDuplicateCategory = fmt.Errorf("%w: category id already exists", ErrConflict)

	// ErrCategoryInUse is returned when deleting a category that is still
	// referenced by existing requests. Deletion is hard-denied.
	ErrCategoryInUse = fmt.Errorf("%w: category referenced by existing requests", ErrConflict)

	// ErrDuplicateEmail is returned when registering an email that is taken.
	ErrDuplicateEmail = fmt.Errorf("%w: email already registered", ErrConflict)
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which input failed and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports which kind of entity was missing.
type NotFoundError struct {
	Kind string // "user", "category", "request"
	ID   int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ForbiddenError reports which action was denied for which caller.
type ForbiddenError struct {
	Action Action
	UserID int
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("user %d may not %s", e.UserID, e.Action)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnauthenticated)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
