// Package core defines the error taxonomy shared by the engine services.
package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks validation failures. Always surfaced to the
	// caller, never silently corrected.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")
	// ErrStateTransition marks an illegal lifecycle transition.
	ErrStateTransition = errors.New("illegal state transition")
	// ErrExternalSource marks a failed call to an external collaborator.
	// Price fetch failures are recovered internally and never surface
	// past the pricing service.
	ErrExternalSource = errors.New("external source failure")
)

// NewValidationError builds a field-scoped validation error wrapping
// ErrInvalidInput.
func NewValidationError(field, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, reason)
}

// RequiredError reports a missing required field.
func RequiredError(field string) error {
	return NewValidationError(field, "is required")
}

// NewNotFoundError builds a typed not-found error.
func NewNotFoundError(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s", ErrNotFound, kind)
	}
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

// NewStateTransitionError reports a rejected lifecycle transition.
func NewStateTransitionError(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrStateTransition, from, to)
}

// IsValidationError reports whether err wraps ErrInvalidInput.
func IsValidationError(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsStateTransition reports whether err wraps ErrStateTransition.
func IsStateTransition(err error) bool { return errors.Is(err, ErrStateTransition) }
