package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier means the caller supplied a malformed id; no
	// store lookup was attempted.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrNotFound means the id parsed but no entity matched it.
	ErrNotFound = errors.New("not found")
	// ErrSlotConflict means an active appointment already occupies the slot.
	ErrSlotConflict = errors.New("time slot already booked")
	// ErrProjectRequired means a follow-up appointment was given no project.
	ErrProjectRequired = errors.New("project-follow-up appointments require a project")
	// ErrIdentityRequired means neither a registered user nor a guest
	// contact was supplied.
	ErrIdentityRequired = errors.New("a registered user or guest contact is required")
	// ErrReferenceInconsistency is internal: an owner list could not be
	// reconciled with the owning fields. Logged, never user-facing.
	ErrReferenceInconsistency = errors.New("owner reference lists out of sync")
	// ErrEmailTaken means a user with that email already exists.
	ErrEmailTaken = errors.New("email already registered")
)

// ValidationError reports an enum or format violation on a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
