package shared

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// NotFoundError reports that an aggregate with the requested id does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

// NewNotFoundError creates a NotFoundError for the aggregate kind and id.
func NewNotFoundError(kind string, id fmt.Stringer) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id.String()}
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports malformed input rejected before any state mutation.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// InvalidTransitionError reports an operation that the aggregate's state
// machine does not allow from its current state. The aggregate is unchanged.
type InvalidTransitionError struct {
	Aggregate string
	ID        string
	From      string
	Operation string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s %s %s in state %s", e.Operation, e.Aggregate, e.ID, e.From)
}

// IsStateConflict reports whether err is one of the state-conflict errors an
// aggregate raises when a requested transition violates its rules.
func IsStateConflict(err error) bool {
	var sc interface{ StateConflict() }
	if errors.As(err, &sc) {
		return true
	}
	var it *InvalidTransitionError
	return errors.As(err, &it)
}
