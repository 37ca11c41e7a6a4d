package plan

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a course has no plan for the requested week.
var ErrNotFound = errors.New("plan not found")

// ValidationError reports malformed caller input. It is always surfaced.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// PersistenceError is a storage failure that survived one retry.
type PersistenceError struct {
	Op   string
	Week int
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Week > 0 {
		return fmt.Sprintf("%s week %d: %v", e.Op, e.Week, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
