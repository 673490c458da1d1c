// Package apperr holds the error taxonomy shared by every engine component.
// Category sentinels are matched with errors.Is; specific errors wrap a category.
package apperr

import (
	"errors"
	"fmt"
)

// Categories.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrAtBoundary = errors.New("at boundary")
	ErrDegraded   = errors.New("degraded mode")
)

// Specific errors.
var (
	ErrOutOfRange      = fmt.Errorf("%w: out of range", ErrValidation)
	ErrEmpty           = fmt.Errorf("%w: cuelist has no cues", ErrValidation)
	ErrNoValidFixtures = fmt.Errorf("%w: no valid fixtures", ErrValidation)
	ErrUnknownKind     = fmt.Errorf("%w: unknown kind", ErrValidation)
	ErrInvalidState    = fmt.Errorf("%w: invalid state", ErrValidation)
)

// Kind returns the wire name of the error category.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	case errors.Is(err, ErrAtBoundary):
		return "AtBoundary"
	case errors.Is(err, ErrDegraded):
		return "DegradedMode"
	}
	return "Internal"
}

// NotFound builds a NotFound error naming the missing entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %q: %w", entity, id, ErrNotFound)
}

// OutOfRange builds an OutOfRange error for a named field.
func OutOfRange(field string, value interface{}, lo, hi interface{}) error {
	return fmt.Errorf("%s %v not in [%v, %v]: %w", field, value, lo, hi, ErrOutOfRange)
}
