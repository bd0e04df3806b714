package spreadsheet

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes.
const (
	ErrCodeCircularReference = "CIRCULAR_REFERENCE"
	ErrCodeTypeCast          = "TYPE_CAST"
	ErrCodeStepsExceeded     = "STEPS_EXCEEDED"
)

// ErrCellOutOfRange is returned for coordinates outside the grid.
var ErrCellOutOfRange = errors.New("cell out of range")

// CircularReferenceError reports cells that depend on themselves. Cycle
// starts and ends at the same coordinate, e.g. [R0C0 R0C1 R0C0].
type CircularReferenceError struct {
	Sheet string
	Cycle []Coord
}

func (e *CircularReferenceError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, c := range e.Cycle {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s: circular reference in %s: %s", ErrCodeCircularReference, e.Sheet, strings.Join(parts, " -> "))
}

// Code returns ErrCodeCircularReference.
func (e *CircularReferenceError) Code() string { return ErrCodeCircularReference }

// Contains reports whether c is part of the cycle.
func (e *CircularReferenceError) Contains(c Coord) bool {
	for _, x := range e.Cycle {
		if x == c {
			return true
		}
	}
	return false
}

// TypeCastError reports a result cell whose value cannot be converted to
// the declared type.
type TypeCastError struct {
	Coord  Coord
	Target string
	Value  any
}

func (e *TypeCastError) Error() string {
	return fmt.Sprintf("%s: cell %s value %v (%T) cannot be cast to %s", ErrCodeTypeCast, e.Coord, e.Value, e.Value, e.Target)
}

// Code returns ErrCodeTypeCast.
func (e *TypeCastError) Code() string { return ErrCodeTypeCast }

// IsCircularReference reports whether err wraps a CircularReferenceError.
func IsCircularReference(err error) bool {
	var ce *CircularReferenceError
	return errors.As(err, &ce)
}

// IsTypeCast reports whether err wraps a TypeCastError.
func IsTypeCast(err error) bool {
	var te *TypeCastError
	return errors.As(err, &te)
}
