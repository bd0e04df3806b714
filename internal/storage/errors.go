package storage

import (
	"errors"
	"fmt"
)

// ErrCodeIndexOutOfRange identifies IndexOutOfRangeError.
const ErrCodeIndexOutOfRange = "STORAGE_INDEX_OUT_OF_RANGE"

// ErrBuilderSealed is returned when a builder is used after OptimizeAndBuild.
var ErrBuilderSealed = errors.New("storage builder already built")

// ErrInvalidMultiplier is returned for row scales below 1.
var ErrInvalidMultiplier = errors.New("row scale multiplier must be at least 1")

// IndexOutOfRangeError reports an index outside a storage or builder.
// At runtime it signals a compilation defect, never bad user input.
type IndexOutOfRangeError struct {
	Index int
	Size  int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("%s: index %d out of range [0, %d)", ErrCodeIndexOutOfRange, e.Index, e.Size)
}

// Code returns ErrCodeIndexOutOfRange.
func (e *IndexOutOfRangeError) Code() string { return ErrCodeIndexOutOfRange }

// IsIndexOutOfRange reports whether err wraps an IndexOutOfRangeError.
func IsIndexOutOfRange(err error) bool {
	var oe *IndexOutOfRangeError
	return errors.As(err, &oe)
}
