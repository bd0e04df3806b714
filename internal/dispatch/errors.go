package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes.
const (
	ErrCodeNoApplicableMethod = "NO_APPLICABLE_METHOD"
	ErrCodeAmbiguousMethod    = "AMBIGUOUS_METHOD"
	ErrCodeDispatchCycle      = "DISPATCH_CYCLE"
)

// NoApplicableMethodError means no candidate accepts the call. Callers may
// treat it as "rule not defined for this input".
type NoApplicableMethodError struct {
	Method string

	// ArgTypes is the runtime type signature of the call.
	ArgTypes []string

	// Candidates is the number of candidates that were considered.
	Candidates int
}

func (e *NoApplicableMethodError) Error() string {
	return fmt.Sprintf("%s: no applicable method %s(%s) among %d candidates",
		ErrCodeNoApplicableMethod, e.Method, strings.Join(e.ArgTypes, ","), e.Candidates)
}

// Code returns ErrCodeNoApplicableMethod.
func (e *NoApplicableMethodError) Code() string { return ErrCodeNoApplicableMethod }

// AmbiguousMethodError means two or more candidates tie for the call.
type AmbiguousMethodError struct {
	Method   string
	ArgTypes []string

	// Candidates are the signatures of the tied descriptors.
	Candidates []string
}

func (e *AmbiguousMethodError) Error() string {
	return fmt.Sprintf("%s: call %s(%s) is ambiguous between %s",
		ErrCodeAmbiguousMethod, e.Method, strings.Join(e.ArgTypes, ","), strings.Join(e.Candidates, " and "))
}

// Code returns ErrCodeAmbiguousMethod.
func (e *AmbiguousMethodError) Code() string { return ErrCodeAmbiguousMethod }

// CycleError reports method names that include each other through Extend.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: methods include each other: %s", ErrCodeDispatchCycle, strings.Join(e.Path, " -> "))
}

// Code returns ErrCodeDispatchCycle.
func (e *CycleError) Code() string { return ErrCodeDispatchCycle }

// IsNoApplicableMethod reports whether err wraps a NoApplicableMethodError.
func IsNoApplicableMethod(err error) bool {
	var ne *NoApplicableMethodError
	return errors.As(err, &ne)
}

// IsAmbiguousMethod reports whether err wraps an AmbiguousMethodError.
func IsAmbiguousMethod(err error) bool {
	var ae *AmbiguousMethodError
	return errors.As(err, &ae)
}
