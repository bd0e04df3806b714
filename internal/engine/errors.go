package engine

import (
	"context"
	"errors"
)

// Codes for errors that carry no code of their own.
const (
	ErrCodeCanceled         = "CANCELED"
	ErrCodeDeadlineExceeded = "DEADLINE_EXCEEDED"
	ErrCodeUnknown          = "UNKNOWN"
)

// coder is implemented by every typed error of the engine packages.
type coder interface {
	Code() string
}

// ErrorCode returns the stable code of err, searching its wrap chain.
// nil yields "".
//
// The outermost coded error wins, so an ExecutionError wrapping a cast
// failure reports EXECUTION.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ErrCodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeDeadlineExceeded
	}
	return ErrCodeUnknown
}

// ReplayMismatchError is returned by Replay when at least one journaled call
// no longer reproduces.
type ReplayMismatchError struct {
	Mismatches []Mismatch
}

func (e *ReplayMismatchError) Error() string {
	if len(e.Mismatches) == 1 {
		return "replay mismatch: " + e.Mismatches[0].String()
	}
	return "replay mismatch: " + e.Mismatches[0].String() + " (and more)"
}

// Code returns ErrCodeReplayMismatch.
func (e *ReplayMismatchError) Code() string { return ErrCodeReplayMismatch }

// ErrCodeReplayMismatch identifies ReplayMismatchError.
const ErrCodeReplayMismatch = "REPLAY_MISMATCH"

// IsReplayMismatch reports whether err wraps a ReplayMismatchError.
func IsReplayMismatch(err error) bool {
	var re *ReplayMismatchError
	return errors.As(err, &re)
}
