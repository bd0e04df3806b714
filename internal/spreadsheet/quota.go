package spreadsheet

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts cell computations in one evaluation and enforces a
// maximum. Memoised reads are free; only first computations count.
//
// A QuotaEnforcer belongs to one Calculator and is not safe for concurrent
// use.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates an enforcer. maxSteps <= 0 means unlimited.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one step and fails once the limit is passed.
func (q *QuotaEnforcer) Check(sheet string) error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &StepsExceededError{Sheet: sheet, Steps: q.current, Limit: q.maxSteps}
	}
	return nil
}

// Current returns the number of steps taken.
func (q *QuotaEnforcer) Current() int { return q.current }

// MaxSteps returns the limit.
func (q *QuotaEnforcer) MaxSteps() int { return q.maxSteps }

// StepsExceededError is returned when an evaluation computes more cells than
// its quota allows.
type StepsExceededError struct {
	Sheet string
	Steps int
	Limit int
}

func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("%s: spreadsheet %s exceeded max steps quota: %d steps > %d limit",
		ErrCodeStepsExceeded, e.Sheet, e.Steps, e.Limit)
}

// Code returns ErrCodeStepsExceeded.
func (e *StepsExceededError) Code() string { return ErrCodeStepsExceeded }

// IsStepsExceeded reports whether err wraps a StepsExceededError.
func IsStepsExceeded(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
