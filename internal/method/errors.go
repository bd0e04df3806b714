package method

import (
	"errors"
	"fmt"
)

// ErrCodeExecution identifies rule-logic failures raised by bodies.
const ErrCodeExecution = "EXECUTION"

// ExecutionError is a rule-logic failure raised by a method body.
// The Invoker passes it to the caller unchanged.
type ExecutionError struct {
	Method string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("execution failed: %v", e.Err)
	}
	return fmt.Sprintf("execution of %s failed: %v", e.Method, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Code returns ErrCodeExecution.
func (e *ExecutionError) Code() string { return ErrCodeExecution }

// IsExecutionError reports whether err wraps an ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
