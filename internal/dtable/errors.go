package dtable

import (
	"errors"
	"fmt"
	"strings"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
)

// NoMatchError reports that no row of a table matched the call. Tables
// return it wrapped in method.ExecutionError since it is a rule-logic
// outcome.
type NoMatchError struct {
	Table    string
	ArgTypes []string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no rule in table %s matches (%s)", e.Table, strings.Join(e.ArgTypes, ","))
}

// IsNoMatch reports whether err wraps a NoMatchError.
func IsNoMatch(err error) bool {
	var ne *NoMatchError
	return errors.As(err, &ne)
}

func argTypes(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = ir.TypeOf(a)
	}
	return out
}
