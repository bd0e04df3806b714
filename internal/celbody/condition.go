package celbody

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/cel-go/cel"

	"github.com/izubarev/openl-tablets-sub004/internal/method"
)

// Condition is a decision table condition column written in CEL. It sees
// the method parameters and the row's cells of its column by name, and
// must yield a bool.
type Condition struct {
	name   string
	params []string
	cells  []string
	prg    cel.Program
}

// Condition compiles a condition column expression.
func (c *Compiler) Condition(name, expr string, params, cells []string) (*Condition, error) {
	for _, cell := range cells {
		if slices.Contains(params, cell) {
			return nil, fmt.Errorf("condition %s: cell %q shadows a parameter", name, cell)
		}
	}
	prg, err := c.program(expr, append(slices.Clone(params), cells...))
	if err != nil {
		return nil, fmt.Errorf("condition %s: %w", name, err)
	}
	return &Condition{name: name, params: slices.Clone(params), cells: slices.Clone(cells), prg: prg}, nil
}

// Match evaluates the condition for one row.
func (c *Condition) Match(ctx context.Context, args []any, cells []any) (bool, error) {
	a := newActivation(nil, nil)
	a.bind(c.params, args)
	a.bind(c.cells, cells)
	out, err := eval(ctx, c.name, c.prg, a)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, &method.ExecutionError{Method: c.name, Err: fmt.Errorf("condition must return bool, got %T", out)}
	}
	return b, nil
}
