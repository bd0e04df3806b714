package celbody

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/cel-go/cel"

	"github.com/izubarev/openl-tablets-sub004/internal/method"
)

// Expression is a method body written as one CEL expression over the
// method's parameters.
type Expression struct {
	name   string
	expr   string
	params []string
	prg    cel.Program
}

// Expression compiles a method body. params are the parameter names in
// declaration order.
func (c *Compiler) Expression(name, expr string, params []string) (*Expression, error) {
	prg, err := c.program(expr, params)
	if err != nil {
		return nil, fmt.Errorf("method %s: %w", name, err)
	}
	return &Expression{name: name, expr: expr, params: slices.Clone(params), prg: prg}, nil
}

// Source returns the expression text.
func (e *Expression) Source() string { return e.expr }

// Evaluate implements method.Body.
func (e *Expression) Evaluate(ctx context.Context, target any, args []any, env method.Env) (any, error) {
	a := newActivation(target, env)
	a.bind(e.params, args)
	return eval(ctx, e.name, e.prg, a)
}
