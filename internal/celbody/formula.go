package celbody

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/google/cel-go/cel"

	"github.com/izubarev/openl-tablets-sub004/internal/method"
	"github.com/izubarev/openl-tablets-sub004/internal/spreadsheet"
)

// Formula is a spreadsheet cell body. Besides the method parameters it sees
// named references to other cells of the same grid.
type Formula struct {
	name     string
	expr     string
	params   []string
	refs     map[string]spreadsheet.Coord
	refNames []string
	prg      cel.Program
}

// Formula compiles a cell formula. refs maps variable names to the cells
// they read.
func (c *Compiler) Formula(name, expr string, params []string, refs map[string]spreadsheet.Coord) (*Formula, error) {
	refNames := slices.Sorted(maps.Keys(refs))
	for _, r := range refNames {
		if slices.Contains(params, r) {
			return nil, fmt.Errorf("formula %s: reference %q shadows a parameter", name, r)
		}
	}
	prg, err := c.program(expr, append(slices.Clone(params), refNames...))
	if err != nil {
		return nil, fmt.Errorf("formula %s: %w", name, err)
	}
	return &Formula{
		name:     name,
		expr:     expr,
		params:   slices.Clone(params),
		refs:     maps.Clone(refs),
		refNames: refNames,
		prg:      prg,
	}, nil
}

// References lists the referenced cells in reference-name order.
func (f *Formula) References() []spreadsheet.Coord {
	out := make([]spreadsheet.Coord, len(f.refNames))
	for i, r := range f.refNames {
		out[i] = f.refs[r]
	}
	return out
}

// Evaluate implements method.Body. env must be the spreadsheet.CellEnv a
// Calculator passes to its formulas.
func (f *Formula) Evaluate(ctx context.Context, target any, args []any, env method.Env) (any, error) {
	cells, ok := env.(spreadsheet.CellEnv)
	if !ok {
		return nil, &method.ExecutionError{Method: f.name, Err: fmt.Errorf("formula evaluated outside a spreadsheet")}
	}
	a := newActivation(target, env)
	a.bind(f.params, args)
	for name, at := range f.refs {
		a.lazy[name] = func() (any, error) {
			return cells.Cell(at.Row, at.Col)
		}
	}
	return eval(ctx, f.name, f.prg, a)
}
