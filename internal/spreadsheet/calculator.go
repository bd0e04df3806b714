package spreadsheet

import (
	"context"
	"fmt"

	"github.com/izubarev/openl-tablets-sub004/internal/method"
)

type cellState uint8

const (
	statePending cellState = iota
	stateInProgress
	stateDone
)

// Calculator evaluates one spreadsheet for one call. Each cell is computed
// at most once; later reads return the memoised value or error.
//
// A Calculator belongs to a single evaluation and is not safe for
// concurrent use.
type Calculator struct {
	ctx    context.Context
	sheet  *Spreadsheet
	target any
	args   []any
	env    method.Env
	quota  *QuotaEnforcer

	state  []cellState
	values []any
	errs   []error
	stack  []Coord
}

// NewCalculator creates a calculator for one evaluation.
func NewCalculator(ctx context.Context, sheet *Spreadsheet, target any, args []any, env method.Env) *Calculator {
	if env == nil {
		env = method.EmptyEnv
	}
	limit := sheet.maxSteps
	if n, ok := stepLimitFrom(ctx); ok {
		limit = n
	}
	n := sheet.rows * sheet.cols
	return &Calculator{
		ctx:    ctx,
		sheet:  sheet,
		target: target,
		args:   args,
		env:    env,
		quota:  NewQuotaEnforcer(limit),
		state:  make([]cellState, n),
		values: make([]any, n),
		errs:   make([]error, n),
	}
}

// Sheet returns the spreadsheet being evaluated.
func (c *Calculator) Sheet() *Spreadsheet { return c.sheet }

// Steps returns the number of cells computed so far.
func (c *Calculator) Steps() int { return c.quota.Current() }

// GetValue returns the value of one cell, computing it on first read.
func (c *Calculator) GetValue(row, col int) (any, error) {
	at := Coord{Row: row, Col: col}
	if !c.sheet.inRange(at) {
		return nil, fmt.Errorf("%w: %s in %dx%d grid", ErrCellOutOfRange, at, c.sheet.rows, c.sheet.cols)
	}
	i := c.sheet.offset(at)

	switch c.state[i] {
	case stateDone:
		return c.values[i], c.errs[i]
	case stateInProgress:
		return nil, c.circular(at)
	}

	if err := c.ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.quota.Check(c.sheet.name); err != nil {
		return nil, err
	}

	c.state[i] = stateInProgress
	c.stack = append(c.stack, at)
	v, err := c.compute(c.sheet.cells[i])
	c.stack = c.stack[:len(c.stack)-1]

	c.state[i] = stateDone
	c.values[i], c.errs[i] = v, err
	return v, err
}

// GetValues computes every cell in row-major order and returns the grid.
// The first cell error aborts the walk.
func (c *Calculator) GetValues() ([][]any, error) {
	grid := make([][]any, c.sheet.rows)
	for r := range grid {
		grid[r] = make([]any, c.sheet.cols)
		for col := range grid[r] {
			v, err := c.GetValue(r, col)
			if err != nil {
				return nil, err
			}
			grid[r][col] = v
		}
	}
	return grid, nil
}

func (c *Calculator) compute(cell Cell) (any, error) {
	if cell.Formula == nil {
		return cell.Value, nil
	}
	return cell.Formula.Evaluate(c.ctx, c.target, c.args, cellEnv{calc: c, base: c.env})
}

// circular builds the cycle from the in-progress stack: every coordinate
// from the first visit of at up to the current cell, then at again.
func (c *Calculator) circular(at Coord) error {
	start := 0
	for i, x := range c.stack {
		if x == at {
			start = i
			break
		}
	}
	cycle := make([]Coord, 0, len(c.stack)-start+1)
	cycle = append(cycle, c.stack[start:]...)
	cycle = append(cycle, at)
	return &CircularReferenceError{Sheet: c.sheet.name, Cycle: cycle}
}

// CellEnv is the env formula bodies are evaluated with. Besides the call's
// properties it exposes the other cells of the grid.
type CellEnv interface {
	method.Env
	Cell(row, col int) (any, error)
}

type cellEnv struct {
	calc *Calculator
	base method.Env
}

func (e cellEnv) Lookup(name string) (any, bool) { return e.base.Lookup(name) }

func (e cellEnv) Cell(row, col int) (any, error) { return e.calc.GetValue(row, col) }

// Keys lists the call's property names when the base env can.
func (e cellEnv) Keys() []string {
	if keyed, ok := e.base.(method.KeyedEnv); ok {
		return keyed.Keys()
	}
	return nil
}
