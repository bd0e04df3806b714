package spreadsheet

import (
	"context"
	"fmt"
	"slices"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
	"github.com/izubarev/openl-tablets-sub004/internal/method"
)

// Coord is a zero-based (row, column) cell coordinate.
type Coord = ir.Coord

// Cell is one authored cell: a constant Value or a Formula. Formula bodies
// receive a CellEnv as their env and read other cells through it.
type Cell struct {
	Coord   Coord
	Value   any
	Formula method.Body
}

// Spreadsheet is an immutable cell grid used as a method body.
type Spreadsheet struct {
	name     string
	rows     int
	cols     int
	rowNames []string
	colNames []string
	cells    []Cell // row-major, len rows*cols
	result   ResultBuilder
	maxSteps int
}

// Option configures a Spreadsheet.
type Option func(*Spreadsheet)

// WithNames labels rows and columns.
func WithNames(rowNames, colNames []string) Option {
	return func(s *Spreadsheet) {
		s.rowNames = slices.Clone(rowNames)
		s.colNames = slices.Clone(colNames)
	}
}

// WithMaxSteps bounds the number of cell computations per evaluation. A
// limit carried by the evaluation context takes precedence.
func WithMaxSteps(n int) Option {
	return func(s *Spreadsheet) {
		s.maxSteps = n
	}
}

// New builds a spreadsheet. Cells not listed are empty (nil). A nil result
// builder returns the whole grid.
func New(name string, rows, cols int, cells []Cell, result ResultBuilder, opts ...Option) (*Spreadsheet, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("spreadsheet %s: grid must be at least 1x1, got %dx%d", name, rows, cols)
	}
	s := &Spreadsheet{
		name:   name,
		rows:   rows,
		cols:   cols,
		cells:  make([]Cell, rows*cols),
		result: result,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.result == nil {
		s.result = GridResultBuilder{}
	}
	if len(s.rowNames) > 0 && len(s.rowNames) != rows {
		return nil, fmt.Errorf("spreadsheet %s: %d row names for %d rows", name, len(s.rowNames), rows)
	}
	if len(s.colNames) > 0 && len(s.colNames) != cols {
		return nil, fmt.Errorf("spreadsheet %s: %d column names for %d columns", name, len(s.colNames), cols)
	}

	seen := make(map[Coord]bool, len(cells))
	for _, c := range cells {
		if !s.inRange(c.Coord) {
			return nil, fmt.Errorf("spreadsheet %s: %w: %s in %dx%d grid", name, ErrCellOutOfRange, c.Coord, rows, cols)
		}
		if seen[c.Coord] {
			return nil, fmt.Errorf("spreadsheet %s: cell %s defined twice", name, c.Coord)
		}
		seen[c.Coord] = true
		s.cells[s.offset(c.Coord)] = c
	}
	for i := range s.cells {
		s.cells[i].Coord = Coord{Row: i / cols, Col: i % cols}
	}
	return s, nil
}

func (s *Spreadsheet) Name() string { return s.name }
func (s *Spreadsheet) Rows() int    { return s.rows }
func (s *Spreadsheet) Cols() int    { return s.cols }

// RowNames returns the row labels, if any.
func (s *Spreadsheet) RowNames() []string { return slices.Clone(s.rowNames) }

// ColNames returns the column labels, if any.
func (s *Spreadsheet) ColNames() []string { return slices.Clone(s.colNames) }

// Cell returns the authored cell at c.
func (s *Spreadsheet) Cell(c Coord) (Cell, bool) {
	if !s.inRange(c) {
		return Cell{}, false
	}
	return s.cells[s.offset(c)], true
}

// Find returns the coordinate of a named row and column.
func (s *Spreadsheet) Find(row, col string) (Coord, bool) {
	r := slices.Index(s.rowNames, row)
	c := slices.Index(s.colNames, col)
	if r < 0 || c < 0 {
		return Coord{}, false
	}
	return Coord{Row: r, Col: c}, true
}

// Evaluate implements method.Body: a fresh Calculator per call, then the
// result builder.
func (s *Spreadsheet) Evaluate(ctx context.Context, target any, args []any, env method.Env) (any, error) {
	calc := NewCalculator(ctx, s, target, args, env)
	return s.result.BuildResult(calc)
}

func (s *Spreadsheet) inRange(c Coord) bool {
	return c.Row >= 0 && c.Row < s.rows && c.Col >= 0 && c.Col < s.cols
}

func (s *Spreadsheet) offset(c Coord) int {
	return c.Row*s.cols + c.Col
}

type stepLimitKey struct{}

// WithStepLimit returns ctx carrying a per-evaluation step limit.
func WithStepLimit(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, stepLimitKey{}, n)
}

func stepLimitFrom(ctx context.Context) (int, bool) {
	n, ok := ctx.Value(stepLimitKey{}).(int)
	return n, ok
}
