package spreadsheet

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izubarev/openl-tablets-sub004/internal/method"
)

// formula is a test body that reads cells through CellEnv and records its
// references for static analysis.
type formula struct {
	refs []Coord
	fn   func(env CellEnv, args []any) (any, error)
}

func (f formula) Evaluate(_ context.Context, _ any, args []any, env method.Env) (any, error) {
	return f.fn(env.(CellEnv), args)
}

func (f formula) References() []Coord { return f.refs }

// sum adds the given cells.
func sum(cells ...Coord) formula {
	return formula{refs: cells, fn: func(env CellEnv, _ []any) (any, error) {
		var total int64
		for _, c := range cells {
			v, err := env.Cell(c.Row, c.Col)
			if err != nil {
				return nil, err
			}
			total += v.(int64)
		}
		return total, nil
	}}
}

func at(r, c int) Coord { return Coord{Row: r, Col: c} }

func mustSheet(t *testing.T, rows, cols int, cells []Cell, result ResultBuilder, opts ...Option) *Spreadsheet {
	t.Helper()
	s, err := New("test", rows, cols, cells, result, opts...)
	require.NoError(t, err)
	return s
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_Validation(t *testing.T) {
	_, err := New("s", 0, 1, nil, nil)
	require.Error(t, err)

	_, err = New("s", 1, 1, []Cell{{Coord: at(1, 0)}}, nil)
	assert.ErrorIs(t, err, ErrCellOutOfRange)

	_, err = New("s", 1, 1, []Cell{{Coord: at(0, 0)}, {Coord: at(0, 0)}}, nil)
	assert.ErrorContains(t, err, "defined twice")

	_, err = New("s", 2, 1, nil, nil, WithNames([]string{"only"}, nil))
	assert.ErrorContains(t, err, "row names")
}

func TestSpreadsheet_Find(t *testing.T) {
	s := mustSheet(t, 2, 2, nil, nil, WithNames([]string{"base", "total"}, []string{"amount", "tax"}))

	c, ok := s.Find("total", "tax")
	require.True(t, ok)
	assert.Equal(t, at(1, 1), c)

	_, ok = s.Find("total", "missing")
	assert.False(t, ok)
}

// =============================================================================
// Lazy evaluation
// =============================================================================

func TestCalculator_LazyAndMemoised(t *testing.T) {
	var computed atomic.Int32
	counting := formula{fn: func(CellEnv, []any) (any, error) {
		computed.Add(1)
		return int64(10), nil
	}}
	s := mustSheet(t, 1, 3, []Cell{
		{Coord: at(0, 0), Formula: counting},
		{Coord: at(0, 1), Formula: sum(at(0, 0), at(0, 0))},
		{Coord: at(0, 2), Formula: sum(at(0, 0), at(0, 1))},
	}, nil)

	calc := NewCalculator(context.Background(), s, nil, nil, nil)
	v, err := calc.GetValue(0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(30), v)
	assert.Equal(t, int32(1), computed.Load(), "each cell computes at most once")
	assert.Equal(t, 3, calc.Steps())

	_, err = calc.GetValue(0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, calc.Steps(), "memoised reads take no steps")
}

func TestCalculator_FreshPerEvaluation(t *testing.T) {
	var computed atomic.Int32
	s := mustSheet(t, 1, 1, []Cell{{Coord: at(0, 0), Formula: formula{fn: func(_ CellEnv, args []any) (any, error) {
		computed.Add(1)
		return args[0], nil
	}}}}, ScalarResultBuilder{Coord: at(0, 0)})

	for i := int64(0); i < 3; i++ {
		v, err := s.Evaluate(context.Background(), nil, []any{i}, nil)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, int32(3), computed.Load())
}

func TestCalculator_EmptyAndConstantCells(t *testing.T) {
	s := mustSheet(t, 2, 2, []Cell{{Coord: at(1, 1), Value: "x"}}, nil)
	calc := NewCalculator(context.Background(), s, nil, nil, nil)

	grid, err := calc.GetValues()
	require.NoError(t, err)
	assert.Equal(t, [][]any{{nil, nil}, {nil, "x"}}, grid)
}

func TestCalculator_EnvLookup(t *testing.T) {
	s := mustSheet(t, 1, 1, []Cell{{Coord: at(0, 0), Formula: formula{fn: func(env CellEnv, _ []any) (any, error) {
		v, _ := env.Lookup("region")
		return v, nil
	}}}}, ScalarResultBuilder{Coord: at(0, 0)})

	v, err := s.Evaluate(context.Background(), nil, nil, method.MapEnv{"region": "EU"})
	require.NoError(t, err)
	assert.Equal(t, "EU", v)
}

func TestCalculator_OutOfRange(t *testing.T) {
	s := mustSheet(t, 1, 1, nil, nil)
	_, err := NewCalculator(context.Background(), s, nil, nil, nil).GetValue(0, 5)
	assert.ErrorIs(t, err, ErrCellOutOfRange)
}

// =============================================================================
// Circular references
// =============================================================================

// cell(0,0) -> cell(0,1) -> cell(0,0)
func TestCalculator_CircularReference(t *testing.T) {
	s := mustSheet(t, 1, 2, []Cell{
		{Coord: at(0, 0), Formula: sum(at(0, 1))},
		{Coord: at(0, 1), Formula: sum(at(0, 0))},
	}, nil)

	for _, start := range []Coord{at(0, 0), at(0, 1)} {
		t.Run(start.String(), func(t *testing.T) {
			calc := NewCalculator(context.Background(), s, nil, nil, nil)
			_, err := calc.GetValue(start.Row, start.Col)

			var ce *CircularReferenceError
			require.ErrorAs(t, err, &ce)
			assert.True(t, ce.Contains(at(0, 0)))
			assert.True(t, ce.Contains(at(0, 1)))
			assert.Equal(t, start, ce.Cycle[0])
			assert.Equal(t, start, ce.Cycle[len(ce.Cycle)-1])
			assert.Equal(t, ErrCodeCircularReference, ce.Code())

			// The failure is memoised for every cell on the cycle.
			_, err = calc.GetValue(0, 0)
			assert.True(t, IsCircularReference(err))
			_, err = calc.GetValue(0, 1)
			assert.True(t, IsCircularReference(err))
		})
	}
}

func TestCalculator_SelfReference(t *testing.T) {
	s := mustSheet(t, 1, 1, []Cell{{Coord: at(0, 0), Formula: sum(at(0, 0))}}, nil)
	_, err := NewCalculator(context.Background(), s, nil, nil, nil).GetValue(0, 0)

	var ce *CircularReferenceError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []Coord{at(0, 0), at(0, 0)}, ce.Cycle)
	assert.Contains(t, err.Error(), "R0C0 -> R0C0")
}

func TestCalculator_CycleExcludesEntryTail(t *testing.T) {
	s := mustSheet(t, 1, 3, []Cell{
		{Coord: at(0, 0), Formula: sum(at(0, 1))},
		{Coord: at(0, 1), Formula: sum(at(0, 2))},
		{Coord: at(0, 2), Formula: sum(at(0, 1))},
	}, nil)

	_, err := NewCalculator(context.Background(), s, nil, nil, nil).GetValue(0, 0)
	var ce *CircularReferenceError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []Coord{at(0, 1), at(0, 2), at(0, 1)}, ce.Cycle)
}

// =============================================================================
// Errors, cancellation and quota
// =============================================================================

func TestCalculator_FormulaErrorMemoised(t *testing.T) {
	boom := &method.ExecutionError{Method: "f", Err: errors.New("boom")}
	calls := 0
	s := mustSheet(t, 1, 2, []Cell{
		{Coord: at(0, 0), Formula: formula{fn: func(CellEnv, []any) (any, error) {
			calls++
			return nil, boom
		}}},
		{Coord: at(0, 1), Formula: sum(at(0, 0))},
	}, nil)

	calc := NewCalculator(context.Background(), s, nil, nil, nil)
	_, err := calc.GetValue(0, 1)
	assert.Same(t, boom, err)
	_, err = calc.GetValue(0, 0)
	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestCalculator_Cancelled(t *testing.T) {
	s := mustSheet(t, 1, 1, []Cell{{Coord: at(0, 0), Value: int64(1)}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCalculator(ctx, s, nil, nil, nil).GetValue(0, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculator_StepQuota(t *testing.T) {
	cells := []Cell{{Coord: at(0, 0), Value: int64(1)}}
	for c := 1; c < 10; c++ {
		cells = append(cells, Cell{Coord: at(0, c), Formula: sum(at(0, c-1))})
	}
	s := mustSheet(t, 1, 10, cells, ScalarResultBuilder{Coord: at(0, 9)}, WithMaxSteps(5))

	_, err := s.Evaluate(context.Background(), nil, nil, nil)
	var se *StepsExceededError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 5, se.Limit)
	assert.Equal(t, 6, se.Steps)

	v, err := s.Evaluate(WithStepLimit(context.Background(), 100), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestQuotaEnforcer_Unlimited(t *testing.T) {
	q := NewQuotaEnforcer(0)
	for i := 0; i < 1000; i++ {
		require.NoError(t, q.Check("s"))
	}
	assert.Equal(t, 1000, q.Current())
}
