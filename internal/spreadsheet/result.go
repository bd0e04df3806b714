package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
)

// ResultBuilder extracts the method result from an evaluated calculator.
type ResultBuilder interface {
	BuildResult(calc *Calculator) (any, error)
}

// ScalarResultBuilder returns one cell converted through Cast. With
// FullGrid set, every cell is computed first; the result is still the
// target cell's own value or error, so an error in an unrelated cell does
// not fail the call. Cancellation and an exhausted step quota stop the
// grid and are returned, so a sheet near its quota can fail under FullGrid
// where the single-cell read succeeds.
type ScalarResultBuilder struct {
	Coord    Coord
	Cast     Cast
	FullGrid bool
}

// BuildResult implements ResultBuilder.
func (b ScalarResultBuilder) BuildResult(calc *Calculator) (any, error) {
	if b.FullGrid {
		if err := computeAll(calc); err != nil {
			return nil, err
		}
	}
	v, err := calc.GetValue(b.Coord.Row, b.Coord.Col)
	if err != nil {
		return nil, err
	}
	return b.Cast.Apply(b.Coord, v)
}

// computeAll evaluates every cell, keeping per-cell errors memoised in calc.
// Only errors that end the whole evaluation are returned.
func computeAll(calc *Calculator) error {
	for r := range calc.sheet.rows {
		for c := range calc.sheet.cols {
			_, err := calc.GetValue(r, c)
			if err == nil {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || IsStepsExceeded(err) {
				return err
			}
		}
	}
	return nil
}

// GridResultBuilder returns every cell as [][]any. Cells are passed through
// Cast when one is set.
type GridResultBuilder struct {
	Cast Cast
}

// BuildResult implements ResultBuilder.
func (b GridResultBuilder) BuildResult(calc *Calculator) (any, error) {
	grid, err := calc.GetValues()
	if err != nil {
		return nil, err
	}
	if b.Cast.convert == nil {
		return grid, nil
	}
	for r, row := range grid {
		for c, v := range row {
			cast, err := b.Cast.Apply(Coord{Row: r, Col: c}, v)
			if err != nil {
				return nil, err
			}
			row[c] = cast
		}
	}
	return grid, nil
}

// Cast converts a result value to a declared type. nil passes through every
// cast unchanged. The zero Cast behaves like CastAny.
type Cast struct {
	target  string
	convert func(v any) (any, bool)
}

// Target names the cast's result type.
func (c Cast) Target() string {
	if c.target == "" {
		return ir.TypeAny
	}
	return c.target
}

// Apply converts v, failing with TypeCastError when v is incompatible.
func (c Cast) Apply(at Coord, v any) (any, error) {
	if v == nil || c.convert == nil {
		return v, nil
	}
	out, ok := c.convert(ir.NormalizeValue(v))
	if !ok {
		return nil, &TypeCastError{Coord: at, Target: c.Target(), Value: v}
	}
	return out, nil
}

var (
	CastAny    = Cast{target: ir.TypeAny}
	CastInt    = Cast{target: ir.TypeInt, convert: toInt}
	CastFloat  = Cast{target: ir.TypeFloat, convert: toFloat}
	CastNumber = Cast{target: ir.TypeNumber, convert: toNumber}
	CastString = Cast{target: ir.TypeString, convert: toString}
	CastBool   = Cast{target: ir.TypeBool, convert: toBool}
	CastDate   = Cast{target: ir.TypeDate, convert: toDate}
)

// CastByName returns the cast for an ir type name. Empty means any.
func CastByName(name string) (Cast, error) {
	switch name {
	case "", ir.TypeAny:
		return CastAny, nil
	case ir.TypeInt:
		return CastInt, nil
	case ir.TypeFloat:
		return CastFloat, nil
	case ir.TypeNumber:
		return CastNumber, nil
	case ir.TypeString:
		return CastString, nil
	case ir.TypeBool:
		return CastBool, nil
	case ir.TypeDate:
		return CastDate, nil
	default:
		return Cast{}, fmt.Errorf("unknown cast %q", name)
	}
}

func toInt(v any) (any, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return nil, false
}

func toFloat(v any) (any, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return nil, false
}

func toNumber(v any) (any, bool) {
	switch v.(type) {
	case int64, float64:
		return v, true
	}
	return nil, false
}

func toString(v any) (any, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	case time.Time:
		return s.Format(time.RFC3339), true
	}
	return nil, false
}

func toBool(v any) (any, bool) {
	b, ok := v.(bool)
	return b, ok
}

func toDate(v any) (any, bool) {
	t, err := ir.ParseDate(v)
	if err != nil {
		return nil, false
	}
	return t, true
}
