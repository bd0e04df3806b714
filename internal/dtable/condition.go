package dtable

import (
	"context"
	"fmt"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
)

// Condition decides whether one row matches. cells holds the row's values
// for the column's cells, in column cell order.
type Condition interface {
	Match(ctx context.Context, args []any, cells []any) (bool, error)
}

// ArgCondition is a built-in condition that compares one argument with the
// row's cells. Only such columns expand list cells and prune by domain.
type ArgCondition interface {
	Condition
	ArgIndex() int
}

type equalsCondition struct {
	arg int
}

// Equals matches when args[arg] equals the single cell. A nil cell matches
// everything.
func Equals(arg int) ArgCondition {
	return equalsCondition{arg: arg}
}

func (c equalsCondition) ArgIndex() int { return c.arg }

func (c equalsCondition) Match(_ context.Context, args []any, cells []any) (bool, error) {
	if len(cells) != 1 {
		return false, fmt.Errorf("equals condition expects 1 cell, got %d", len(cells))
	}
	if cells[0] == nil {
		return true, nil
	}
	return ir.Equal(args[c.arg], cells[0]), nil
}

type rangeCondition struct {
	arg int
}

// Range matches when cells[0] <= args[arg] <= cells[1]. A nil bound is
// open; values that cannot be ordered against a bound never match.
func Range(arg int) ArgCondition {
	return rangeCondition{arg: arg}
}

func (c rangeCondition) ArgIndex() int { return c.arg }

func (c rangeCondition) Match(_ context.Context, args []any, cells []any) (bool, error) {
	if len(cells) != 2 {
		return false, fmt.Errorf("range condition expects 2 cells, got %d", len(cells))
	}
	v := args[c.arg]
	if lo := cells[0]; lo != nil {
		cmp, ok := ir.Compare(v, lo)
		if !ok || cmp < 0 {
			return false, nil
		}
	}
	if hi := cells[1]; hi != nil {
		cmp, ok := ir.Compare(v, hi)
		if !ok || cmp > 0 {
			return false, nil
		}
	}
	return true, nil
}
