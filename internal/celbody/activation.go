package celbody

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/interpreter"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
	"github.com/izubarev/openl-tablets-sub004/internal/method"
)

// activation resolves variables for one evaluation. Lazy variables are
// computed on first use; the first resolution error is kept so it can be
// returned unchanged instead of as a CEL error string.
type activation struct {
	vars map[string]any
	lazy map[string]func() (any, error)
	err  error
}

func newActivation(target any, env method.Env) *activation {
	a := &activation{
		vars: map[string]any{VarTarget: ir.NormalizeValue(target)},
		lazy: map[string]func() (any, error){
			VarEnv: func() (any, error) {
				if env == nil {
					return map[string]any{}, nil
				}
				return ir.NormalizeValue(method.Snapshot(env)), nil
			},
		},
	}
	return a
}

func (a *activation) bind(names []string, values []any) {
	for i, name := range names {
		var v any
		if i < len(values) {
			v = ir.NormalizeValue(values[i])
		}
		a.vars[name] = v
	}
}

func (a *activation) ResolveName(name string) (any, bool) {
	if v, ok := a.vars[name]; ok {
		return v, true
	}
	f, ok := a.lazy[name]
	if !ok {
		return nil, false
	}
	v, err := f()
	if err != nil {
		if a.err == nil {
			a.err = err
		}
		return types.NewErr("%s: %v", name, err), true
	}
	a.vars[name] = v
	return v, true
}

func (a *activation) Parent() interpreter.Activation { return nil }

// eval runs prg and converts the result to engine values. A resolution
// error fails the evaluation even when CEL absorbed it (`||`, `&&`, `?:`
// accept an error operand), and it wins over CEL's own error so typed
// errors survive.
func eval(ctx context.Context, name string, prg cel.Program, a *activation) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, _, err := prg.ContextEval(ctx, a)
	if a.err != nil {
		return nil, a.err
	}
	if err != nil {
		return nil, &method.ExecutionError{Method: name, Err: err}
	}
	v, err := toNative(out)
	if err != nil {
		return nil, &method.ExecutionError{Method: name, Err: err}
	}
	return v, nil
}

var (
	listType = reflect.TypeOf([]any{})
	mapType  = reflect.TypeOf(map[string]any{})
)

func toNative(v ref.Val) (any, error) {
	switch v.(type) {
	case types.Null:
		return nil, nil
	case traits.Lister:
		out, err := v.ConvertToNative(listType)
		if err != nil {
			return nil, fmt.Errorf("convert list result: %w", err)
		}
		return ir.NormalizeValue(out), nil
	case traits.Mapper:
		out, err := v.ConvertToNative(mapType)
		if err != nil {
			return nil, fmt.Errorf("convert map result: %w", err)
		}
		return ir.NormalizeValue(out), nil
	default:
		return ir.NormalizeValue(v.Value()), nil
	}
}
