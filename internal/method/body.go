package method

import "context"

// Body computes a method's result. Implementations must be safe for
// concurrent use: all per-call state lives in the arguments.
type Body interface {
	Evaluate(ctx context.Context, target any, args []any, env Env) (any, error)
}

// BodyFunc adapts a plain function to Body.
type BodyFunc func(ctx context.Context, target any, args []any, env Env) (any, error)

// Evaluate calls f.
func (f BodyFunc) Evaluate(ctx context.Context, target any, args []any, env Env) (any, error) {
	return f(ctx, target, args, env)
}

// Constant returns a body that always yields v.
func Constant(v any) Body {
	return BodyFunc(func(context.Context, any, []any, Env) (any, error) {
		return v, nil
	})
}
