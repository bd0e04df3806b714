package method

import (
	"context"
	"errors"
)

// Invoker runs descriptor bodies inside isolated per-call contexts.
//
// Thread-safety: Invoker is safe for concurrent use.
type Invoker struct {
	pool *ContextPool
	ids  IDGenerator
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithIDs sets the invocation ID generator. Defaults to UUIDv7Generator.
func WithIDs(gen IDGenerator) InvokerOption {
	return func(i *Invoker) {
		i.ids = gen
	}
}

// WithPool shares a context pool between invokers.
func WithPool(pool *ContextPool) InvokerOption {
	return func(i *Invoker) {
		i.pool = pool
	}
}

// NewInvoker creates an invoker.
func NewInvoker(opts ...InvokerOption) *Invoker {
	i := &Invoker{}
	for _, opt := range opts {
		opt(i)
	}
	if i.pool == nil {
		i.pool = NewContextPool()
	}
	if i.ids == nil {
		i.ids = UUIDv7Generator{}
	}
	return i
}

// Invoke runs d's body for one call with a freshly generated invocation ID.
func (i *Invoker) Invoke(ctx context.Context, d *Descriptor, target any, args []any, env Env) (any, error) {
	return i.InvokeAs(ctx, i.ids.Generate(), d, target, args, env)
}

// InvokeAs runs d's body under the given invocation ID.
//
// The body's value or error is returned unchanged; Invoke neither wraps
// nor retries. A descriptor without a body fails with ExecutionError.
func (i *Invoker) InvokeAs(ctx context.Context, id string, d *Descriptor, target any, args []any, env Env) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Body() == nil {
		return nil, &ExecutionError{Method: d.Signature(), Err: errors.New("method has no body")}
	}

	inv := i.pool.Acquire(id, d, target, args, env)
	defer i.pool.Release(inv)

	return d.Body().Evaluate(WithInvocation(ctx, inv), inv.Target, inv.Args, inv.Env)
}
