package method

import (
	"context"
	"slices"
	"sync"
)

// Invocation is the mutable per-call context. It is owned by exactly one
// call between Acquire and Release.
type Invocation struct {
	ID         string
	Descriptor *Descriptor
	Target     any
	Args       []any
	Env        Env

	checkedOut bool
}

// ContextPool recycles Invocation values. Acquire hands out a context that
// no other call holds; Release returns it.
//
// Thread-safety: ContextPool is safe for concurrent use. A single
// Invocation is not.
type ContextPool struct {
	pool sync.Pool
}

// NewContextPool creates an empty pool.
func NewContextPool() *ContextPool {
	return &ContextPool{
		pool: sync.Pool{New: func() any { return new(Invocation) }},
	}
}

// Acquire checks out a context initialised for one call. args is copied so
// the body never aliases the caller's slice, and a result that retains the
// copy stays valid after Release.
func (p *ContextPool) Acquire(id string, d *Descriptor, target any, args []any, env Env) *Invocation {
	inv := p.pool.Get().(*Invocation)
	if inv.checkedOut {
		panic("method: pooled invocation already checked out")
	}
	inv.checkedOut = true
	inv.ID = id
	inv.Descriptor = d
	inv.Target = target
	inv.Args = slices.Clone(args)
	if env == nil {
		env = EmptyEnv
	}
	inv.Env = env
	return inv
}

// Release zeroes inv and returns it to the pool. Releasing a context that
// is not checked out panics.
func (p *ContextPool) Release(inv *Invocation) {
	if !inv.checkedOut {
		panic("method: release of invocation that is not checked out")
	}
	*inv = Invocation{}
	p.pool.Put(inv)
}

// Snapshot returns a detached copy of inv that survives Release.
func (inv *Invocation) Snapshot() Invocation {
	return Invocation{
		ID:         inv.ID,
		Descriptor: inv.Descriptor,
		Target:     inv.Target,
		Args:       slices.Clone(inv.Args),
		Env:        inv.Env,
	}
}

type invocationKey struct{}

// WithInvocation returns ctx carrying inv.
func WithInvocation(ctx context.Context, inv *Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFrom returns the invocation carried by ctx, if any.
func InvocationFrom(ctx context.Context) (*Invocation, bool) {
	inv, ok := ctx.Value(invocationKey{}).(*Invocation)
	return inv, ok
}
