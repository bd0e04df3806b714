package engine

import (
	"context"
	"log/slog"
	"maps"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/izubarev/openl-tablets-sub004/internal/compiler"
	"github.com/izubarev/openl-tablets-sub004/internal/dispatch"
	"github.com/izubarev/openl-tablets-sub004/internal/ir"
	"github.com/izubarev/openl-tablets-sub004/internal/method"
	"github.com/izubarev/openl-tablets-sub004/internal/metrics"
	"github.com/izubarev/openl-tablets-sub004/internal/spreadsheet"
	"github.com/izubarev/openl-tablets-sub004/internal/store"
)

// Journal receives one record per call. *store.Store implements it.
type Journal interface {
	WriteInvocation(ctx context.Context, r store.Record) error
}

// Result is the outcome of a successful call.
type Result struct {
	InvocationID string
	Seq          int64
	Method       string
	// Signature identifies the implementation that answered.
	Signature string
	Value     any
}

// Engine runs calls against a linked project.
//
// Thread-safety: Engine is safe for concurrent use. Call may run from any
// goroutine; CallBatch fans out over a bounded worker pool.
type Engine struct {
	project    *compiler.Project
	dispatcher *dispatch.Dispatcher
	invoker    *method.Invoker
	ids        method.IDGenerator
	clock      Sequencer
	journal    Journal
	metrics    *metrics.Metrics
	logger     *slog.Logger
	pool       *ants.Pool

	cacheSize int
	maxSteps  int
	workers   int
	matcher   dispatch.Matcher
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every call in j.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithCacheSize sets the dispatch cache size. 0 disables caching.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// WithMaxSteps overrides the spreadsheet step quota for every call.
// 0 keeps each sheet's own limit.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithWorkers sets the CallBatch pool size. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithIDGenerator sets the invocation ID generator.
func WithIDGenerator(gen method.IDGenerator) Option {
	return func(e *Engine) {
		e.ids = gen
	}
}

// WithMatcher replaces the dispatch matcher.
func WithMatcher(m dispatch.Matcher) Option {
	return func(e *Engine) {
		e.matcher = m
	}
}

// WithClock sets the sequencer, e.g. NewClockAt(lastSeq) to append to an
// existing journal.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithMetrics records call outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine for project. Close releases its worker pool.
func New(project *compiler.Project, opts ...Option) (*Engine, error) {
	e := &Engine{
		project:   project,
		ids:       method.UUIDv7Generator{},
		clock:     NewClock(),
		logger:    slog.Default(),
		cacheSize: dispatch.DefaultCacheSize,
		workers:   runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}

	dopts := []dispatch.Option{
		dispatch.WithCacheSize(e.cacheSize),
		dispatch.WithLogger(e.logger),
	}
	if e.matcher != nil {
		dopts = append(dopts, dispatch.WithMatcher(e.matcher))
	}
	d, err := dispatch.NewDispatcher(dopts...)
	if err != nil {
		return nil, err
	}
	e.dispatcher = d
	e.invoker = method.NewInvoker(method.WithIDs(e.ids))

	pool, err := ants.NewPool(e.workers, ants.WithPanicHandler(func(v any) {
		e.logger.Error("batch worker panic", "panic", v)
	}))
	if err != nil {
		return nil, err
	}
	e.pool = pool
	return e, nil
}

// Close releases the worker pool.
func (e *Engine) Close() {
	e.pool.Release()
}

// Project returns the linked project.
func (e *Engine) Project() *compiler.Project {
	return e.project
}

// Clock returns the engine sequencer.
func (e *Engine) Clock() Sequencer {
	return e.clock
}

// Call resolves name against args and env and invokes the chosen
// implementation. Body errors are returned unchanged.
//
// The call is journaled after evaluation; a failed journal write is logged
// and never changes the result.
func (e *Engine) Call(ctx context.Context, name string, args []any, env map[string]any) (Result, error) {
	return e.call(ctx, e.ids.Generate(), name, args, env, true)
}

func (e *Engine) call(ctx context.Context, id, name string, args []any, env map[string]any, journal bool) (Result, error) {
	start := time.Now()
	name = ir.NormalizeName(name)
	args = normalizeArgs(args)
	env = maps.Clone(env)

	res := Result{InvocationID: id, Seq: e.clock.Next(), Method: name}
	value, err := e.resolveAndInvoke(ctx, &res, args, env)
	if err == nil {
		res.Value = value
	}

	if journal && e.journal != nil {
		e.record(ctx, res, args, env, err)
	}
	e.metrics.ObserveCall(name, ErrorCode(err), time.Since(start))

	if err != nil {
		e.logger.Warn("invocation failed",
			"method", name,
			"invocation_id", id,
			"seq", res.Seq,
			"code", ErrorCode(err),
			"error", err,
		)
		return res, err
	}
	return res, nil
}

func (e *Engine) resolveAndInvoke(ctx context.Context, res *Result, args []any, env map[string]any) (any, error) {
	menv := method.MapEnv(env)
	call := dispatch.Call{Method: res.Method, Args: args, Env: menv}

	node, ok := e.project.Node(res.Method)
	if !ok {
		return nil, &dispatch.NoApplicableMethodError{Method: res.Method, ArgTypes: call.ArgTypes()}
	}
	desc, err := e.dispatcher.Resolve(ctx, node, call)
	if err != nil {
		return nil, err
	}
	res.Signature = desc.Signature()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.maxSteps > 0 {
		ctx = spreadsheet.WithStepLimit(ctx, e.maxSteps)
	}
	return e.invoker.InvokeAs(ctx, res.InvocationID, desc, nil, args, menv)
}

func (e *Engine) record(ctx context.Context, res Result, args []any, env map[string]any, callErr error) {
	r := store.Record{
		ID:        res.InvocationID,
		Seq:       res.Seq,
		Method:    res.Method,
		Signature: res.Signature,
		Args:      args,
		Env:       env,
		Result:    res.Value,
	}
	if callErr != nil {
		r.ErrorCode = ErrorCode(callErr)
		r.ErrorMessage = callErr.Error()
	}
	// The journal write outlives a cancelled call.
	if err := e.journal.WriteInvocation(context.WithoutCancel(ctx), r); err != nil {
		e.metrics.JournalError()
		e.logger.Error("journal write failed",
			"method", res.Method,
			"invocation_id", res.InvocationID,
			"error", err,
		)
	}
}

func normalizeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = ir.NormalizeValue(a)
	}
	return out
}
