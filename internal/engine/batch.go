package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/izubarev/openl-tablets-sub004/internal/method"
)

// Request is one call of a batch.
type Request struct {
	Method string         `json:"method" yaml:"method"`
	Args   []any          `json:"args" yaml:"args"`
	Env    map[string]any `json:"env,omitempty" yaml:"env,omitempty"`
}

// Response pairs a batch request with its outcome.
type Response struct {
	Result Result
	Err    error
}

// CallBatch runs every request on the worker pool and returns the responses
// in request order. A panicking body fails its own request only.
func (e *Engine) CallBatch(ctx context.Context, reqs []Request) []Response {
	out := make([]Response, len(reqs))
	e.metrics.ObserveBatch(len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		// IDs are drawn in request order so deterministic generators stay
		// deterministic under concurrency.
		id := e.ids.Generate()
		task := func() {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					out[i] = Response{Err: &method.ExecutionError{
						Method: req.Method,
						Err:    fmt.Errorf("panic: %v", v),
					}}
				}
			}()
			res, err := e.call(ctx, id, req.Method, req.Args, req.Env, true)
			out[i] = Response{Result: res, Err: err}
		}

		wg.Add(1)
		if err := e.pool.Submit(task); err != nil {
			// Pool closed: run on the caller's goroutine.
			task()
		}
	}
	wg.Wait()
	return out
}
