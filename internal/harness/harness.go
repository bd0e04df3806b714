package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"

	"github.com/izubarev/openl-tablets-sub004/internal/compiler"
	"github.com/izubarev/openl-tablets-sub004/internal/engine"
	"github.com/izubarev/openl-tablets-sub004/internal/ir"
	"github.com/izubarev/openl-tablets-sub004/internal/store"
	"github.com/izubarev/openl-tablets-sub004/internal/testutil"
)

// Harness runs one scenario against a real engine with a fresh logical
// clock, sequential invocation IDs and an in-memory journal.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *engine.Clock
	ids    *testutil.SequenceIDs
	logger *slog.Logger
}

// Run executes a scenario and returns the result. The error is non-nil only
// when the scenario could not run at all; failed expectations and
// assertions are reported in Result.Errors.
//
// Execution flow:
//  1. Compile and link the project
//  2. Open a fresh in-memory journal
//  3. Execute calls in order, checking expectations
//  4. Evaluate assertions against the trace and journal
func Run(scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	project, err := loadProject(scenario, logger)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  engine.NewClock(),
		ids:    testutil.NewSequenceIDs("inv"),
		logger: logger,
	}
	h.engine, err = engine.New(project,
		engine.WithJournal(st),
		engine.WithClock(h.clock),
		engine.WithIDGenerator(h.ids),
		engine.WithLogger(logger),
		engine.WithWorkers(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	defer h.engine.Close()

	ctx := context.Background()
	result := NewResult()
	h.executeCalls(ctx, scenario.Calls, result)

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// RunFile loads and runs the scenario at path.
func RunFile(path string) (*Scenario, *Result, error) {
	s, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	r, err := Run(s)
	return s, r, err
}

func loadProject(s *Scenario, logger *slog.Logger) (*compiler.Project, error) {
	var (
		p   *ir.Project
		err error
	)
	if s.Source != "" {
		p, err = compiler.CompileString(s.Name+".cue", s.Source)
	} else {
		p, err = compiler.LoadDir(s.Project)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compile project: %w", err)
	}
	linked, err := compiler.Link(p, compiler.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to link project: %w", err)
	}
	return linked, nil
}

func (h *Harness) executeCalls(ctx context.Context, calls []CallStep, result *Result) {
	for i, c := range calls {
		res, err := h.engine.Call(ctx, c.Method, c.Args, c.Env)
		event := TraceEvent{
			Seq:          res.Seq,
			InvocationID: res.InvocationID,
			Method:       res.Method,
			Signature:    res.Signature,
			Args:         c.Args,
			Env:          c.Env,
			Value:        res.Value,
			Error:        engine.ErrorCode(err),
		}
		result.Trace = append(result.Trace, event)

		if c.Expect == nil {
			continue
		}
		if msg := checkExpect(c.Expect, event, err); msg != "" {
			result.AddError(fmt.Sprintf("calls[%d] %s: %s", i, c.Method, msg))
		}
	}
}

func checkExpect(want *Expect, got TraceEvent, err error) string {
	if want.Error != "" {
		if err == nil {
			return fmt.Sprintf("expected error %s, got value %v", want.Error, got.Value)
		}
		if got.Error != want.Error {
			return fmt.Sprintf("expected error %s, got %s: %v", want.Error, got.Error, err)
		}
		return ""
	}
	if err != nil {
		return fmt.Sprintf("unexpected error %s: %v", got.Error, err)
	}
	if want.Value != nil && !sameValue(want.Value, got.Value) {
		return fmt.Sprintf("expected value %v, got %v", want.Value, got.Value)
	}
	return ""
}

// sameValue compares values by canonical JSON, so 300 and 300.0 are equal.
func sameValue(a, b any) bool {
	ca, errA := ir.MarshalCanonical(a)
	cb, errB := ir.MarshalCanonical(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ca, cb)
}
