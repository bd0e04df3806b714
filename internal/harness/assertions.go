package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/izubarev/openl-tablets-sub004/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Method, event.Args)
		}
	}
	return buf.String()
}

// assertTraceContains checks for a call of the method, with exactly the
// given args when any are listed.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Method != a.Method {
			continue
		}
		if len(a.Args) == 0 || sameValue(event.Args, a.Args) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("call %s with args %v", a.Method, a.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first calls of the listed methods appear
// in order. Intervening calls are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if slices.Contains(a.Methods, event.Method) && positions[event.Method] == 0 {
			positions[event.Method] = i + 1
		}
	}

	for _, m := range a.Methods {
		if positions[m] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all methods present: %v", a.Methods),
				Actual:   fmt.Sprintf("missing method: %s", m),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Methods); i++ {
		prev, curr := a.Methods[i-1], a.Methods[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("methods in order: %v", a.Methods),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the number of calls of a method.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Method == a.Method {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d calls of %s", a.Count, a.Method),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertResolvedTo checks which implementation answered one call.
func assertResolvedTo(trace []TraceEvent, a Assertion) error {
	if a.Call < 1 || a.Call > len(trace) {
		return &AssertionError{
			Type:     AssertResolvedTo,
			Expected: fmt.Sprintf("call %d", a.Call),
			Actual:   fmt.Sprintf("trace has %d calls", len(trace)),
		}
	}
	got := trace[a.Call-1].Signature
	if got != a.Signature {
		return &AssertionError{
			Type:     AssertResolvedTo,
			Expected: fmt.Sprintf("call %d resolved to %s", a.Call, a.Signature),
			Actual:   fmt.Sprintf("resolved to %q", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertJournalCount checks the number of journaled calls, of one method
// when set.
func assertJournalCount(ctx context.Context, st *store.Store, a Assertion) error {
	records, err := st.ReadInvocations(ctx, a.Method)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	if len(records) != a.Count {
		what := "calls"
		if a.Method != "" {
			what = "calls of " + a.Method
		}
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d journaled %s", a.Count, what),
			Actual:   fmt.Sprintf("%d records", len(records)),
		}
	}
	return nil
}

// AssertionContext provides journal access for journal assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertResolvedTo:
			err = assertResolvedTo(result.Trace, assertion)
		case AssertJournalCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: journal_count requires a journal", i)
			} else {
				err = assertJournalCount(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
