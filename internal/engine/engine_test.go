package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izubarev/openl-tablets-sub004/internal/compiler"
	"github.com/izubarev/openl-tablets-sub004/internal/dispatch"
	"github.com/izubarev/openl-tablets-sub004/internal/method"
	"github.com/izubarev/openl-tablets-sub004/internal/metrics"
	"github.com/izubarev/openl-tablets-sub004/internal/spreadsheet"
	"github.com/izubarev/openl-tablets-sub004/internal/store"
)

const rulesProject = `
method: premium_base: {
	name: "premium"
	params: [{name: "age", type: "int"}]
	returns: "number"
	table: {
		conditions: [{name: "age", kind: "range", domain: "int"}]
		rows: [
			{cells: age: [18, 25], return: 300},
			{cells: age: [26, null], return: 200},
		]
	}
}

method: premium_ca: {
	name: "premium"
	params: [{name: "age", type: "int"}]
	returns: "number"
	properties: state: ["CA", "NV"]
	expr: "age < 25 ? 350 : 250"
}

method: ratio: {
	params: [{name: "a", type: "int"}, {name: "b", type: "int"}]
	expr: "a / b"
}

method: chain: sheet: {
	rows: 1
	cols: 3
	cells: [
		{at: "R0C0", value: 1},
		{at: "R0C1", expr: "a + 1", refs: a: "R0C0"},
		{at: "R0C2", expr: "b + 1", refs: b: "R0C1"},
	]
	result: cell: "R0C2"
}
`

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func linkProject(t *testing.T, src string) *compiler.Project {
	t.Helper()
	p, err := compiler.CompileString("rules.cue", src)
	require.NoError(t, err)
	linked, err := compiler.Link(p, compiler.WithLogger(discard))
	require.NoError(t, err)
	return linked
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(discard)}, opts...)
	e, err := New(linkProject(t, rulesProject), opts...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func sequenceIDs(n int) *method.FixedGenerator {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("inv-%03d", i+1)
	}
	return method.NewFixedGenerator(ids...)
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type failingJournal struct{}

func (failingJournal) WriteInvocation(context.Context, store.Record) error {
	return errors.New("disk full")
}

// =============================================================================
// Call
// =============================================================================

func TestCall_DispatchesByArgsAndEnv(t *testing.T) {
	e := newEngine(t, WithIDGenerator(sequenceIDs(3)))
	ctx := context.Background()

	res, err := e.Call(ctx, "premium", []any{20}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.Value)
	assert.Equal(t, "inv-001", res.InvocationID)
	assert.Equal(t, int64(1), res.Seq)
	assert.Equal(t, "premium", res.Method)
	assert.Equal(t, "premium(int)", res.Signature)

	res, err = e.Call(ctx, "premium", []any{20}, map[string]any{"state": "CA"})
	require.NoError(t, err)
	assert.Equal(t, int64(350), res.Value, "property-restricted method is more specific")
	assert.Equal(t, int64(2), res.Seq)

	res, err = e.Call(ctx, " premium ", []any{int64(40)}, map[string]any{"state": "TX"})
	require.NoError(t, err)
	assert.Equal(t, int64(200), res.Value)
	assert.Equal(t, "premium", res.Method, "names are normalized")
}

func TestCall_UnknownMethod(t *testing.T) {
	e := newEngine(t)

	_, err := e.Call(context.Background(), "missing", []any{"x"}, nil)
	require.Error(t, err)
	assert.True(t, dispatch.IsNoApplicableMethod(err))
	assert.Equal(t, dispatch.ErrCodeNoApplicableMethod, ErrorCode(err))
}

func TestCall_NoApplicableImplementation(t *testing.T) {
	e := newEngine(t)

	_, err := e.Call(context.Background(), "premium", []any{"old"}, nil)
	assert.True(t, dispatch.IsNoApplicableMethod(err))
}

func TestCall_BodyErrorPassesThrough(t *testing.T) {
	e := newEngine(t)

	_, err := e.Call(context.Background(), "ratio", []any{1, 0}, nil)
	require.Error(t, err)
	assert.True(t, method.IsExecutionError(err))
	assert.Equal(t, method.ErrCodeExecution, ErrorCode(err))
}

func TestCall_CancelledContext(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Call(ctx, "premium", []any{20}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ErrCodeCanceled, ErrorCode(err))
}

func TestCall_MaxStepsOverride(t *testing.T) {
	e := newEngine(t)
	res, err := e.Call(context.Background(), "chain", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Value)

	limited := newEngine(t, WithMaxSteps(2))
	_, err = limited.Call(context.Background(), "chain", nil, nil)
	assert.True(t, spreadsheet.IsStepsExceeded(err))
	assert.Equal(t, spreadsheet.ErrCodeStepsExceeded, ErrorCode(err))
}

func TestCall_CacheDoesNotChangeResults(t *testing.T) {
	cached := newEngine(t)
	uncached := newEngine(t, WithCacheSize(0))
	ctx := context.Background()

	calls := []struct {
		args []any
		env  map[string]any
	}{
		{[]any{20}, nil},
		{[]any{20}, map[string]any{"state": "CA"}},
		{[]any{20}, map[string]any{"state": "NV"}},
		{[]any{20}, map[string]any{"state": "TX"}},
		{[]any{30}, map[string]any{"state": "CA"}},
		{[]any{20}, map[string]any{"state": "CA"}},
	}
	for _, c := range calls {
		a, errA := cached.Call(ctx, "premium", c.args, c.env)
		b, errB := uncached.Call(ctx, "premium", c.args, c.env)
		assert.Equal(t, errA, errB)
		assert.Equal(t, a.Value, b.Value)
		assert.Equal(t, a.Signature, b.Signature)
	}
}

// =============================================================================
// Journal
// =============================================================================

func TestCall_Journal(t *testing.T) {
	s := openStore(t)
	e := newEngine(t, WithJournal(s), WithIDGenerator(sequenceIDs(2)))
	ctx := context.Background()

	_, err := e.Call(ctx, "premium", []any{20}, map[string]any{"state": "CA"})
	require.NoError(t, err)
	_, err = e.Call(ctx, "ratio", []any{1, 0}, nil)
	require.Error(t, err)

	records, err := s.ReadInvocations(ctx, "")
	require.NoError(t, err)
	require.Len(t, records, 2)

	ok := records[0]
	assert.Equal(t, "inv-001", ok.ID)
	assert.Equal(t, int64(1), ok.Seq)
	assert.Equal(t, "premium(int)", ok.Signature)
	assert.Equal(t, []any{int64(20)}, ok.Args)
	assert.Equal(t, map[string]any{"state": "CA"}, ok.Env)
	assert.Equal(t, int64(350), ok.Result)
	assert.False(t, ok.Failed())

	failed := records[1]
	assert.True(t, failed.Failed())
	assert.Equal(t, method.ErrCodeExecution, failed.ErrorCode)
	assert.Nil(t, failed.Result)
}

func TestCall_JournalFailureDoesNotAffectResult(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e := newEngine(t, WithJournal(failingJournal{}), WithMetrics(m))

	res, err := e.Call(context.Background(), "premium", []any{20}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.Value)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.JournalErrors))
}

func TestCall_ResumesSeqFromJournal(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first := newEngine(t, WithJournal(s))
	for range 3 {
		_, err := first.Call(ctx, "premium", []any{20}, nil)
		require.NoError(t, err)
	}

	last, err := s.LastSeq(ctx)
	require.NoError(t, err)
	second := newEngine(t, WithJournal(s), WithClock(NewClockAt(last)))
	res, err := second.Call(ctx, "premium", []any{20}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Seq)
}

// =============================================================================
// Metrics
// =============================================================================

func TestCall_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e := newEngine(t, WithMetrics(m))
	ctx := context.Background()

	_, _ = e.Call(ctx, "premium", []any{20}, nil)
	_, _ = e.Call(ctx, "premium", []any{30}, nil)
	_, _ = e.Call(ctx, "ratio", []any{1, 0}, nil)

	assert.Equal(t, 2.0, promtest.ToFloat64(m.CallsTotal.WithLabelValues("premium", metrics.CodeOK)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CallsTotal.WithLabelValues("ratio", method.ErrCodeExecution)))
}

// =============================================================================
// CallBatch
// =============================================================================

func TestCallBatch_PreservesOrder(t *testing.T) {
	const n = 50
	e := newEngine(t, WithWorkers(4), WithIDGenerator(sequenceIDs(n)))

	reqs := make([]Request, n)
	for i := range reqs {
		reqs[i] = Request{Method: "premium", Args: []any{18 + i%20}}
	}
	resps := e.CallBatch(context.Background(), reqs)
	require.Len(t, resps, n)

	for i, r := range resps {
		require.NoError(t, r.Err)
		age := 18 + i%20
		want := int64(300)
		if age >= 26 {
			want = 200
		}
		assert.Equal(t, want, r.Result.Value, "request %d", i)
		assert.Equal(t, fmt.Sprintf("inv-%03d", i+1), r.Result.InvocationID)
	}
}

func TestCallBatch_ErrorsStayPerRequest(t *testing.T) {
	e := newEngine(t)

	resps := e.CallBatch(context.Background(), []Request{
		{Method: "premium", Args: []any{20}},
		{Method: "ratio", Args: []any{1, 0}},
		{Method: "missing"},
	})
	require.Len(t, resps, 3)
	assert.NoError(t, resps[0].Err)
	assert.Equal(t, method.ErrCodeExecution, ErrorCode(resps[1].Err))
	assert.True(t, dispatch.IsNoApplicableMethod(resps[2].Err))
}

func TestCallBatch_PanicFailsOneRequest(t *testing.T) {
	boom := method.NewDescriptor("boom", nil, "any", method.BodyFunc(
		func(context.Context, any, []any, method.Env) (any, error) {
			panic("kaboom")
		}))
	ok := method.NewDescriptor("ok", nil, "any", method.Constant("fine"))
	project := &compiler.Project{Nodes: map[string]dispatch.Node{
		"boom": dispatch.NewLeaf(boom),
		"ok":   dispatch.NewLeaf(ok),
	}}
	e, err := New(project, WithLogger(discard))
	require.NoError(t, err)
	defer e.Close()

	resps := e.CallBatch(context.Background(), []Request{{Method: "boom"}, {Method: "ok"}})
	require.Error(t, resps[0].Err)
	assert.True(t, method.IsExecutionError(resps[0].Err))
	assert.Contains(t, resps[0].Err.Error(), "kaboom")
	require.NoError(t, resps[1].Err)
	assert.Equal(t, "fine", resps[1].Result.Value)
}

func TestCall_Concurrent(t *testing.T) {
	e := newEngine(t)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Call(context.Background(), "premium", []any{18 + i}, nil)
			assert.NoError(t, err)
			assert.NotNil(t, res.Value)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(20), e.Clock().Current())
}
