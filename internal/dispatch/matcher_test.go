package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izubarev/openl-tablets-sub004/internal/domain"
	"github.com/izubarev/openl-tablets-sub004/internal/method"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dated(name, from, to string, types ...string) *method.Descriptor {
	params := make([]method.Param, len(types))
	for i, t := range types {
		params[i] = method.Param{Name: "p", Type: t}
	}
	return method.NewDescriptor(name, params, "any", method.Constant(name+":"+from),
		method.WithApplicability(map[string]domain.Adaptor{
			"currentDate": domain.DateRange{Min: day(from), Max: day(to)},
		}))
}

// =============================================================================
// SpecificityMatcher
// =============================================================================

func TestSpecificityMatcher_Arity(t *testing.T) {
	one, two := desc("f", "int"), desc("f", "int", "int")
	got, err := SpecificityMatcher{}.Select([]*method.Descriptor{one, two}, Call{Args: []any{1, 2}})
	require.NoError(t, err)
	assert.Same(t, two, got)
}

func TestSpecificityMatcher_NarrowestType(t *testing.T) {
	anyD, number, integer := desc("f", "any"), desc("f", "number"), desc("f", "int")
	candidates := []*method.Descriptor{anyD, number, integer}

	got, err := SpecificityMatcher{}.Select(candidates, Call{Args: []any{7}})
	require.NoError(t, err)
	assert.Same(t, integer, got)

	got, err = SpecificityMatcher{}.Select(candidates, Call{Args: []any{7.5}})
	require.NoError(t, err)
	assert.Same(t, number, got)

	got, err = SpecificityMatcher{}.Select(candidates, Call{Args: []any{"x"}})
	require.NoError(t, err)
	assert.Same(t, anyD, got)
}

func TestSpecificityMatcher_NoApplicable(t *testing.T) {
	_, err := SpecificityMatcher{}.Select(
		[]*method.Descriptor{desc("f", "int"), desc("f", "bool")},
		Call{Method: "f", Args: []any{"text"}},
	)
	var ne *NoApplicableMethodError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "f", ne.Method)
	assert.Equal(t, []string{"string"}, ne.ArgTypes)
	assert.Equal(t, 2, ne.Candidates)
	assert.Contains(t, err.Error(), "f(string)")
}

func TestSpecificityMatcher_NoCandidates(t *testing.T) {
	_, err := SpecificityMatcher{}.Select(nil, Call{Method: "f"})
	assert.True(t, IsNoApplicableMethod(err))
}

func TestSpecificityMatcher_Ambiguous(t *testing.T) {
	a := desc("f", "int", "any")
	b := desc("f", "any", "int")

	_, err := SpecificityMatcher{}.Select([]*method.Descriptor{a, b}, Call{Method: "f", Args: []any{1, 2}})
	var ae *AmbiguousMethodError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"f(int,any)", "f(any,int)"}, ae.Candidates)
	assert.Equal(t, ErrCodeAmbiguousMethod, ae.Code())
}

func TestSpecificityMatcher_IdenticalSignaturesAreAmbiguous(t *testing.T) {
	a, b := desc("f", "int"), desc("f", "int")
	_, err := SpecificityMatcher{}.Select([]*method.Descriptor{a, b}, Call{Args: []any{1}})
	assert.True(t, IsAmbiguousMethod(err))
}

func TestSpecificityMatcher_SameDescriptorCountsOnce(t *testing.T) {
	d := desc("f", "int")
	got, err := SpecificityMatcher{}.Select([]*method.Descriptor{d, d, d}, Call{Args: []any{1}})
	require.NoError(t, err)
	assert.Same(t, d, got)
}

func TestSpecificityMatcher_Applicability(t *testing.T) {
	v2019 := dated("rate", "2019-01-01", "2019-12-31", "int")
	v2020 := dated("rate", "2020-01-01", "2020-12-31", "int")
	candidates := []*method.Descriptor{v2019, v2020}

	got, err := SpecificityMatcher{}.Select(candidates, Call{Args: []any{1}, Env: method.MapEnv{"currentDate": day("2020-06-01")}})
	require.NoError(t, err)
	assert.Same(t, v2020, got)

	got, err = SpecificityMatcher{}.Select(candidates, Call{Args: []any{1}, Env: method.MapEnv{"currentDate": "2019-03-01"}})
	require.NoError(t, err)
	assert.Same(t, v2019, got)

	_, err = SpecificityMatcher{}.Select(candidates, Call{Args: []any{1}, Env: method.MapEnv{"currentDate": day("2021-01-01")}})
	assert.True(t, IsNoApplicableMethod(err))

	_, err = SpecificityMatcher{}.Select(candidates, Call{Args: []any{1}})
	assert.True(t, IsNoApplicableMethod(err), "missing env value never satisfies a domain")
}

func TestSpecificityMatcher_RestrictedBeatsGeneral(t *testing.T) {
	general := desc("rate", "int")
	restricted := dated("rate", "2020-01-01", "2020-12-31", "int")
	candidates := []*method.Descriptor{general, restricted}

	got, err := SpecificityMatcher{}.Select(candidates, Call{Args: []any{1}, Env: method.MapEnv{"currentDate": "2020-05-05"}})
	require.NoError(t, err)
	assert.Same(t, restricted, got)

	got, err = SpecificityMatcher{}.Select(candidates, Call{Args: []any{1}, Env: method.MapEnv{"currentDate": "2022-05-05"}})
	require.NoError(t, err)
	assert.Same(t, general, got)
}

func TestSpecificityMatcher_OverlappingDomainsAmbiguous(t *testing.T) {
	a := dated("rate", "2020-01-01", "2020-12-31", "int")
	b := dated("rate", "2020-06-01", "2021-06-01", "int")

	_, err := SpecificityMatcher{}.Select([]*method.Descriptor{a, b},
		Call{Args: []any{1}, Env: method.MapEnv{"currentDate": "2020-07-01"}})
	assert.True(t, IsAmbiguousMethod(err))
}

func TestSpecificityMatcher_NilArgument(t *testing.T) {
	s, i := desc("f", "string"), desc("f", "int")
	_, err := SpecificityMatcher{}.Select([]*method.Descriptor{s, i}, Call{Args: []any{nil}})
	assert.True(t, IsAmbiguousMethod(err))
}

func TestSpecificityMatcher_Deterministic(t *testing.T) {
	candidates := []*method.Descriptor{desc("f", "number"), desc("f", "int"), desc("f", "any")}
	call := Call{Args: []any{3}}

	first, err := SpecificityMatcher{}.Select(candidates, call)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		got, err := SpecificityMatcher{}.Select(candidates, call)
		require.NoError(t, err)
		require.Same(t, first, got)
	}
}

// =============================================================================
// Dispatcher
// =============================================================================

type countingMatcher struct {
	mu    sync.Mutex
	calls int
}

func (m *countingMatcher) Select(c []*method.Descriptor, call Call) (*method.Descriptor, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return SpecificityMatcher{}.Select(c, call)
}

func TestDispatcher_ResolveAndCache(t *testing.T) {
	integer, text := desc("f", "int"), desc("f", "string")
	root := composite(t, "f", NewLeaf(integer), NewLeaf(text))

	m := &countingMatcher{}
	d, err := NewDispatcher(WithMatcher(m))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := d.Resolve(context.Background(), root, Call{Args: []any{i}})
		require.NoError(t, err)
		assert.Same(t, integer, got)
	}
	assert.Equal(t, 1, m.calls, "same signature resolves once")
	assert.Equal(t, 1, d.CacheLen())

	got, err := d.Resolve(context.Background(), root, Call{Args: []any{"x"}})
	require.NoError(t, err)
	assert.Same(t, text, got)
	assert.Equal(t, 2, m.calls)
}

func TestDispatcher_CacheKeyedByEnv(t *testing.T) {
	v2019 := dated("rate", "2019-01-01", "2019-12-31", "int")
	v2020 := dated("rate", "2020-01-01", "2020-12-31", "int")
	root := composite(t, "rate", NewLeaf(v2019), NewLeaf(v2020))

	d, err := NewDispatcher()
	require.NoError(t, err)

	got, err := d.Resolve(context.Background(), root, Call{Args: []any{1}, Env: method.MapEnv{"currentDate": "2019-02-02"}})
	require.NoError(t, err)
	assert.Same(t, v2019, got)

	got, err = d.Resolve(context.Background(), root, Call{Args: []any{1}, Env: method.MapEnv{"currentDate": "2020-02-02"}})
	require.NoError(t, err)
	assert.Same(t, v2020, got)
}

func TestDispatcher_CacheDoesNotChangeOutcome(t *testing.T) {
	candidates := []*method.Descriptor{
		desc("f", "any"), desc("f", "number"), desc("f", "int"),
		dated("f", "2020-01-01", "2020-12-31", "int"),
		desc("f", "string", "string"),
	}
	root := composite(t, "f", Leaves(candidates)...)

	cached, err := NewDispatcher()
	require.NoError(t, err)
	uncached, err := NewDispatcher(WithCacheSize(0))
	require.NoError(t, err)

	calls := []Call{
		{Args: []any{1}},
		{Args: []any{1}, Env: method.MapEnv{"currentDate": "2020-03-03"}},
		{Args: []any{1.5}},
		{Args: []any{nil}},
		{Args: []any{"a", "b"}},
		{Args: []any{true, false}},
		{Args: []any{1}},
	}
	for _, call := range calls {
		want, wantErr := uncached.Resolve(context.Background(), root, call)
		got, gotErr := cached.Resolve(context.Background(), root, call)
		assert.Same(t, want, got)
		assert.Equal(t, wantErr, gotErr)
	}
}

func TestDispatcher_ErrorNamesMethod(t *testing.T) {
	root := composite(t, "premium", NewLeaf(desc("premium", "int")))
	d, err := NewDispatcher()
	require.NoError(t, err)

	_, err = d.Resolve(context.Background(), root, Call{Args: []any{"x"}})
	var ne *NoApplicableMethodError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "premium", ne.Method)
}

func TestDispatcher_CancelledContext(t *testing.T) {
	root := composite(t, "f", NewLeaf(desc("f")))
	d, err := NewDispatcher()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Resolve(ctx, root, Call{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatcher_Concurrent(t *testing.T) {
	integer, text := desc("f", "int"), desc("f", "string")
	root := composite(t, "f", NewLeaf(integer), NewLeaf(text))
	d, err := NewDispatcher(WithCacheSize(4))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 32; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				var args []any
				want := integer
				if (g+i)%2 == 0 {
					args = []any{i}
				} else {
					args = []any{"s"}
					want = text
				}
				got, err := d.Resolve(context.Background(), root, Call{Args: args})
				assert.NoError(t, err)
				assert.Same(t, want, got)
			}
		}(g)
	}
	wg.Wait()
}
