package dispatch

import (
	"slices"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
	"github.com/izubarev/openl-tablets-sub004/internal/method"
)

// Call carries the runtime inputs that resolution depends on.
type Call struct {
	// Method names the called method in error messages.
	Method string
	Args   []any
	Env    method.Env
}

// ArgTypes returns the runtime type signature of the call. nil arguments
// render as "null" since they are assignable to every parameter type.
func (c Call) ArgTypes() []string {
	types := make([]string, len(c.Args))
	for i, a := range c.Args {
		if a == nil {
			types[i] = "null"
			continue
		}
		types[i] = ir.TypeOf(a)
	}
	return types
}

func (c Call) lookup(name string) (any, bool) {
	if c.Env == nil {
		return nil, false
	}
	return c.Env.Lookup(name)
}

// Matcher picks one descriptor out of a flat candidate list.
//
// Implementations must be deterministic: the same candidates and the same
// call always produce the same descriptor or the same error, whatever
// calls came before.
type Matcher interface {
	Select(candidates []*method.Descriptor, call Call) (*method.Descriptor, error)
}

// SpecificityMatcher chooses the most specific applicable candidate.
//
// A candidate is applicable when its arity equals the argument count, every
// argument is assignable to the declared parameter type, and every
// applicability domain contains the env value of its property. A missing
// env value never satisfies a domain.
//
// Candidate a dominates b when each parameter type of a is the same as or
// narrower than b's, and either some type is strictly narrower or the types
// are identical and a's applicability properties are a strict superset of
// b's. The unique undominated applicable candidate wins.
type SpecificityMatcher struct{}

// Select implements Matcher.
func (SpecificityMatcher) Select(candidates []*method.Descriptor, call Call) (*method.Descriptor, error) {
	unique := dedupe(candidates)

	var applicable []*method.Descriptor
	for _, d := range unique {
		if isApplicable(d, call) {
			applicable = append(applicable, d)
		}
	}
	if len(applicable) == 0 {
		return nil, &NoApplicableMethodError{
			Method:     call.Method,
			ArgTypes:   call.ArgTypes(),
			Candidates: len(unique),
		}
	}

	var maximal []*method.Descriptor
	for _, d := range applicable {
		dominated := slices.ContainsFunc(applicable, func(other *method.Descriptor) bool {
			return other != d && dominates(other, d)
		})
		if !dominated {
			maximal = append(maximal, d)
		}
	}

	if len(maximal) == 1 {
		return maximal[0], nil
	}
	sigs := make([]string, len(maximal))
	for i, d := range maximal {
		sigs[i] = d.Signature()
	}
	return nil, &AmbiguousMethodError{
		Method:     call.Method,
		ArgTypes:   call.ArgTypes(),
		Candidates: sigs,
	}
}

// dedupe drops repeated descriptors, keeping first occurrence order.
func dedupe(ds []*method.Descriptor) []*method.Descriptor {
	seen := make(map[*method.Descriptor]bool, len(ds))
	out := make([]*method.Descriptor, 0, len(ds))
	for _, d := range ds {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

func isApplicable(d *method.Descriptor, call Call) bool {
	if d.Arity() != len(call.Args) {
		return false
	}
	for i, t := range d.ParamTypes() {
		if !ir.Assignable(call.Args[i], t) {
			return false
		}
	}
	for _, key := range d.ApplicabilityKeys() {
		v, ok := call.lookup(key)
		if !ok || v == nil {
			return false
		}
		domain, _ := d.Applicability(key)
		if !domain.Contains(v) {
			return false
		}
	}
	return true
}

// dominates reports whether a is strictly more specific than b.
func dominates(a, b *method.Descriptor) bool {
	at, bt := a.ParamTypes(), b.ParamTypes()
	if len(at) != len(bt) {
		return false
	}
	narrower := false
	for i := range at {
		if !ir.IsSubtype(at[i], bt[i]) {
			return false
		}
		if at[i] != bt[i] {
			narrower = true
		}
	}
	if narrower {
		return true
	}
	return isStrictSuperset(a.ApplicabilityKeys(), b.ApplicabilityKeys())
}

// isStrictSuperset reports whether sorted a contains all of sorted b and
// more.
func isStrictSuperset(a, b []string) bool {
	if len(a) <= len(b) {
		return false
	}
	for _, k := range b {
		if _, found := slices.BinarySearch(a, k); !found {
			return false
		}
	}
	return true
}
