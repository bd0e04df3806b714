package method

import (
	"maps"
	"slices"
)

// Env is the runtime environment of a call: the property values that
// applicability domains and rule bodies read (currentDate, region, ...).
type Env interface {
	Lookup(name string) (any, bool)
}

// MapEnv is an Env backed by a map. It must not be modified once a call
// that uses it has started.
type MapEnv map[string]any

// Lookup returns the value for name.
func (m MapEnv) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// EmptyEnv has no values.
var EmptyEnv Env = MapEnv(nil)

// Overlay returns an env that resolves names in top first, then in base.
func Overlay(base Env, top map[string]any) Env {
	if base == nil {
		base = EmptyEnv
	}
	return overlayEnv{base: base, top: maps.Clone(top)}
}

type overlayEnv struct {
	base Env
	top  map[string]any
}

func (o overlayEnv) Lookup(name string) (any, bool) {
	if v, ok := o.top[name]; ok {
		return v, true
	}
	return o.base.Lookup(name)
}

// KeyedEnv is an Env that can list its property names.
type KeyedEnv interface {
	Env
	Keys() []string
}

// Keys returns the property names, sorted.
func (m MapEnv) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// Keys returns the names of top and, when base is keyed, base.
func (o overlayEnv) Keys() []string {
	seen := make(map[string]bool)
	for k := range o.top {
		seen[k] = true
	}
	if keyed, ok := o.base.(KeyedEnv); ok {
		for _, k := range keyed.Keys() {
			seen[k] = true
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Snapshot copies every listed property of env into a map. Envs that cannot
// list their keys yield an empty map.
func Snapshot(env Env) map[string]any {
	out := make(map[string]any)
	keyed, ok := env.(KeyedEnv)
	if !ok {
		return out
	}
	for _, k := range keyed.Keys() {
		if v, ok := env.Lookup(k); ok {
			out[k] = v
		}
	}
	return out
}
