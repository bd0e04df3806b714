package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
)

// ErrCollectorFinished is returned when a collector is used after its domain
// has been built.
var ErrCollectorFinished = errors.New("domain collector already finished")

// Collector gathers values of one kind from row properties.
//
// Thread-safety: a collector is owned by the compilation pass that created
// it and must not be shared.
type Collector interface {
	// AddPropertyToSearch adds a property name to watch. Other properties in
	// gathered rows are ignored.
	AddPropertyToSearch(name string)

	// GatherDomains extracts the watched values from one row's properties.
	// nil values are skipped; list values contribute each element.
	GatherDomains(props map[string]any) error

	// GatheredDomain finalizes the collector. ok is false when no value was
	// ever gathered.
	GatheredDomain() (Adaptor, bool)
}

// NewCollector returns a collector for the given kind.
func NewCollector(kind Kind) (Collector, error) {
	switch kind {
	case KindDate:
		return &dateCollector{watch: watchList{}}, nil
	case KindInt:
		return &intCollector{watch: watchList{}}, nil
	case KindString:
		return &stringCollector{watch: watchList{}}, nil
	default:
		return nil, fmt.Errorf("no collector for domain kind %q", kind)
	}
}

// watchList is the ordered set of property names a collector inspects.
type watchList struct {
	names    []string
	finished bool
}

func (w *watchList) add(name string) {
	name = ir.NormalizeName(name)
	if !slices.Contains(w.names, name) {
		w.names = append(w.names, name)
	}
}

// each calls fn for every non-nil watched value in props, flattening lists.
func (w *watchList) each(props map[string]any, fn func(name string, v any) error) error {
	if w.finished {
		return ErrCollectorFinished
	}
	for _, name := range w.names {
		v, ok := props[name]
		if !ok || v == nil {
			continue
		}
		if list, isList := v.([]any); isList {
			for _, elem := range list {
				if elem == nil {
					continue
				}
				if err := fn(name, elem); err != nil {
					return err
				}
			}
			continue
		}
		if err := fn(name, v); err != nil {
			return err
		}
	}
	return nil
}

type dateCollector struct {
	watch  watchList
	values []time.Time
}

func (c *dateCollector) AddPropertyToSearch(name string) { c.watch.add(name) }

func (c *dateCollector) GatherDomains(props map[string]any) error {
	return c.watch.each(props, func(name string, v any) error {
		t, err := ir.ParseDate(v)
		if err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
		c.values = append(c.values, t)
		return nil
	})
}

func (c *dateCollector) GatheredDomain() (Adaptor, bool) {
	c.watch.finished = true
	if len(c.values) == 0 {
		return nil, false
	}
	sorted := slices.Clone(c.values)
	slices.SortFunc(sorted, func(a, b time.Time) int { return a.Compare(b) })
	return DateRange{Min: sorted[0], Max: sorted[len(sorted)-1]}, true
}

type intCollector struct {
	watch  watchList
	values []int64
}

func (c *intCollector) AddPropertyToSearch(name string) { c.watch.add(name) }

func (c *intCollector) GatherDomains(props map[string]any) error {
	return c.watch.each(props, func(name string, v any) error {
		n, ok := asInt(v)
		if !ok {
			return fmt.Errorf("property %q: expected integer, got %T", name, v)
		}
		c.values = append(c.values, n)
		return nil
	})
}

func (c *intCollector) GatheredDomain() (Adaptor, bool) {
	c.watch.finished = true
	if len(c.values) == 0 {
		return nil, false
	}
	return IntRange{Min: slices.Min(c.values), Max: slices.Max(c.values)}, true
}

type stringCollector struct {
	watch  watchList
	values []string
}

func (c *stringCollector) AddPropertyToSearch(name string) { c.watch.add(name) }

func (c *stringCollector) GatherDomains(props map[string]any) error {
	return c.watch.each(props, func(name string, v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("property %q: expected string, got %T", name, v)
		}
		c.values = append(c.values, s)
		return nil
	})
}

func (c *stringCollector) GatheredDomain() (Adaptor, bool) {
	c.watch.finished = true
	if len(c.values) == 0 {
		return nil, false
	}
	return NewStringSet(c.values...), true
}
