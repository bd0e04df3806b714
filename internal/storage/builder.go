package storage

import (
	"math"
	"reflect"
	"slices"
)

// ArrayBuilder is the default Builder. It keeps a dense slot slice and picks
// the final layout from what was written.
type ArrayBuilder struct {
	size    int
	slots   []any
	written []bool
	sealed  bool
}

// NewBuilder creates a builder with size logical slots.
func NewBuilder(size int) *ArrayBuilder {
	size = max(size, 0)
	return &ArrayBuilder{
		size:    size,
		slots:   make([]any, size),
		written: make([]bool, size),
	}
}

// WriteObject records value at index. Writes at or past the capacity grow
// both capacity and Size.
func (b *ArrayBuilder) WriteObject(value any, index int) error {
	if b.sealed {
		return ErrBuilderSealed
	}
	if index < 0 {
		return &IndexOutOfRangeError{Index: index, Size: b.size}
	}
	if index >= len(b.slots) {
		b.grow(index + 1)
		b.size = index + 1
	}
	b.slots[index] = value
	b.written[index] = true
	return nil
}

func (b *ArrayBuilder) Size() int { return b.size }

// Reserve extends capacity. Size is unchanged.
func (b *ArrayBuilder) Reserve(capacity int) {
	if capacity > len(b.slots) {
		b.grow(capacity)
	}
}

func (b *ArrayBuilder) grow(n int) {
	b.slots = slices.Grow(b.slots, n-len(b.slots))[:n]
	b.written = slices.Grow(b.written, n-len(b.written))[:n]
}

// OptimizeAndBuild freezes the builder into the most compact layout that
// returns the same value for every slot:
//
//   - empty when nothing was written
//   - constant when every slot holds one equal value
//   - indexed when values are comparable and at most half the slots are
//     distinct
//   - array otherwise
func (b *ArrayBuilder) OptimizeAndBuild() (Storage, error) {
	if b.sealed {
		return nil, ErrBuilderSealed
	}
	b.sealed = true

	n := len(b.slots)
	written := 0
	for _, w := range b.written {
		if w {
			written++
		}
	}
	if written == 0 {
		return emptyStorage{size: n}, nil
	}

	distinct, comparable := distinctValues(b.slots, b.written)
	info := Info{Size: n, Written: written, Distinct: len(distinct), Multiplier: 1}
	if !comparable {
		info.Distinct = -1
	}

	switch {
	case comparable && written == n && len(distinct) == 1:
		info.Layout = LayoutConstant
		return constantStorage{value: distinct[0], info: info}, nil
	case comparable && len(distinct)*2 <= n:
		info.Layout = LayoutIndexed
		return buildIndexed(b.slots, b.written, distinct, info), nil
	default:
		info.Layout = LayoutArray
		return arrayStorage{slots: slices.Clone(b.slots), info: info}, nil
	}
}

// isKey reports whether v can be deduplicated through a map. NaN is
// rejected since it never equals itself.
func isKey(v any) bool {
	switch f := v.(type) {
	case nil:
		return true
	case float64:
		return !math.IsNaN(f)
	case float32:
		return !math.IsNaN(float64(f))
	}
	return reflect.ValueOf(v).Comparable()
}

// distinctValues returns written values in first-seen order. comparable is
// false as soon as one value cannot be a map key.
func distinctValues(slots []any, written []bool) (distinct []any, comparable bool) {
	seen := make(map[any]struct{})
	for i, v := range slots {
		if !written[i] {
			continue
		}
		if !isKey(v) {
			return nil, false
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		distinct = append(distinct, v)
	}
	return distinct, true
}
