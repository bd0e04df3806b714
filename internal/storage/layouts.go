package storage

import "math"

type emptyStorage struct {
	size int
}

func (s emptyStorage) Get(index int) (any, error) {
	if index < 0 || index >= s.size {
		return nil, &IndexOutOfRangeError{Index: index, Size: s.size}
	}
	return nil, nil
}

func (s emptyStorage) Size() int { return s.size }

func (s emptyStorage) Info() Info {
	return Info{Layout: LayoutEmpty, Size: s.size, Multiplier: 1}
}

type constantStorage struct {
	value any
	info  Info
}

func (s constantStorage) Get(index int) (any, error) {
	if index < 0 || index >= s.info.Size {
		return nil, &IndexOutOfRangeError{Index: index, Size: s.info.Size}
	}
	return s.value, nil
}

func (s constantStorage) Size() int  { return s.info.Size }
func (s constantStorage) Info() Info { return s.info }

type arrayStorage struct {
	slots []any
	info  Info
}

func (s arrayStorage) Get(index int) (any, error) {
	if index < 0 || index >= len(s.slots) {
		return nil, &IndexOutOfRangeError{Index: index, Size: len(s.slots)}
	}
	return s.slots[index], nil
}

func (s arrayStorage) Size() int  { return len(s.slots) }
func (s arrayStorage) Info() Info { return s.info }

// indexedStorage keeps each distinct value once. refs[i] is 0 for an
// unwritten slot and position+1 in values otherwise.
type indexedStorage[T uint8 | uint16 | uint32] struct {
	values []any
	refs   []T
	info   Info
}

func (s indexedStorage[T]) Get(index int) (any, error) {
	if index < 0 || index >= len(s.refs) {
		return nil, &IndexOutOfRangeError{Index: index, Size: len(s.refs)}
	}
	ref := s.refs[index]
	if ref == 0 {
		return nil, nil
	}
	return s.values[ref-1], nil
}

func (s indexedStorage[T]) Size() int  { return len(s.refs) }
func (s indexedStorage[T]) Info() Info { return s.info }

func buildIndexed(slots []any, written []bool, distinct []any, info Info) Storage {
	switch {
	case len(distinct) < math.MaxUint8:
		return newIndexed[uint8](slots, written, distinct, info)
	case len(distinct) < math.MaxUint16:
		return newIndexed[uint16](slots, written, distinct, info)
	default:
		return newIndexed[uint32](slots, written, distinct, info)
	}
}

func newIndexed[T uint8 | uint16 | uint32](slots []any, written []bool, distinct []any, info Info) indexedStorage[T] {
	pos := make(map[any]T, len(distinct))
	for i, v := range distinct {
		pos[v] = T(i + 1)
	}
	refs := make([]T, len(slots))
	for i, v := range slots {
		if written[i] {
			refs[i] = pos[v]
		}
	}
	return indexedStorage[T]{values: distinct, refs: refs, info: info}
}
