package storage

import "fmt"

// RowScale maps logical row indices onto physical slots when one authored
// row expands into Multiplier physical rows. ActualIndex must be injective
// over [0, logicalSize) into [0, logicalSize*Multiplier).
type RowScale interface {
	Multiplier() int
	ActualIndex(logical int) int
}

type multiplyScale struct {
	m int
}

// MultiplyScale lays each logical row out as a block of m consecutive
// physical slots: row i starts at i*m.
func MultiplyScale(m int) (RowScale, error) {
	if m < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMultiplier, m)
	}
	return multiplyScale{m: m}, nil
}

// IdentityScale is the pass-through scale with multiplier 1.
var IdentityScale RowScale = multiplyScale{m: 1}

func (s multiplyScale) Multiplier() int       { return s.m }
func (s multiplyScale) ActualIndex(i int) int { return i * s.m }
func (s multiplyScale) String() string        { return fmt.Sprintf("x%d", s.m) }

// ScaleStorageBuilder redirects logical writes into an inner builder through
// a RowScale.
type ScaleStorageBuilder struct {
	scale  RowScale
	inner  Builder
	sealed bool
}

// NewScaleStorageBuilder wraps inner. inner.Size() is the logical size; the
// inner capacity is extended to hold every physical slot.
func NewScaleStorageBuilder(scale RowScale, inner Builder) *ScaleStorageBuilder {
	inner.Reserve(inner.Size() * scale.Multiplier())
	return &ScaleStorageBuilder{scale: scale, inner: inner}
}

// Size is inner.Size() times the multiplier.
func (b *ScaleStorageBuilder) Size() int {
	return b.inner.Size() * b.scale.Multiplier()
}

// LogicalSize is the number of authored rows.
func (b *ScaleStorageBuilder) LogicalSize() int {
	return b.inner.Size()
}

func (b *ScaleStorageBuilder) Scale() RowScale { return b.scale }

// WriteObject writes value at the first physical slot of logical row index.
func (b *ScaleStorageBuilder) WriteObject(value any, index int) error {
	return b.WriteSlot(value, index, 0)
}

// WriteSlot writes value into slot k of logical row index, for expanded
// rows whose cells differ per physical slot.
func (b *ScaleStorageBuilder) WriteSlot(value any, index, k int) error {
	if b.sealed {
		return ErrBuilderSealed
	}
	if index < 0 || index >= b.inner.Size() {
		return &IndexOutOfRangeError{Index: index, Size: b.inner.Size()}
	}
	if k < 0 || k >= b.scale.Multiplier() {
		return &IndexOutOfRangeError{Index: k, Size: b.scale.Multiplier()}
	}
	return b.inner.WriteObject(value, b.scale.ActualIndex(index)+k)
}

// Reserve reserves capacity logical rows.
func (b *ScaleStorageBuilder) Reserve(capacity int) {
	b.inner.Reserve(capacity * b.scale.Multiplier())
}

// OptimizeAndBuild builds the inner storage and wraps it in a ScaledStorage.
func (b *ScaleStorageBuilder) OptimizeAndBuild() (Storage, error) {
	if b.sealed {
		return nil, ErrBuilderSealed
	}
	logical := b.inner.Size()
	inner, err := b.inner.OptimizeAndBuild()
	if err != nil {
		return nil, err
	}
	b.sealed = true
	return &ScaledStorage{inner: inner, scale: b.scale, logical: logical}, nil
}

// ScaledStorage reads an inner storage through a RowScale so callers only
// ever see logical indices.
type ScaledStorage struct {
	inner   Storage
	scale   RowScale
	logical int
}

// Get returns the value of logical row index, read from its first physical
// slot.
func (s *ScaledStorage) Get(index int) (any, error) {
	if index < 0 || index >= s.logical {
		return nil, &IndexOutOfRangeError{Index: index, Size: s.logical}
	}
	return s.inner.Get(s.scale.ActualIndex(index))
}

// Slot returns slot k of logical row index. An unwritten slot falls back to
// slot 0, so a cell written once applies to every expansion of its row.
func (s *ScaledStorage) Slot(index, k int) (any, error) {
	if index < 0 || index >= s.logical {
		return nil, &IndexOutOfRangeError{Index: index, Size: s.logical}
	}
	if k < 0 || k >= s.scale.Multiplier() {
		return nil, &IndexOutOfRangeError{Index: k, Size: s.scale.Multiplier()}
	}
	base := s.scale.ActualIndex(index)
	v, err := s.inner.Get(base + k)
	if err != nil || v != nil || k == 0 {
		return v, err
	}
	return s.inner.Get(base)
}

// Size is the physical size.
func (s *ScaledStorage) Size() int { return s.inner.Size() }

// LogicalSize is the number of logical rows.
func (s *ScaledStorage) LogicalSize() int { return s.logical }

func (s *ScaledStorage) Multiplier() int { return s.scale.Multiplier() }

// Unwrap returns the inner physical storage.
func (s *ScaledStorage) Unwrap() Storage { return s.inner }

func (s *ScaledStorage) Info() Info {
	info := s.inner.Info()
	info.Inner = info.Layout
	info.Layout = LayoutScaled
	info.Multiplier = s.scale.Multiplier()
	return info
}
