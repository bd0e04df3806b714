package storage

import "fmt"

// Layout names the physical representation chosen by OptimizeAndBuild.
type Layout string

const (
	LayoutEmpty    Layout = "empty"
	LayoutConstant Layout = "constant"
	LayoutIndexed  Layout = "indexed"
	LayoutArray    Layout = "array"
	LayoutScaled   Layout = "scaled"
)

// Info describes a built storage.
type Info struct {
	Layout Layout `json:"layout"`

	// Inner is the wrapped layout of a scaled storage.
	Inner Layout `json:"inner,omitempty"`

	// Size is the number of physical slots.
	Size int `json:"size"`

	// Written is the number of slots holding a value.
	Written int `json:"written"`

	// Distinct is the number of distinct values, or -1 when some value is
	// not comparable.
	Distinct int `json:"distinct"`

	// Multiplier is the row scale of a scaled storage, 1 otherwise.
	Multiplier int `json:"multiplier"`
}

func (i Info) String() string {
	layout := string(i.Layout)
	if i.Inner != "" {
		layout = fmt.Sprintf("%s(%s, x%d)", i.Layout, i.Inner, i.Multiplier)
	}
	return fmt.Sprintf("%s size=%d written=%d distinct=%d", layout, i.Size, i.Written, i.Distinct)
}

// Storage is an immutable, indexable column of values.
type Storage interface {
	// Get returns the value at index, or nil when the slot was never
	// written. Indices outside [0, Size()) fail with IndexOutOfRangeError.
	Get(index int) (any, error)
	Size() int
	Info() Info
}

// Builder accumulates (value, index) writes and freezes them into a Storage.
// A builder is owned by one compilation pass and is not safe for concurrent
// use.
type Builder interface {
	// WriteObject records value at index. Writing the same index twice
	// overwrites.
	WriteObject(value any, index int) error

	// Size is the number of logical slots accounted for.
	Size() int

	// Reserve extends the physical capacity to at least capacity slots
	// without changing Size.
	Reserve(capacity int)

	// OptimizeAndBuild freezes the builder. It may be called once.
	OptimizeAndBuild() (Storage, error)
}
