package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
)

// Kind identifies the value kind a domain ranges over.
type Kind string

const (
	KindDate   Kind = "date"
	KindInt    Kind = "int"
	KindString Kind = "string"
)

// ParseKind validates a kind name. Empty is valid and means "no domain".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindDate, KindInt, KindString, "":
		return Kind(s), nil
	default:
		return "", fmt.Errorf("invalid domain kind %q: must be date, int, or string", s)
	}
}

// Adaptor is a compiled value domain.
type Adaptor interface {
	// Contains reports whether a runtime value falls inside the domain.
	// Values of the wrong kind are never contained.
	Contains(v any) bool
	Kind() Kind
	String() string
}

// DateRange is an inclusive [Min, Max] interval of instants.
type DateRange struct {
	Min time.Time
	Max time.Time
}

// Contains accepts time.Time values and parseable date strings.
func (r DateRange) Contains(v any) bool {
	t, err := ir.ParseDate(v)
	if err != nil {
		return false
	}
	return !t.Before(r.Min) && !t.After(r.Max)
}

func (r DateRange) Kind() Kind { return KindDate }

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s]", r.Min.Format("2006-01-02"), r.Max.Format("2006-01-02"))
}

// IntRange is an inclusive [Min, Max] integer interval.
type IntRange struct {
	Min int64
	Max int64
}

// Contains accepts integers and integral floats.
func (r IntRange) Contains(v any) bool {
	n, ok := asInt(v)
	if !ok {
		return false
	}
	return n >= r.Min && n <= r.Max
}

func (r IntRange) Kind() Kind { return KindInt }

func (r IntRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

// StringSet is a finite set of strings.
type StringSet struct {
	values []string // sorted, unique
}

// NewStringSet builds a set from values. Order and duplicates are irrelevant.
func NewStringSet(values ...string) StringSet {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return StringSet{values: slices.Compact(sorted)}
}

func (s StringSet) Contains(v any) bool {
	str, ok := v.(string)
	if !ok {
		return false
	}
	_, found := slices.BinarySearch(s.values, str)
	return found
}

func (s StringSet) Kind() Kind { return KindString }

// Values returns the sorted members.
func (s StringSet) Values() []string {
	return slices.Clone(s.values)
}

func (s StringSet) String() string {
	return "{" + strings.Join(s.values, ", ") + "}"
}

func asInt(v any) (int64, bool) {
	switch n := ir.NormalizeValue(v).(type) {
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
