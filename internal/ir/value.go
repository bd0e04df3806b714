package ir

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Type names used for method parameters and return values.
const (
	TypeAny    = "any"
	TypeNumber = "number"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeString = "string"
	TypeBool   = "bool"
	TypeDate   = "date"
	TypeList   = "list"
	TypeMap    = "map"
)

// ValidTypes defines the allowed parameter type names.
var ValidTypes = map[string]bool{
	TypeAny:    true,
	TypeNumber: true,
	TypeInt:    true,
	TypeFloat:  true,
	TypeString: true,
	TypeBool:   true,
	TypeDate:   true,
	TypeList:   true,
	TypeMap:    true,
}

// parentType is the immediate supertype of each type name. TypeAny is the root.
var parentType = map[string]string{
	TypeNumber: TypeAny,
	TypeInt:    TypeNumber,
	TypeFloat:  TypeNumber,
	TypeString: TypeAny,
	TypeBool:   TypeAny,
	TypeDate:   TypeAny,
	TypeList:   TypeAny,
	TypeMap:    TypeAny,
}

// DateLayouts are the accepted textual date forms, tried in order.
var DateLayouts = []string{"2006-01-02", time.RFC3339}

// NormalizeName trims and NFC-normalizes an identifier so that visually equal
// names authored in different encodings resolve to the same method or property.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// NormalizeValue maps Go values onto the small set of runtime representations
// used by the engine: int64, float64, string, bool, time.Time, []any and
// map[string]any. Unknown types are returned unchanged.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = NormalizeValue(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = NormalizeValue(elem)
		}
		return out
	default:
		return v
	}
}

// TypeOf returns the type name of a normalized runtime value.
// nil reports TypeAny.
func TypeOf(v any) string {
	switch NormalizeValue(v).(type) {
	case int64:
		return TypeInt
	case float64:
		return TypeFloat
	case string:
		return TypeString
	case bool:
		return TypeBool
	case time.Time:
		return TypeDate
	case []any:
		return TypeList
	case map[string]any:
		return TypeMap
	default:
		return TypeAny
	}
}

// IsSubtype reports whether sub is the same as or narrower than super.
func IsSubtype(sub, super string) bool {
	for t := sub; t != ""; t = parentType[t] {
		if t == super {
			return true
		}
	}
	return false
}

// Assignable reports whether a runtime value may be passed to a parameter of
// the given type. nil is assignable to every type.
func Assignable(v any, paramType string) bool {
	if v == nil {
		return true
	}
	return IsSubtype(TypeOf(v), paramType)
}

// ParseDate accepts a time.Time or a string in one of DateLayouts.
func ParseDate(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		for _, layout := range DateLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", val)
	default:
		return time.Time{}, fmt.Errorf("invalid date: unsupported type %T", v)
	}
}

// Compare orders two normalized scalar values of compatible kinds.
// Numbers compare across int64/float64. ok is false for incomparable kinds
// and for NaN, which is unordered against every number.
func Compare(a, b any) (cmp int, ok bool) {
	a, b = NormalizeValue(a), NormalizeValue(b)
	if af, aNum := toFloat(a); aNum {
		if bf, bNum := toFloat(b); bNum {
			if math.IsNaN(af) || math.IsNaN(bf) {
				return 0, false
			}
			if ai, aInt := a.(int64); aInt {
				if bi, bInt := b.(int64); bInt {
					return compareOrdered(ai, bi), true
				}
			}
			return compareOrdered(af, bf), true
		}
		return 0, false
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, true
			case !av:
				return -1, true
			default:
				return 1, true
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv), true
		}
	}
	return 0, false
}

// Equal reports whether two values are equal under Compare, falling back to
// Go equality for comparable values of other kinds.
func Equal(a, b any) bool {
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func compareOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
