package record

import (
	"math"
	"strconv"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindString represents a string value.
	KindString
	// KindInt represents a signed integer value.
	KindInt
	// KindFloat represents a float value.
	KindFloat
	// KindBool represents a boolean value.
	KindBool
)

// String returns the reference type name used in validation messages.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "str"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a small closed variant over the types a metadata field may
// carry: strings, signed integers, floats and booleans.
//
// The representation keeps filter evaluation free of reflection and is
// stable under JSON round-trips, which the store relies on for the
// metadata column.
type Value struct {
	Kind Kind    `json:"k"`
	S    string  `json:"s,omitempty"`
	I64  int64   `json:"i,omitempty"`
	F64  float64 `json:"f,omitempty"`
	B    bool    `json:"b,omitempty"`
}

// String returns a string Value.
func String(v string) Value { return Value{Kind: KindString, S: v} }

// Int returns an int64 Value.
func Int(v int64) Value { return Value{Kind: KindInt, I64: v} }

// Float returns a float64 Value.
func Float(v float64) Value { return Value{Kind: KindFloat, F64: v} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{Kind: KindBool, B: v} }

// AsString returns the string value if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.S, true
}

// AsInt64 returns the int64 value if Kind is KindInt.
func (v Value) AsInt64() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.I64, true
}

// AsFloat64 returns the float64 value if Kind is KindFloat.
func (v Value) AsFloat64() (float64, bool) {
	if v.Kind != KindFloat {
		return 0, false
	}
	return v.F64, true
}

// AsBool returns the boolean value if Kind is KindBool.
func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.B, true
}

// IsNumeric reports whether the value is an int or a float.
func (v Value) IsNumeric() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

// Float64 widens a numeric value to float64. It returns 0 for
// non-numeric values; callers must check IsNumeric first.
func (v Value) Float64() float64 {
	switch v.Kind {
	case KindInt:
		return float64(v.I64)
	case KindFloat:
		return v.F64
	default:
		return 0
	}
}

// Equal reports type-aware equality. Numeric values compare across
// int/float (3 equals 3.0); a string never equals a number; booleans
// only equal booleans.
func (v Value) Equal(o Value) bool {
	if v.IsNumeric() && o.IsNumeric() {
		// Prefer exact int compare when possible.
		if v.Kind == KindInt && o.Kind == KindInt {
			return v.I64 == o.I64
		}
		return v.Float64() == o.Float64()
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.S == o.S
	case KindBool:
		return v.B == o.B
	default:
		return false
	}
}

// String returns a literal rendering of the value for error messages.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.S
	case KindInt:
		return strconv.FormatInt(v.I64, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.B)
	default:
		return "invalid"
	}
}

// Metadata is the typed metadata document attached to one record.
//
// It is intentionally a typed model (map[string]Value) to keep filter
// evaluation fast. Legacy map[string]any input goes through the
// adapter helpers in this package.
type Metadata map[string]Value

// Clone creates a copy of the metadata document. Values have value
// semantics, so a shallow map copy is a full copy.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	clone := make(Metadata, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

// FromAny converts a Go value into a typed Value.
//
// This exists as an adapter layer for user input and JSON-decoded
// payloads. Unsupported types fail with a TypeError carrying the
// reference wording.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case float64:
		return Float(x), nil
	case float32:
		return Float(float64(x)), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Int(int64(x)), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return Value{}, newTypeErrorf("metadata uint64 out of range: %d", x)
		}
		return Int(int64(x)), nil
	default:
		return Value{}, newTypeErrorf("Expected metadata value to be a str, int, float or bool, got %v which is a %s", v, typeName(v))
	}
}

// MetadataFromAny converts a legacy map[string]any document to typed
// Metadata. Keys must be strings by construction; values must convert
// through FromAny.
func MetadataFromAny(md map[string]any) (Metadata, error) {
	m := make(Metadata, len(md))
	for k, v := range md {
		vv, err := FromAny(v)
		if err != nil {
			return nil, err
		}
		m[k] = vv
	}
	return m, nil
}

// typeName maps a Go value to the wire-level type name used in the
// stable validation messages.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case string:
		return "str"
	case bool:
		return "bool"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float32, float64:
		return "float"
	case []any, []string, []int, []float32, []float64:
		return "list"
	case map[string]any:
		return "dict"
	default:
		return "unknown"
	}
}
