package event

import (
	"encoding/json"
	"fmt"
)

// Kind tags the dynamic type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInteger
	KindFloat
	KindBool
	KindArray
)

// Value is the tagged-union representation used for parsed_fields and other
// per-request dynamic data. It replaces ad-hoc interface{} dispatch with a
// closed set of typed accessors.
type Value struct {
	kind Kind
	str  string
	i    int64
	f    float64
	b    bool
	arr  []Value
}

func Null() Value            { return Value{kind: KindNull} }
func String(s string) Value  { return Value{kind: KindString, str: s} }
func Integer(i int64) Value  { return Value{kind: KindInteger, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Array(vs []Value) Value { return Value{kind: KindArray, arr: vs} }

func (v Value) Kind() Kind { return v.kind }

// AsString returns the string payload and whether v held a string.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsInt64 returns the integer payload and whether v held an integer.
func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.i, true
}

// AsFloat64 returns the float payload, coercing an integer if needed.
func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInteger:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsBool returns the bool payload and whether v held a bool.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsArray returns the array payload and whether v held an array.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// FromAny converts a decoded JSON value (as produced by encoding/json's
// interface{} unmarshaling) into a Value.
func FromAny(a any) Value {
	switch x := a.(type) {
	case nil:
		return Null()
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case float64:
		if x == float64(int64(x)) {
			return Integer(int64(x))
		}
		return Float(x)
	case []any:
		out := make([]Value, 0, len(x))
		for _, e := range x {
			out = append(out, FromAny(e))
		}
		return Array(out)
	default:
		return String(fmt.Sprintf("%v", x))
	}
}

// MarshalJSON implements json.Marshaler so parsed_fields serializes as plain
// JSON for the store's JSON column.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindInteger:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.b)
	case KindArray:
		return json.Marshal(v.arr)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var a any
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*v = FromAny(a)
	return nil
}
