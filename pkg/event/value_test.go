package event

import (
	"encoding/json"
	"testing"
)

func TestFromAny_IntegerVsFloat(t *testing.T) {
	if k := FromAny(float64(42)).Kind(); k != KindInteger {
		t.Errorf("kind = %v, want KindInteger", k)
	}
	if k := FromAny(float64(4.2)).Kind(); k != KindFloat {
		t.Errorf("kind = %v, want KindFloat", k)
	}
}

func TestValue_JSONRoundTrip(t *testing.T) {
	orig := Array([]Value{String("a"), Integer(1), Bool(true), Null()})

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Value
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	arr, ok := got.AsArray()
	if !ok || len(arr) != 4 {
		t.Fatalf("AsArray() = %v, %v", arr, ok)
	}
	if s, _ := arr[0].AsString(); s != "a" {
		t.Errorf("arr[0] = %q, want %q", s, "a")
	}
	if i, _ := arr[1].AsInt64(); i != 1 {
		t.Errorf("arr[1] = %d, want 1", i)
	}
}

func TestAsFloat64_CoercesInteger(t *testing.T) {
	f, ok := Integer(7).AsFloat64()
	if !ok || f != 7 {
		t.Errorf("AsFloat64() = %v, %v, want 7, true", f, ok)
	}
}

func TestAccessors_WrongKindReturnsFalse(t *testing.T) {
	if _, ok := String("x").AsInt64(); ok {
		t.Error("expected AsInt64 on string to return false")
	}
	if _, ok := Integer(1).AsString(); ok {
		t.Error("expected AsString on integer to return false")
	}
}
