package vm

import (
	"testing"

	"github.com/chazu/verdict/schema"
)

func TestNewConstrValue(t *testing.T) {
	reg := testRegistry(t)

	v, err := NewConstrValue(reg, schema.Named("OutRef"), "OutRef",
		NewBytesValue([]byte{0x01}), NewIntValue(3))
	if err != nil {
		t.Fatalf("NewConstrValue: %v", err)
	}
	if v.Variant().Name != "OutRef" || v.Tag != 0 {
		t.Errorf("constructed %s", v)
	}
	idx, ok := v.FieldByName("index")
	if !ok || !idx.Equal(NewIntValue(3)) {
		t.Errorf("FieldByName(index) = %v, %v", idx, ok)
	}
	if _, ok := v.FieldByName("nope"); ok {
		t.Error("FieldByName of unknown field should fail")
	}

	if _, err := NewConstrValue(reg, schema.Named("OutRef"), "Bogus"); err == nil {
		t.Error("unknown variant should fail")
	}
	if _, err := NewConstrValue(reg, schema.Named("OutRef"), "OutRef", NewIntValue(1)); err == nil {
		t.Error("wrong arity should fail")
	}
}

func TestBoolValues(t *testing.T) {
	reg := testRegistry(t)

	tr := NewBoolValue(reg, true)
	fl := NewBoolValue(reg, false)
	if b, ok := AsBool(tr); !ok || !b {
		t.Errorf("AsBool(true) = %v, %v", b, ok)
	}
	if b, ok := AsBool(fl); !ok || b {
		t.Errorf("AsBool(false) = %v, %v", b, ok)
	}
	if _, ok := AsBool(NewIntValue(1)); ok {
		t.Error("AsBool of an integer should fail")
	}
	if tr.Equal(fl) {
		t.Error("true should not equal false")
	}
}

func TestValueEqualAcrossKinds(t *testing.T) {
	reg := testRegistry(t)

	void1, _ := NewConstrValue(reg, schema.VoidRef(), "Void")
	fl := NewBoolValue(reg, false)
	// Same tag and arity, different type names.
	if void1.Equal(fl) {
		t.Error("Void should not equal Bool.False despite identical structure")
	}

	l1 := ListValue{Elem: schema.IntRef(), Items: []Value{NewIntValue(1)}}
	l2 := ListValue{Elem: schema.IntRef(), Items: []Value{NewIntValue(1)}}
	if !l1.Equal(l2) {
		t.Error("equal lists should compare equal")
	}
}

func TestTypeOf(t *testing.T) {
	reg := testRegistry(t)

	v, err := NewConstrValue(reg, schema.Named("OutRef"), "OutRef",
		NewBytesValue(nil), NewIntValue(0))
	if err != nil {
		t.Fatalf("NewConstrValue: %v", err)
	}
	tests := []struct {
		value Value
		want  schema.TypeRef
	}{
		{NewIntValue(1), schema.IntRef()},
		{NewBytesValue(nil), schema.BytesRef()},
		{ListValue{Elem: schema.IntRef()}, schema.ListOf(schema.IntRef())},
		{MapValue{Key: schema.BytesRef(), Val: schema.IntRef()}, schema.MapOf(schema.BytesRef(), schema.IntRef())},
		{v, schema.Named("OutRef")},
	}
	for _, tt := range tests {
		if got := TypeOf(tt.value); !got.Equal(tt.want) {
			t.Errorf("TypeOf(%s) = %s, want %s", tt.value, got, tt.want)
		}
	}
}
