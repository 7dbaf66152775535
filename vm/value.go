// Package vm implements the typed value model, the checked caster
// between opaque terms and typed values, the pattern matcher, and the
// validator evaluator. Evaluation is a pure function: values are
// immutable, no state persists across calls, and concurrent
// evaluations share only the read-only type registry.
package vm

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/chazu/verdict/data"
	"github.com/chazu/verdict/schema"
)

// Value is a typed runtime value: a primitive, a container, a
// constructed value of a declared type, or an opaque Data wrapper
// whose validation has been deferred.
type Value interface {
	// Equal reports structural equality. Constructed values also
	// require the same type name.
	Equal(other Value) bool

	fmt.Stringer

	isValue()
}

// IntValue is an arbitrary-precision integer.
type IntValue struct {
	Value *big.Int
}

// BytesValue is a byte string.
type BytesValue struct {
	Value []byte
}

// ListValue is a homogeneous list; Elem records the declared element
// type.
type ListValue struct {
	Elem  schema.TypeRef
	Items []Value
}

// MapValue is an ordered pair sequence with declared key/value types.
type MapValue struct {
	Key   schema.TypeRef
	Val   schema.TypeRef
	Pairs []MapEntry
}

// MapEntry is one key/value pair of a MapValue.
type MapEntry struct {
	K Value
	V Value
}

// DataValue wraps a raw term under the universal Data type. Structural
// validation is deferred until an explicit downcast.
type DataValue struct {
	Term data.Term
}

// ConstrValue is a constructed value of a declared type: the resolved
// descriptor, the selected variant's tag, and one bound value per
// declared field.
type ConstrValue struct {
	Type   *schema.TypeDescriptor
	Ref    schema.TypeRef
	Tag    uint64
	Fields []Value
}

func (IntValue) isValue()    {}
func (BytesValue) isValue()  {}
func (ListValue) isValue()   {}
func (MapValue) isValue()    {}
func (DataValue) isValue()   {}
func (ConstrValue) isValue() {}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// NewIntValue builds an integer value from an int64.
func NewIntValue(n int64) IntValue {
	return IntValue{Value: big.NewInt(n)}
}

// NewBytesValue builds a byte-string value; the input is copied.
func NewBytesValue(b []byte) BytesValue {
	cp := make([]byte, len(b))
	copy(cp, b)
	return BytesValue{Value: cp}
}

// NewConstrValue builds a constructed value of the referenced type,
// selecting a variant by name. Field count must match the variant's
// declared arity; field types are not re-checked here (the caster is
// the checked path from untyped data).
func NewConstrValue(reg *schema.Registry, ref schema.TypeRef, variant string, fields ...Value) (ConstrValue, error) {
	desc, err := reg.Resolve(ref)
	if err != nil {
		return ConstrValue{}, err
	}
	v := desc.VariantByName(variant)
	if v == nil {
		return ConstrValue{}, fmt.Errorf("vm: type %s has no variant %s", desc.Name, variant)
	}
	if len(fields) != len(v.Fields) {
		return ConstrValue{}, fmt.Errorf("vm: variant %s.%s wants %d fields, got %d",
			desc.Name, variant, len(v.Fields), len(fields))
	}
	return ConstrValue{Type: desc, Ref: ref, Tag: v.Tag, Fields: fields}, nil
}

// NewBoolValue builds a boolean (False = tag 0, True = tag 1).
func NewBoolValue(reg *schema.Registry, b bool) ConstrValue {
	desc, err := reg.Lookup("Bool")
	if err != nil {
		panic("vm: Bool descriptor missing from registry")
	}
	tag := schema.FalseTag
	if b {
		tag = schema.TrueTag
	}
	return ConstrValue{Type: desc, Ref: schema.BoolRef(), Tag: tag}
}

// Variant returns the selected variant's descriptor.
func (c ConstrValue) Variant() *schema.VariantDescriptor {
	return c.Type.VariantByTag(c.Tag)
}

// FieldByName returns the bound value of the named field of the
// selected variant.
func (c ConstrValue) FieldByName(name string) (Value, bool) {
	v := c.Variant()
	if v == nil {
		return nil, false
	}
	for i, f := range v.Fields {
		if f.Name == name {
			return c.Fields[i], true
		}
	}
	return nil, false
}

// AsBool unwraps a boolean value. The second result is false when the
// value is not of the built-in Bool type.
func AsBool(v Value) (bool, bool) {
	c, ok := v.(ConstrValue)
	if !ok || c.Type.Name != "Bool" {
		return false, false
	}
	return c.Tag == schema.TrueTag, true
}

// TypeOf returns the type reference a value would cast back from, such
// that Cast(Uncast(v), TypeOf(v)) == v.
func TypeOf(v Value) schema.TypeRef {
	switch t := v.(type) {
	case IntValue:
		return schema.IntRef()
	case BytesValue:
		return schema.BytesRef()
	case ListValue:
		return schema.ListOf(t.Elem)
	case MapValue:
		return schema.MapOf(t.Key, t.Val)
	case DataValue:
		return schema.DataRef()
	case ConstrValue:
		return t.Ref
	default:
		panic(fmt.Sprintf("vm: unknown value type %T", v))
	}
}

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

func (n IntValue) Equal(other Value) bool {
	o, ok := other.(IntValue)
	return ok && n.Value.Cmp(o.Value) == 0
}

func (b BytesValue) Equal(other Value) bool {
	o, ok := other.(BytesValue)
	return ok && bytes.Equal(b.Value, o.Value)
}

func (l ListValue) Equal(other Value) bool {
	o, ok := other.(ListValue)
	if !ok || len(l.Items) != len(o.Items) {
		return false
	}
	for i, it := range l.Items {
		if !it.Equal(o.Items[i]) {
			return false
		}
	}
	return true
}

func (m MapValue) Equal(other Value) bool {
	o, ok := other.(MapValue)
	if !ok || len(m.Pairs) != len(o.Pairs) {
		return false
	}
	for i, p := range m.Pairs {
		if !p.K.Equal(o.Pairs[i].K) || !p.V.Equal(o.Pairs[i].V) {
			return false
		}
	}
	return true
}

func (d DataValue) Equal(other Value) bool {
	o, ok := other.(DataValue)
	return ok && d.Term.Equal(o.Term)
}

func (c ConstrValue) Equal(other Value) bool {
	o, ok := other.(ConstrValue)
	if !ok || c.Type.Name != o.Type.Name || c.Tag != o.Tag || len(c.Fields) != len(o.Fields) {
		return false
	}
	for i, f := range c.Fields {
		if !f.Equal(o.Fields[i]) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func (n IntValue) String() string {
	return n.Value.String()
}

func (b BytesValue) String() string {
	return fmt.Sprintf("#%x", b.Value)
}

func (l ListValue) String() string {
	parts := make([]string, len(l.Items))
	for i, it := range l.Items {
		parts[i] = it.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (m MapValue) String() string {
	parts := make([]string, len(m.Pairs))
	for i, p := range m.Pairs {
		parts[i] = p.K.String() + ": " + p.V.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (d DataValue) String() string {
	return "Data(" + d.Term.String() + ")"
}

func (c ConstrValue) String() string {
	name := fmt.Sprintf("%s#%d", c.Type.Name, c.Tag)
	if v := c.Variant(); v != nil {
		name = c.Type.Name + "." + v.Name
	}
	if len(c.Fields) == 0 {
		return name
	}
	parts := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		parts[i] = f.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}
