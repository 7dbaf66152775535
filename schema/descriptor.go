// Package schema defines type descriptors: the compile-time-known
// shapes that opaque terms are cast against. A descriptor names a type,
// its optional type parameters, and its variants; each variant carries
// a numeric tag assigned by declaration order (0-based) and an ordered
// field layout.
package schema

import (
	"fmt"
	"strings"
)

// Kind discriminates type references.
type Kind int

const (
	// KindInt is the arbitrary-precision integer primitive.
	KindInt Kind = iota
	// KindBytes is the byte-string primitive.
	KindBytes
	// KindBool is the built-in two-variant boolean (False = tag 0,
	// True = tag 1).
	KindBool
	// KindVoid is the built-in single-variant nullary type (tag 0).
	KindVoid
	// KindData matches any term without structural checks; validation
	// is deferred to a later, explicit cast.
	KindData
	// KindList is a homogeneous list; Args[0] is the element type.
	KindList
	// KindOption is the built-in presence type (Some = tag 0 carrying
	// one value, None = tag 1); Args[0] is the element type.
	KindOption
	// KindMap is an ordered pair sequence; Args[0] and Args[1] are the
	// key and value types.
	KindMap
	// KindNamed references a registered descriptor by name, with
	// optional type arguments.
	KindNamed
	// KindParam references an enclosing descriptor's type parameter.
	KindParam
)

// TypeRef is a reference to a type: a primitive, a parametric builtin,
// a named user type, or a type parameter.
type TypeRef struct {
	Kind Kind
	Name string    // for KindNamed and KindParam
	Args []TypeRef // for KindList, KindOption, KindMap, KindNamed
}

// Reference constructors.

func IntRef() TypeRef              { return TypeRef{Kind: KindInt} }
func BytesRef() TypeRef            { return TypeRef{Kind: KindBytes} }
func BoolRef() TypeRef             { return TypeRef{Kind: KindBool} }
func VoidRef() TypeRef             { return TypeRef{Kind: KindVoid} }
func DataRef() TypeRef             { return TypeRef{Kind: KindData} }
func ListOf(elem TypeRef) TypeRef  { return TypeRef{Kind: KindList, Args: []TypeRef{elem}} }
func OptionOf(elem TypeRef) TypeRef {
	return TypeRef{Kind: KindOption, Args: []TypeRef{elem}}
}
func MapOf(key, value TypeRef) TypeRef {
	return TypeRef{Kind: KindMap, Args: []TypeRef{key, value}}
}
func Named(name string, args ...TypeRef) TypeRef {
	return TypeRef{Kind: KindNamed, Name: name, Args: args}
}
func Param(name string) TypeRef { return TypeRef{Kind: KindParam, Name: name} }

// Equal reports whether two references denote the same type.
func (r TypeRef) Equal(o TypeRef) bool {
	if r.Kind != o.Kind || r.Name != o.Name || len(r.Args) != len(o.Args) {
		return false
	}
	for i := range r.Args {
		if !r.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

// String renders the reference in manifest syntax, e.g. "List<Int>".
func (r TypeRef) String() string {
	base := ""
	switch r.Kind {
	case KindInt:
		return "Int"
	case KindBytes:
		return "ByteArray"
	case KindBool:
		return "Bool"
	case KindVoid:
		return "Void"
	case KindData:
		return "Data"
	case KindList:
		base = "List"
	case KindOption:
		base = "Option"
	case KindMap:
		base = "Map"
	case KindNamed, KindParam:
		base = r.Name
	}
	if len(r.Args) == 0 {
		return base
	}
	parts := make([]string, len(r.Args))
	for i, a := range r.Args {
		parts[i] = a.String()
	}
	return base + "<" + strings.Join(parts, ", ") + ">"
}

// ---------------------------------------------------------------------------
// Descriptors
// ---------------------------------------------------------------------------

// TypeDescriptor is the schema of one declared type.
type TypeDescriptor struct {
	Name     string
	Params   []string
	Variants []VariantDescriptor
}

// VariantDescriptor is one constructor alternative of a type. Tags are
// assigned by declaration order, 0-based; explicit tag annotations are
// not supported.
type VariantDescriptor struct {
	Name   string
	Tag    uint64
	Fields []FieldDescriptor
}

// FieldDescriptor is one field of a variant. Name may be empty for
// positional fields.
type FieldDescriptor struct {
	Name string
	Type TypeRef
}

// NewType builds a descriptor, assigning variant tags by declaration
// order.
func NewType(name string, params []string, variants ...VariantDescriptor) *TypeDescriptor {
	for i := range variants {
		variants[i].Tag = uint64(i)
	}
	return &TypeDescriptor{Name: name, Params: params, Variants: variants}
}

// NewVariant builds a variant descriptor; its tag is assigned when the
// variant is attached to a type.
func NewVariant(name string, fields ...FieldDescriptor) VariantDescriptor {
	return VariantDescriptor{Name: name, Fields: fields}
}

// Field builds a named field descriptor.
func Field(name string, typ TypeRef) FieldDescriptor {
	return FieldDescriptor{Name: name, Type: typ}
}

// PositionalField builds an unnamed field descriptor.
func PositionalField(typ TypeRef) FieldDescriptor {
	return FieldDescriptor{Type: typ}
}

// VariantByTag returns the variant with the given tag, or nil.
func (d *TypeDescriptor) VariantByTag(tag uint64) *VariantDescriptor {
	if tag >= uint64(len(d.Variants)) {
		return nil
	}
	return &d.Variants[tag]
}

// VariantByName returns the variant with the given name, or nil.
func (d *TypeDescriptor) VariantByName(name string) *VariantDescriptor {
	for i := range d.Variants {
		if d.Variants[i].Name == name {
			return &d.Variants[i]
		}
	}
	return nil
}

// Validate checks descriptor well-formedness: a non-empty name, at
// least one variant, unique variant names, unique non-empty field
// names within each variant, and type parameters referenced by fields
// all declared.
func (d *TypeDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("schema: descriptor has no name")
	}
	if len(d.Variants) == 0 {
		return fmt.Errorf("schema: type %s has no variants", d.Name)
	}
	params := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		if params[p] {
			return fmt.Errorf("schema: type %s declares parameter %s twice", d.Name, p)
		}
		params[p] = true
	}
	seenVariant := make(map[string]bool, len(d.Variants))
	for i, v := range d.Variants {
		if v.Name == "" {
			return fmt.Errorf("schema: type %s variant %d has no name", d.Name, i)
		}
		if seenVariant[v.Name] {
			return fmt.Errorf("schema: type %s declares variant %s twice", d.Name, v.Name)
		}
		seenVariant[v.Name] = true
		if v.Tag != uint64(i) {
			return fmt.Errorf("schema: type %s variant %s has tag %d, want declaration order %d",
				d.Name, v.Name, v.Tag, i)
		}
		seenField := make(map[string]bool, len(v.Fields))
		for _, f := range v.Fields {
			if f.Name != "" {
				if seenField[f.Name] {
					return fmt.Errorf("schema: type %s variant %s declares field %s twice",
						d.Name, v.Name, f.Name)
				}
				seenField[f.Name] = true
			}
			if err := checkParamsDeclared(f.Type, params); err != nil {
				return fmt.Errorf("schema: type %s variant %s: %w", d.Name, v.Name, err)
			}
		}
	}
	return nil
}

func checkParamsDeclared(ref TypeRef, params map[string]bool) error {
	if ref.Kind == KindParam && !params[ref.Name] {
		return fmt.Errorf("undeclared type parameter %s", ref.Name)
	}
	for _, a := range ref.Args {
		if err := checkParamsDeclared(a, params); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Built-in descriptors
// ---------------------------------------------------------------------------

// Tags of the built-in boolean and option encodings. These conventions
// are fixed: changing them changes the wire meaning of every boolean
// and optional value.
const (
	FalseTag uint64 = 0
	TrueTag  uint64 = 1
	SomeTag  uint64 = 0
	NoneTag  uint64 = 1
	VoidTag  uint64 = 0
)

// BoolDescriptor returns the built-in two-variant boolean type.
func BoolDescriptor() *TypeDescriptor {
	return NewType("Bool", nil,
		NewVariant("False"),
		NewVariant("True"),
	)
}

// OptionDescriptor returns the built-in presence type: Some carries a
// single value of the element type, None carries nothing.
func OptionDescriptor() *TypeDescriptor {
	return NewType("Option", []string{"a"},
		NewVariant("Some", PositionalField(Param("a"))),
		NewVariant("None"),
	)
}

// VoidDescriptor returns the built-in nullary type.
func VoidDescriptor() *TypeDescriptor {
	return NewType("Void", nil, NewVariant("Void"))
}

// Instantiate substitutes type arguments for the descriptor's
// parameters, producing a concrete descriptor.
func (d *TypeDescriptor) Instantiate(args []TypeRef) (*TypeDescriptor, error) {
	if len(args) != len(d.Params) {
		return nil, fmt.Errorf("schema: type %s wants %d type arguments, got %d",
			d.Name, len(d.Params), len(args))
	}
	if len(args) == 0 {
		return d, nil
	}
	subst := make(map[string]TypeRef, len(args))
	for i, p := range d.Params {
		subst[p] = args[i]
	}
	inst := &TypeDescriptor{Name: d.Name, Variants: make([]VariantDescriptor, len(d.Variants))}
	for i, v := range d.Variants {
		fields := make([]FieldDescriptor, len(v.Fields))
		for j, f := range v.Fields {
			fields[j] = FieldDescriptor{Name: f.Name, Type: substitute(f.Type, subst)}
		}
		inst.Variants[i] = VariantDescriptor{Name: v.Name, Tag: v.Tag, Fields: fields}
	}
	return inst, nil
}

func substitute(ref TypeRef, subst map[string]TypeRef) TypeRef {
	if ref.Kind == KindParam {
		if r, ok := subst[ref.Name]; ok {
			return r
		}
		return ref
	}
	if len(ref.Args) == 0 {
		return ref
	}
	args := make([]TypeRef, len(ref.Args))
	for i, a := range ref.Args {
		args[i] = substitute(a, subst)
	}
	return TypeRef{Kind: ref.Kind, Name: ref.Name, Args: args}
}
