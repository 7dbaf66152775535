package vm

import (
	"fmt"

	"github.com/chazu/verdict/data"
	"github.com/chazu/verdict/schema"
)

// Cast lifts an opaque term into a typed value of the referenced type.
// It is the checked half of the conversion pair: the term's structure
// must conform to the target type, and any mismatch fails the whole
// cast with ErrShapeMismatch; there are no partial results. The
// inverse, Uncast, is total.
//
// Casting to Data always succeeds and simply wraps the term; the
// structural check is deferred to a later, explicit cast.
func Cast(term data.Term, ref schema.TypeRef, reg *schema.Registry, b *Budget) (Value, error) {
	if err := b.Spend(); err != nil {
		return nil, err
	}
	switch ref.Kind {
	case schema.KindInt:
		n, ok := term.(data.Integer)
		if !ok {
			return nil, mismatch(term, ref)
		}
		return IntValue{Value: n.Value}, nil

	case schema.KindBytes:
		bs, ok := term.(data.Bytes)
		if !ok {
			return nil, mismatch(term, ref)
		}
		return BytesValue{Value: bs.Value}, nil

	case schema.KindData:
		return DataValue{Term: term}, nil

	case schema.KindList:
		list, ok := term.(data.List)
		if !ok {
			return nil, mismatch(term, ref)
		}
		items := make([]Value, len(list.Items))
		for i, it := range list.Items {
			v, err := Cast(it, ref.Args[0], reg, b)
			if err != nil {
				return nil, fmt.Errorf("vm: element %d of %s: %w", i, ref, err)
			}
			items[i] = v
		}
		return ListValue{Elem: ref.Args[0], Items: items}, nil

	case schema.KindMap:
		m, ok := term.(data.Map)
		if !ok {
			return nil, mismatch(term, ref)
		}
		pairs := make([]MapEntry, len(m.Pairs))
		for i, p := range m.Pairs {
			k, err := Cast(p.Key, ref.Args[0], reg, b)
			if err != nil {
				return nil, fmt.Errorf("vm: key %d of %s: %w", i, ref, err)
			}
			v, err := Cast(p.Value, ref.Args[1], reg, b)
			if err != nil {
				return nil, fmt.Errorf("vm: value %d of %s: %w", i, ref, err)
			}
			pairs[i] = MapEntry{K: k, V: v}
		}
		return MapValue{Key: ref.Args[0], Val: ref.Args[1], Pairs: pairs}, nil

	default:
		return castConstr(term, ref, reg, b)
	}
}

// castConstr handles variant-bearing targets: the term must be a
// constructor whose tag selects one of the descriptor's variants (tags
// follow declaration order, 0-based) and whose field count matches
// that variant exactly.
func castConstr(term data.Term, ref schema.TypeRef, reg *schema.Registry, b *Budget) (Value, error) {
	desc, err := reg.Resolve(ref)
	if err != nil {
		return nil, err
	}
	c, ok := term.(data.Constr)
	if !ok {
		return nil, mismatch(term, ref)
	}
	variant := desc.VariantByTag(c.Tag)
	if variant == nil {
		return nil, fmt.Errorf("vm: tag %d selects no variant of %s (%d variants): %w",
			c.Tag, desc.Name, len(desc.Variants), ErrShapeMismatch)
	}
	if len(c.Fields) != len(variant.Fields) {
		return nil, fmt.Errorf("vm: variant %s.%s wants %d fields, term has %d: %w",
			desc.Name, variant.Name, len(variant.Fields), len(c.Fields), ErrShapeMismatch)
	}
	fields := make([]Value, len(c.Fields))
	for i, ft := range c.Fields {
		fv, err := Cast(ft, variant.Fields[i].Type, reg, b)
		if err != nil {
			return nil, fmt.Errorf("vm: field %s of %s.%s: %w",
				fieldLabel(variant.Fields[i], i), desc.Name, variant.Name, err)
		}
		fields[i] = fv
	}
	return ConstrValue{Type: desc, Ref: ref, Tag: c.Tag, Fields: fields}, nil
}

// Uncast projects a typed value back to its opaque term. It is total
// and lossless: Cast(Uncast(v), TypeOf(v)) == v for every value v.
func Uncast(v Value) data.Term {
	switch t := v.(type) {
	case IntValue:
		return data.Integer{Value: t.Value}
	case BytesValue:
		return data.Bytes{Value: t.Value}
	case ListValue:
		items := make([]data.Term, len(t.Items))
		for i, it := range t.Items {
			items[i] = Uncast(it)
		}
		return data.List{Items: items}
	case MapValue:
		pairs := make([]data.Pair, len(t.Pairs))
		for i, p := range t.Pairs {
			pairs[i] = data.Pair{Key: Uncast(p.K), Value: Uncast(p.V)}
		}
		return data.Map{Pairs: pairs}
	case DataValue:
		return t.Term
	case ConstrValue:
		fields := make([]data.Term, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = Uncast(f)
		}
		return data.Constr{Tag: t.Tag, Fields: fields}
	default:
		panic(fmt.Sprintf("vm: unknown value type %T", v))
	}
}

func mismatch(term data.Term, ref schema.TypeRef) error {
	return fmt.Errorf("vm: cannot cast %s to %s: %w", term, ref, ErrShapeMismatch)
}

func fieldLabel(f schema.FieldDescriptor, idx int) string {
	if f.Name != "" {
		return f.Name
	}
	return fmt.Sprintf("%d", idx)
}
