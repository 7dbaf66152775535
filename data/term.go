// Package data implements the opaque term model: the type-erased,
// purely structural representation that chain data arrives in before
// it is cast to a declared type. Terms carry no type information; two
// terms are equal iff they are structurally identical.
package data

import (
	"fmt"
	"math/big"
	"strings"
)

// Term is the untyped wire-level value. A term is one of Constr,
// Integer, Bytes, List, or Map. Terms are immutable after construction;
// callers must not mutate fields or slices reachable from a Term.
type Term interface {
	// Equal reports whether two terms are structurally identical.
	Equal(other Term) bool

	fmt.Stringer

	isTerm()
}

// Constr is a tagged constructor application: a non-negative tag plus
// an ordered sequence of field terms.
type Constr struct {
	Tag    uint64
	Fields []Term
}

// Integer is an arbitrary-precision signed integer.
type Integer struct {
	Value *big.Int
}

// Bytes is an opaque byte string.
type Bytes struct {
	Value []byte
}

// List is an ordered sequence of terms.
type List struct {
	Items []Term
}

// Map is an ordered sequence of key/value pairs. Keys are not required
// to be unique at this layer; uniqueness (if any) is a property of the
// producing codec.
type Map struct {
	Pairs []Pair
}

// Pair is a single key/value entry of a Map term.
type Pair struct {
	Key   Term
	Value Term
}

func (Constr) isTerm()  {}
func (Integer) isTerm() {}
func (Bytes) isTerm()   {}
func (List) isTerm()    {}
func (Map) isTerm()     {}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// NewConstr builds a constructor term.
func NewConstr(tag uint64, fields ...Term) Constr {
	return Constr{Tag: tag, Fields: fields}
}

// NewInt builds an integer term from an int64.
func NewInt(n int64) Integer {
	return Integer{Value: big.NewInt(n)}
}

// NewBigInt builds an integer term from a big.Int. The argument is
// copied so later mutation of n cannot alias into the term.
func NewBigInt(n *big.Int) Integer {
	return Integer{Value: new(big.Int).Set(n)}
}

// NewBytes builds a byte-string term. The argument is copied.
func NewBytes(b []byte) Bytes {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Bytes{Value: cp}
}

// NewList builds a list term.
func NewList(items ...Term) List {
	return List{Items: items}
}

// NewMap builds a map term from ordered pairs.
func NewMap(pairs ...Pair) Map {
	return Map{Pairs: pairs}
}

// ---------------------------------------------------------------------------
// Structural equality
// ---------------------------------------------------------------------------

// Equal reports structural identity: same variant, same tag, and
// pairwise-equal fields.
func (c Constr) Equal(other Term) bool {
	o, ok := other.(Constr)
	if !ok || c.Tag != o.Tag || len(c.Fields) != len(o.Fields) {
		return false
	}
	for i, f := range c.Fields {
		if !f.Equal(o.Fields[i]) {
			return false
		}
	}
	return true
}

func (n Integer) Equal(other Term) bool {
	o, ok := other.(Integer)
	return ok && n.Value.Cmp(o.Value) == 0
}

func (b Bytes) Equal(other Term) bool {
	o, ok := other.(Bytes)
	if !ok || len(b.Value) != len(o.Value) {
		return false
	}
	for i := range b.Value {
		if b.Value[i] != o.Value[i] {
			return false
		}
	}
	return true
}

func (l List) Equal(other Term) bool {
	o, ok := other.(List)
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

func (m Map) Equal(other Term) bool {
	o, ok := other.(Map)
	if !ok || len(m.Pairs) != len(o.Pairs) {
		return false
	}
	for i, p := range m.Pairs {
		if !p.Key.Equal(o.Pairs[i].Key) || !p.Value.Equal(o.Pairs[i].Value) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func (c Constr) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Constr(%d", c.Tag)
	for _, f := range c.Fields {
		sb.WriteString(", ")
		sb.WriteString(f.String())
	}
	sb.WriteString(")")
	return sb.String()
}

func (n Integer) String() string {
	return fmt.Sprintf("Int(%s)", n.Value.String())
}

func (b Bytes) String() string {
	return fmt.Sprintf("Bytes(%x)", b.Value)
}

func (l List) String() string {
	parts := make([]string, len(l.Items))
	for i, it := range l.Items {
		parts[i] = it.String()
	}
	return "List[" + strings.Join(parts, ", ") + "]"
}

func (m Map) String() string {
	parts := make([]string, len(m.Pairs))
	for i, p := range m.Pairs {
		parts[i] = p.Key.String() + ": " + p.Value.String()
	}
	return "Map{" + strings.Join(parts, ", ") + "}"
}
