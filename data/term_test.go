package data

import (
	"math/big"
	"testing"
)

func TestTermEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Term
		want bool
	}{
		{"equal ints", NewInt(42), NewInt(42), true},
		{"unequal ints", NewInt(42), NewInt(43), false},
		{"big int vs small", NewBigInt(big.NewInt(7)), NewInt(7), true},
		{"equal bytes", NewBytes([]byte{0xAB, 0xCD}), NewBytes([]byte{0xAB, 0xCD}), true},
		{"unequal bytes", NewBytes([]byte{0xAB}), NewBytes([]byte{0xAC}), false},
		{"bytes vs int", NewBytes([]byte{1}), NewInt(1), false},
		{"equal constr", NewConstr(0, NewInt(1)), NewConstr(0, NewInt(1)), true},
		{"constr tag differs", NewConstr(0, NewInt(1)), NewConstr(1, NewInt(1)), false},
		{"constr arity differs", NewConstr(0, NewInt(1)), NewConstr(0), false},
		{"nested constr", NewConstr(2, NewConstr(0, NewBytes(nil))), NewConstr(2, NewConstr(0, NewBytes(nil))), true},
		{"equal lists", NewList(NewInt(1), NewInt(2)), NewList(NewInt(1), NewInt(2)), true},
		{"list order matters", NewList(NewInt(1), NewInt(2)), NewList(NewInt(2), NewInt(1)), false},
		{"empty list vs empty map", NewList(), NewMap(), false},
		{
			"equal maps",
			NewMap(Pair{NewBytes([]byte{1}), NewInt(5)}),
			NewMap(Pair{NewBytes([]byte{1}), NewInt(5)}),
			true,
		},
		{
			"map pair order matters",
			NewMap(Pair{NewInt(1), NewInt(1)}, Pair{NewInt(2), NewInt(2)}),
			NewMap(Pair{NewInt(2), NewInt(2)}, Pair{NewInt(1), NewInt(1)}),
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("%s.Equal(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			// Equality is symmetric.
			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("%s.Equal(%s) = %v, want %v (symmetry)", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestNewBytesCopies(t *testing.T) {
	src := []byte{1, 2, 3}
	b := NewBytes(src)
	src[0] = 99
	if b.Value[0] != 1 {
		t.Error("NewBytes should copy its input")
	}
}

func TestNewBigIntCopies(t *testing.T) {
	n := big.NewInt(10)
	term := NewBigInt(n)
	n.SetInt64(20)
	if term.Value.Int64() != 10 {
		t.Error("NewBigInt should copy its input")
	}
}

func TestTermString(t *testing.T) {
	tests := []struct {
		term Term
		want string
	}{
		{NewInt(-5), "Int(-5)"},
		{NewBytes([]byte{0xDE, 0xAD}), "Bytes(dead)"},
		{NewConstr(1, NewInt(2)), "Constr(1, Int(2))"},
		{NewList(NewInt(1)), "List[Int(1)]"},
		{NewMap(Pair{NewInt(1), NewInt(2)}), "Map{Int(1): Int(2)}"},
	}
	for _, tt := range tests {
		if got := tt.term.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
