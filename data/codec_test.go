package data

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"
)

// mustDecodeHex is a test helper for fixed byte vectors.
func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func TestCBOREncodeVectors(t *testing.T) {
	tests := []struct {
		name string
		term Term
		hex  string
	}{
		{"zero", NewInt(0), "00"},
		{"small int", NewInt(1), "01"},
		{"negative int", NewInt(-1), "20"},
		{"larger negative", NewInt(-500), "3901f3"},
		{"byte string", NewBytes([]byte{0xAB}), "41ab"},
		{"empty bytes", NewBytes(nil), "40"},
		{"list", NewList(NewInt(1), NewInt(2)), "820102"},
		{"empty constr tag 0", NewConstr(0), "d87980"},
		{"constr tag 1 with field", NewConstr(1, NewInt(5)), "d87a8105"},
		{"constr tag 7 uses 1280 range", NewConstr(7), "d9050080"},
		{"constr tag 200 uses general form", NewConstr(200), "d8668218c880"},
		{"map", NewMap(Pair{NewInt(1), NewInt(2)}), "a10102"},
		{"nested", NewConstr(0, NewList(NewBytes([]byte{0x01}))), "d87981814101"},
	}
	codec := DefaultCodec()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Encode(tt.term)
			if err != nil {
				t.Fatalf("Encode(%s): %v", tt.term, err)
			}
			want := mustDecodeHex(t, tt.hex)
			if !bytes.Equal(got, want) {
				t.Errorf("Encode(%s) = %x, want %x", tt.term, got, want)
			}
		})
	}
}

func TestCBORRoundTrip(t *testing.T) {
	big64 := new(big.Int).Lsh(big.NewInt(1), 64)
	terms := []Term{
		NewInt(0),
		NewInt(-1),
		NewInt(1234567890),
		NewBigInt(big64),
		NewBigInt(new(big.Int).Neg(big64)),
		NewBytes([]byte{0, 1, 2, 255}),
		NewBytes(nil),
		NewList(),
		NewList(NewInt(1), NewBytes([]byte{9}), NewConstr(3)),
		NewConstr(0),
		NewConstr(1, NewInt(-7)),
		NewConstr(6),
		NewConstr(7),
		NewConstr(127),
		NewConstr(128, NewInt(1)),
		NewConstr(5000, NewList(NewInt(2))),
		NewMap(),
		NewMap(Pair{NewInt(1), NewConstr(0)}, Pair{NewBytes([]byte{2}), NewList()}),
		NewConstr(0, NewMap(Pair{NewInt(5), NewInt(6)}), NewList(NewConstr(1))),
	}
	codec := DefaultCodec()
	for _, term := range terms {
		enc, err := codec.Encode(term)
		if err != nil {
			t.Errorf("Encode(%s): %v", term, err)
			continue
		}
		dec, err := codec.Decode(enc)
		if err != nil {
			t.Errorf("Decode(%x): %v", enc, err)
			continue
		}
		if !dec.Equal(term) {
			t.Errorf("round trip: got %s, want %s", dec, term)
		}
		// Deterministic: re-encoding the decoded term reproduces the bytes.
		enc2, err := codec.Encode(dec)
		if err != nil {
			t.Errorf("re-Encode(%s): %v", dec, err)
			continue
		}
		if !bytes.Equal(enc, enc2) {
			t.Errorf("encoding not deterministic: %x vs %x", enc, enc2)
		}
	}
}

func TestCBORDecodeMapSortsPairs(t *testing.T) {
	// Map encoded with keys out of canonical order: {2: 20, 1: 10}.
	raw := mustDecodeHex(t, "a20214010a")
	codec := DefaultCodec()
	term, err := codec.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m, ok := term.(Map)
	if !ok {
		t.Fatalf("Decode = %T, want Map", term)
	}
	if len(m.Pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(m.Pairs))
	}
	if !m.Pairs[0].Key.Equal(NewInt(1)) || !m.Pairs[1].Key.Equal(NewInt(2)) {
		t.Errorf("pairs not in canonical key order: %s", m)
	}
}

func TestCBORDecodeRejectsUnsupported(t *testing.T) {
	tests := []struct {
		name string
		hex  string
	}{
		{"float", "f97e00"},
		{"text string", "6161"},
		{"unknown tag", "d8254100"},
		{"tag 102 non-pair", "d8668100"},
	}
	codec := DefaultCodec()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Decode(mustDecodeHex(t, tt.hex)); err == nil {
				t.Errorf("Decode(%s) succeeded, want error", tt.hex)
			}
		})
	}
}
