package data

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// Codec translates between Terms and a deterministic binary encoding.
// The grammar is an external contract: callers interoperating with a
// different serializer can supply their own Codec instead of the
// bundled CBOR one.
type Codec interface {
	Encode(t Term) ([]byte, error)
	Decode(b []byte) (Term, error)
}

// CBORCodec is the bundled Codec. It uses canonical CBOR encoding so
// that equal terms always produce identical bytes.
//
// Constructor terms map onto CBOR tags using a fixed convention:
//
//	tag 0..6     -> CBOR tag 121+tag, content = array of fields
//	tag 7..127   -> CBOR tag 1280+(tag-7), content = array of fields
//	tag >= 128   -> CBOR tag 102, content = [tag, fields]
//
// Map terms encode as CBOR maps with canonically sorted keys. On
// decode, map pairs are re-sorted by their encoded key so the result
// is deterministic; duplicate keys follow the decoder's first-wins
// behavior. Composite (constructor/list/map) map keys are not
// supported by this codec.
type CBORCodec struct {
	em cbor.EncMode
	dm cbor.DecMode
}

var defaultCodec *CBORCodec

func init() {
	c, err := NewCBORCodec()
	if err != nil {
		panic(fmt.Sprintf("data: failed to create CBOR codec: %v", err))
	}
	defaultCodec = c
}

// DefaultCodec returns the shared canonical CBOR codec.
func DefaultCodec() *CBORCodec {
	return defaultCodec
}

// NewCBORCodec constructs a canonical CBOR codec.
func NewCBORCodec() (*CBORCodec, error) {
	encOpts := cbor.CanonicalEncOptions()
	encOpts.BigIntConvert = cbor.BigIntConvertShortest
	em, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("data: cbor enc mode: %w", err)
	}
	decOpts := cbor.DecOptions{
		DefaultMapType:   reflect.TypeOf(map[interface{}]interface{}(nil)),
		MapKeyByteString: cbor.MapKeyByteStringAllowed,
	}
	dm, err := decOpts.DecMode()
	if err != nil {
		return nil, fmt.Errorf("data: cbor dec mode: %w", err)
	}
	return &CBORCodec{em: em, dm: dm}, nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Encode serializes a term to canonical CBOR bytes.
func (c *CBORCodec) Encode(t Term) ([]byte, error) {
	return c.encodeTerm(t)
}

func (c *CBORCodec) encodeTerm(t Term) ([]byte, error) {
	switch v := t.(type) {
	case Integer:
		return c.em.Marshal(v.Value)
	case Bytes:
		return c.em.Marshal(v.Value)
	case List:
		return c.encodeArray(v.Items)
	case Map:
		return c.encodeMap(v.Pairs)
	case Constr:
		fields, err := c.encodeArray(v.Fields)
		if err != nil {
			return nil, err
		}
		switch {
		case v.Tag <= 6:
			return wrapTag(121+v.Tag, fields), nil
		case v.Tag <= 127:
			return wrapTag(1280+(v.Tag-7), fields), nil
		default:
			tagBytes, err := c.em.Marshal(v.Tag)
			if err != nil {
				return nil, err
			}
			var body []byte
			body = appendHead(body, 4, 2) // two-element array
			body = append(body, tagBytes...)
			body = append(body, fields...)
			return wrapTag(102, body), nil
		}
	default:
		return nil, fmt.Errorf("data: cannot encode term of type %T", t)
	}
}

func (c *CBORCodec) encodeArray(items []Term) ([]byte, error) {
	var buf []byte
	buf = appendHead(buf, 4, uint64(len(items)))
	for _, it := range items {
		b, err := c.encodeTerm(it)
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

func (c *CBORCodec) encodeMap(pairs []Pair) ([]byte, error) {
	type encPair struct{ k, v []byte }
	enc := make([]encPair, len(pairs))
	for i, p := range pairs {
		k, err := c.encodeTerm(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := c.encodeTerm(p.Value)
		if err != nil {
			return nil, err
		}
		enc[i] = encPair{k, v}
	}
	// Canonical order: sort entries by encoded key bytes.
	sort.SliceStable(enc, func(i, j int) bool {
		if len(enc[i].k) != len(enc[j].k) {
			return len(enc[i].k) < len(enc[j].k)
		}
		return bytes.Compare(enc[i].k, enc[j].k) < 0
	})
	var buf []byte
	buf = appendHead(buf, 5, uint64(len(enc)))
	for _, p := range enc {
		buf = append(buf, p.k...)
		buf = append(buf, p.v...)
	}
	return buf, nil
}

// wrapTag prefixes content with a CBOR tag head (major type 6).
func wrapTag(number uint64, content []byte) []byte {
	var buf []byte
	buf = appendHead(buf, 6, number)
	return append(buf, content...)
}

// appendHead appends a CBOR head: 3-bit major type plus the shortest
// unsigned argument encoding.
func appendHead(buf []byte, major byte, n uint64) []byte {
	hi := major << 5
	switch {
	case n < 24:
		return append(buf, hi|byte(n))
	case n <= 0xFF:
		return append(buf, hi|24, byte(n))
	case n <= 0xFFFF:
		return append(buf, hi|25, byte(n>>8), byte(n))
	case n <= 0xFFFFFFFF:
		return append(buf, hi|26, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	default:
		return append(buf, hi|27,
			byte(n>>56), byte(n>>48), byte(n>>40), byte(n>>32),
			byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// Decode parses CBOR bytes into a term.
func (c *CBORCodec) Decode(b []byte) (Term, error) {
	var raw interface{}
	if err := c.dm.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("data: decode term: %w", err)
	}
	return c.fromRaw(raw)
}

func (c *CBORCodec) fromRaw(raw interface{}) (Term, error) {
	switch v := raw.(type) {
	case int64:
		return NewInt(v), nil
	case uint64:
		return Integer{Value: new(big.Int).SetUint64(v)}, nil
	case *big.Int:
		return NewBigInt(v), nil
	case big.Int:
		return NewBigInt(&v), nil
	case []byte:
		return NewBytes(v), nil
	case cbor.ByteString:
		return NewBytes([]byte(v)), nil
	case []interface{}:
		items := make([]Term, len(v))
		for i, it := range v {
			t, err := c.fromRaw(it)
			if err != nil {
				return nil, err
			}
			items[i] = t
		}
		return List{Items: items}, nil
	case map[interface{}]interface{}:
		return c.fromRawMap(v)
	case cbor.Tag:
		return c.fromRawTag(v)
	default:
		return nil, fmt.Errorf("data: unsupported CBOR item of type %T", raw)
	}
}

func (c *CBORCodec) fromRawMap(m map[interface{}]interface{}) (Term, error) {
	type decPair struct {
		keyEnc []byte
		pair   Pair
	}
	dec := make([]decPair, 0, len(m))
	for k, v := range m {
		kt, err := c.fromRaw(k)
		if err != nil {
			return nil, err
		}
		vt, err := c.fromRaw(v)
		if err != nil {
			return nil, err
		}
		ke, err := c.encodeTerm(kt)
		if err != nil {
			return nil, err
		}
		dec = append(dec, decPair{keyEnc: ke, pair: Pair{Key: kt, Value: vt}})
	}
	// Go map iteration is randomized; restore canonical key order so
	// decoding is deterministic.
	sort.SliceStable(dec, func(i, j int) bool {
		if len(dec[i].keyEnc) != len(dec[j].keyEnc) {
			return len(dec[i].keyEnc) < len(dec[j].keyEnc)
		}
		return bytes.Compare(dec[i].keyEnc, dec[j].keyEnc) < 0
	})
	pairs := make([]Pair, len(dec))
	for i, d := range dec {
		pairs[i] = d.pair
	}
	return Map{Pairs: pairs}, nil
}

func (c *CBORCodec) fromRawTag(tag cbor.Tag) (Term, error) {
	switch {
	case tag.Number >= 121 && tag.Number <= 127:
		fields, err := c.tagFields(tag.Content)
		if err != nil {
			return nil, err
		}
		return Constr{Tag: tag.Number - 121, Fields: fields}, nil
	case tag.Number >= 1280 && tag.Number <= 1400:
		fields, err := c.tagFields(tag.Content)
		if err != nil {
			return nil, err
		}
		return Constr{Tag: tag.Number - 1280 + 7, Fields: fields}, nil
	case tag.Number == 102:
		arr, ok := tag.Content.([]interface{})
		if !ok || len(arr) != 2 {
			return nil, fmt.Errorf("data: tag 102 expects [tag, fields] pair")
		}
		ctor, err := c.fromRaw(arr[0])
		if err != nil {
			return nil, err
		}
		n, ok := ctor.(Integer)
		if !ok || n.Value.Sign() < 0 || !n.Value.IsUint64() {
			return nil, fmt.Errorf("data: tag 102 constructor index must be a non-negative integer")
		}
		fields, err := c.tagFields(arr[1])
		if err != nil {
			return nil, err
		}
		return Constr{Tag: n.Value.Uint64(), Fields: fields}, nil
	case tag.Number == 2 || tag.Number == 3:
		// Bignum tags normally surface as big.Int; handle the raw
		// byte form in case the decoder leaves them tagged.
		raw, ok := tag.Content.([]byte)
		if !ok {
			return nil, fmt.Errorf("data: bignum tag %d expects bytes, got %T", tag.Number, tag.Content)
		}
		n := new(big.Int).SetBytes(raw)
		if tag.Number == 3 {
			n.Neg(n).Sub(n, big.NewInt(1))
		}
		return Integer{Value: n}, nil
	default:
		return nil, fmt.Errorf("data: unsupported CBOR tag %d", tag.Number)
	}
}

func (c *CBORCodec) tagFields(content interface{}) ([]Term, error) {
	arr, ok := content.([]interface{})
	if !ok {
		return nil, fmt.Errorf("data: constructor tag content must be an array, got %T", content)
	}
	fields := make([]Term, len(arr))
	for i, it := range arr {
		t, err := c.fromRaw(it)
		if err != nil {
			return nil, err
		}
		fields[i] = t
	}
	return fields, nil
}
