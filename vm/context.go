package vm

import (
	"fmt"

	"github.com/chazu/verdict/data"
	"github.com/chazu/verdict/schema"
)

// The script context is the fixed, externally-defined schema every
// evaluation decodes its context term against: the transaction's
// inputs, outputs, fee, minted assets, extra signatories, and validity
// interval, plus the purpose the script runs under.

// RegisterContextTypes installs the script-context descriptors into a
// registry. It is called once at validator-registration time.
func RegisterContextTypes(reg *schema.Registry) error {
	descs := []*schema.TypeDescriptor{
		schema.NewType("OutRef", nil,
			schema.NewVariant("OutRef",
				schema.Field("tx_id", schema.BytesRef()),
				schema.Field("index", schema.IntRef()),
			),
		),
		schema.NewType("Output", nil,
			schema.NewVariant("Output",
				schema.Field("address", schema.BytesRef()),
				schema.Field("value", schema.MapOf(schema.BytesRef(), schema.IntRef())),
				schema.Field("datum", schema.OptionOf(schema.DataRef())),
			),
		),
		schema.NewType("Input", nil,
			schema.NewVariant("Input",
				schema.Field("out_ref", schema.Named("OutRef")),
				schema.Field("output", schema.Named("Output")),
			),
		),
		schema.NewType("BoundType", nil,
			schema.NewVariant("NegativeInfinity"),
			schema.NewVariant("Finite", schema.Field("value", schema.IntRef())),
			schema.NewVariant("PositiveInfinity"),
		),
		schema.NewType("IntervalBound", nil,
			schema.NewVariant("IntervalBound",
				schema.Field("bound_type", schema.Named("BoundType")),
				schema.Field("is_inclusive", schema.BoolRef()),
			),
		),
		schema.NewType("Interval", nil,
			schema.NewVariant("Interval",
				schema.Field("lower_bound", schema.Named("IntervalBound")),
				schema.Field("upper_bound", schema.Named("IntervalBound")),
			),
		),
		schema.NewType("TxInfo", nil,
			schema.NewVariant("TxInfo",
				schema.Field("inputs", schema.ListOf(schema.Named("Input"))),
				schema.Field("outputs", schema.ListOf(schema.Named("Output"))),
				schema.Field("fee", schema.IntRef()),
				schema.Field("mint", schema.MapOf(schema.BytesRef(), schema.IntRef())),
				schema.Field("extra_signatories", schema.ListOf(schema.BytesRef())),
				schema.Field("validity_range", schema.Named("Interval")),
			),
		),
		schema.NewType("ScriptPurpose", nil,
			schema.NewVariant("Spend", schema.Field("out_ref", schema.Named("OutRef"))),
			schema.NewVariant("Mint", schema.Field("policy", schema.BytesRef())),
			schema.NewVariant("Withdraw", schema.Field("credential", schema.BytesRef())),
		),
		schema.NewType("ScriptContext", nil,
			schema.NewVariant("ScriptContext",
				schema.Field("transaction", schema.Named("TxInfo")),
				schema.Field("purpose", schema.Named("ScriptPurpose")),
			),
		),
	}
	for _, d := range descs {
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("vm: register context types: %w", err)
		}
	}
	return nil
}

// ContextTypeRef is the reference every evaluation casts its context
// term against.
func ContextTypeRef() schema.TypeRef {
	return schema.Named("ScriptContext")
}

// ---------------------------------------------------------------------------
// Context term builders
// ---------------------------------------------------------------------------

// Builders below produce opaque terms in the script-context wire
// shape. They are the producer side of the boundary: external
// submitters (and tests) build context terms, the evaluator casts them
// back.

// BoolTerm encodes a boolean (False = tag 0, True = tag 1).
func BoolTerm(b bool) data.Term {
	if b {
		return data.NewConstr(schema.TrueTag)
	}
	return data.NewConstr(schema.FalseTag)
}

// SomeTerm wraps a term in the Some variant of Option.
func SomeTerm(t data.Term) data.Term {
	return data.NewConstr(schema.SomeTag, t)
}

// NoneTerm is the None variant of Option.
func NoneTerm() data.Term {
	return data.NewConstr(schema.NoneTag)
}

// NegInfBound builds an IntervalBound at negative infinity.
func NegInfBound() data.Term {
	return data.NewConstr(0, data.NewConstr(0), BoolTerm(true))
}

// FiniteBound builds a finite, optionally inclusive IntervalBound.
func FiniteBound(at int64, inclusive bool) data.Term {
	return data.NewConstr(0, data.NewConstr(1, data.NewInt(at)), BoolTerm(inclusive))
}

// PosInfBound builds an IntervalBound at positive infinity.
func PosInfBound() data.Term {
	return data.NewConstr(0, data.NewConstr(2), BoolTerm(true))
}

// IntervalTerm builds a validity interval from two bounds.
func IntervalTerm(lower, upper data.Term) data.Term {
	return data.NewConstr(0, lower, upper)
}

// EverIntervalTerm is the unbounded validity interval.
func EverIntervalTerm() data.Term {
	return IntervalTerm(NegInfBound(), PosInfBound())
}

// OutRefTerm builds a transaction output reference.
func OutRefTerm(txID []byte, index int64) data.Term {
	return data.NewConstr(0, data.NewBytes(txID), data.NewInt(index))
}

// OutputTerm builds a transaction output. datum may be nil for no
// datum.
func OutputTerm(address []byte, value data.Map, datum data.Term) data.Term {
	opt := NoneTerm()
	if datum != nil {
		opt = SomeTerm(datum)
	}
	return data.NewConstr(0, data.NewBytes(address), value, opt)
}

// InputTerm builds a transaction input.
func InputTerm(outRef, output data.Term) data.Term {
	return data.NewConstr(0, outRef, output)
}

// SpendPurposeTerm builds the Spend script purpose.
func SpendPurposeTerm(txID []byte, index int64) data.Term {
	return data.NewConstr(0, OutRefTerm(txID, index))
}

// MintPurposeTerm builds the Mint script purpose.
func MintPurposeTerm(policy []byte) data.Term {
	return data.NewConstr(1, data.NewBytes(policy))
}

// TxInfoTerm assembles a transaction-info term.
type TxInfoTerm struct {
	Inputs      []data.Term
	Outputs     []data.Term
	Fee         int64
	Mint        data.Map
	Signatories [][]byte
	Validity    data.Term // nil means unbounded
}

// Term renders the transaction info as an opaque term.
func (t TxInfoTerm) Term() data.Term {
	signers := make([]data.Term, len(t.Signatories))
	for i, s := range t.Signatories {
		signers[i] = data.NewBytes(s)
	}
	validity := t.Validity
	if validity == nil {
		validity = EverIntervalTerm()
	}
	return data.NewConstr(0,
		data.NewList(t.Inputs...),
		data.NewList(t.Outputs...),
		data.NewInt(t.Fee),
		t.Mint,
		data.NewList(signers...),
		validity,
	)
}

// ContextTerm assembles a full script-context term from transaction
// info and a purpose.
func ContextTerm(tx TxInfoTerm, purpose data.Term) data.Term {
	return data.NewConstr(0, tx.Term(), purpose)
}
