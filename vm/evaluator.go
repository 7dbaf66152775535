package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/verdict/data"
	"github.com/chazu/verdict/schema"
)

// Request carries one evaluation's inputs: the compiled decision
// logic, the three opaque terms, the declared datum/redeemer types,
// the context type (ContextTypeRef() when zero-valued types are not
// wanted), and an optional execution budget.
type Request struct {
	Program      *Compiled
	Datum        data.Term
	Redeemer     data.Term
	Context      data.Term
	DatumType    schema.TypeRef
	RedeemerType schema.TypeRef
	ContextType  schema.TypeRef
	Budget       *Budget
}

// NewRequest builds a request against the standard script-context
// schema.
func NewRequest(prog *Compiled, datum, redeemer, ctx data.Term, datumType, redeemerType schema.TypeRef) Request {
	return Request{
		Program:      prog,
		Datum:        datum,
		Redeemer:     redeemer,
		Context:      ctx,
		DatumType:    datumType,
		RedeemerType: redeemerType,
		ContextType:  ContextTypeRef(),
	}
}

// Evaluate is the validator decision function: it casts the context,
// datum, and redeemer terms to their declared types and runs the
// decision logic over the typed values, returning the single boolean
// verdict.
//
// Failures are terminal and categorically different from a false
// verdict: a malformed term rejects the transaction outright
// (ErrMalformedContext / ErrMalformedDatum / ErrMalformedRedeemer), an
// uncovered variant during execution fails with ErrUnmatched, and an
// exhausted budget fails with ErrBudgetExhausted. Evaluation is pure
// and deterministic: the same inputs always produce the same result,
// so failures reproduce identically on retry.
func Evaluate(reg *schema.Registry, req Request) (bool, error) {
	if req.Program == nil {
		return false, fmt.Errorf("vm: request has no program")
	}

	ctxVal, err := Cast(req.Context, req.ContextType, reg, req.Budget)
	if err != nil {
		return false, boundaryFailure(ErrMalformedContext, err)
	}
	datumVal, err := Cast(req.Datum, req.DatumType, reg, req.Budget)
	if err != nil {
		return false, boundaryFailure(ErrMalformedDatum, err)
	}
	redeemerVal, err := Cast(req.Redeemer, req.RedeemerType, reg, req.Budget)
	if err != nil {
		return false, boundaryFailure(ErrMalformedRedeemer, err)
	}

	env := NewEnv(map[string]Value{
		"datum":    datumVal,
		"redeemer": redeemerVal,
		"ctx":      ctxVal,
	})
	return req.Program.Run(env, reg, req.Budget)
}

// boundaryFailure wraps a casting error in its boundary kind, keeping
// budget exhaustion distinct.
func boundaryFailure(kind error, err error) error {
	if errors.Is(err, ErrBudgetExhausted) {
		return err
	}
	return fmt.Errorf("vm: %w: %w", kind, err)
}
