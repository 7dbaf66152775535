package vm

import "errors"

// Failure taxonomy. Every failure is terminal for the current
// evaluation: there is no recovery primitive inside decision logic,
// and a failure always means reject. The kinds are distinguishable so
// the audit layer can tell a failed evaluation apart from one that
// legitimately returned false.
var (
	// ErrShapeMismatch reports that a term's structure does not
	// conform to the requested type during casting.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnmatched reports that a value's variant has no corresponding
	// arm in a pattern set without a catch-all.
	ErrUnmatched = errors.New("unmatched variant")

	// ErrMalformedContext reports a cast failure of the script context
	// at the evaluation boundary.
	ErrMalformedContext = errors.New("malformed context")

	// ErrMalformedDatum reports a cast failure of the datum at the
	// evaluation boundary.
	ErrMalformedDatum = errors.New("malformed datum")

	// ErrMalformedRedeemer reports a cast failure of the redeemer at
	// the evaluation boundary.
	ErrMalformedRedeemer = errors.New("malformed redeemer")

	// ErrBudgetExhausted reports that the optional execution budget
	// reached zero.
	ErrBudgetExhausted = errors.New("budget exhausted")
)

// FailureKind maps an evaluation error to a stable name for audit
// records. Returns "" for nil and "error" for errors outside the
// taxonomy (compile or programmer errors surfaced at runtime).
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedContext):
		return "malformed_context"
	case errors.Is(err, ErrMalformedDatum):
		return "malformed_datum"
	case errors.Is(err, ErrMalformedRedeemer):
		return "malformed_redeemer"
	case errors.Is(err, ErrShapeMismatch):
		return "shape_mismatch"
	case errors.Is(err, ErrUnmatched):
		return "unmatched"
	case errors.Is(err, ErrBudgetExhausted):
		return "budget_exhausted"
	default:
		return "error"
	}
}
