package vm

import "fmt"

// Budget bounds the number of cast and match steps one evaluation may
// spend. A nil *Budget never exhausts. Budgets are single-use and not
// safe for concurrent sharing; each evaluation gets its own.
type Budget struct {
	remaining int64
	spent     int64
}

// NewBudget returns a budget allowing the given number of steps.
func NewBudget(steps int64) *Budget {
	return &Budget{remaining: steps}
}

// Spend consumes one step, failing with ErrBudgetExhausted once the
// budget hits zero.
func (b *Budget) Spend() error {
	if b == nil {
		return nil
	}
	if b.remaining <= 0 {
		return fmt.Errorf("vm: %w after %d steps", ErrBudgetExhausted, b.spent)
	}
	b.remaining--
	b.spent++
	return nil
}

// Spent reports the number of steps consumed so far.
func (b *Budget) Spent() int64 {
	if b == nil {
		return 0
	}
	return b.spent
}
