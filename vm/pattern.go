package vm

import (
	"fmt"

	"github.com/chazu/verdict/schema"
)

// Pattern matching runs in two phases. CompilePatterns checks arity,
// field coverage, and binding well-formedness ahead of time, so a
// malformed pattern set is rejected before any data is processed. The
// resulting MatchPlan assumes well-formed arms and only ever fails at
// runtime with ErrUnmatched (no catch-all, value's variant
// unrepresented) or ErrBudgetExhausted.

// FieldPat matches one field of a variant. Exactly one of the binding
// forms applies: a discard, an explicit binding name, or (for named
// patterns) punning, where a field with no explicit binding binds
// under its declared name. An optional literal constrains the field's
// value; a literal mismatch makes the whole arm fall through.
type FieldPat struct {
	Name    string // declared field name; empty in positional patterns
	Bind    string // binding name; empty means pun (named) or discard-only
	Discard bool
	Literal Value // optional literal constraint
}

// ArmPattern is the field pattern of one arm. Named patterns refer to
// fields by declared name; positional patterns by position. Without
// Rest, a pattern must cover every field of its variant; Rest ignores
// the remainder.
type ArmPattern struct {
	Positional bool
	Rest       bool
	Fields     []FieldPat
}

// Arm pairs a variant selector with a field pattern. An empty Variant
// is the catch-all: it matches any value, binds nothing, and must be
// last.
type Arm struct {
	Variant string
	Pattern ArmPattern
}

// Bind is shorthand for a named field pattern that puns the field name
// as the binding.
func Bind(field string) FieldPat {
	return FieldPat{Name: field}
}

// BindAs binds a named field under an explicit name.
func BindAs(field, name string) FieldPat {
	return FieldPat{Name: field, Bind: name}
}

// DiscardField discards a named field.
func DiscardField(field string) FieldPat {
	return FieldPat{Name: field, Discard: true}
}

// LiteralField constrains a named field to a literal value.
func LiteralField(field string, lit Value) FieldPat {
	return FieldPat{Name: field, Discard: true, Literal: lit}
}

// CatchAll is the wildcard arm.
func CatchAll() Arm {
	return Arm{}
}

// ---------------------------------------------------------------------------
// Compilation
// ---------------------------------------------------------------------------

type compiledArm struct {
	// tag is the matched variant's tag; -1 for the catch-all.
	tag int64
	// fieldIdx maps each pattern entry to a field position.
	fieldIdx []int
	pats     []FieldPat
}

// MatchPlan is a compiled, immutable pattern set for one descriptor.
// Plans are safe for concurrent Match calls.
type MatchPlan struct {
	desc       *schema.TypeDescriptor
	arms       []compiledArm
	exhaustive bool
}

// Exhaustive reports whether every variant is covered (or a catch-all
// exists), i.e. whether Match can ever fail with ErrUnmatched.
func (p *MatchPlan) Exhaustive() bool {
	return p.exhaustive
}

// CompilePatterns validates a pattern set against a descriptor and
// compiles it to a plan. A single-arm plan with no catch-all is the
// "expect" form: evaluated optimistically, it fails the enclosing
// evaluation when the value's variant does not correspond.
func CompilePatterns(desc *schema.TypeDescriptor, arms []Arm) (*MatchPlan, error) {
	if len(arms) == 0 {
		return nil, fmt.Errorf("vm: empty pattern set for %s", desc.Name)
	}
	plan := &MatchPlan{desc: desc}
	covered := make(map[uint64]bool)
	sawCatchAll := false
	for i, arm := range arms {
		if sawCatchAll {
			return nil, fmt.Errorf("vm: arm %d of %s match is unreachable after catch-all", i, desc.Name)
		}
		if arm.Variant == "" {
			if len(arm.Pattern.Fields) != 0 {
				return nil, fmt.Errorf("vm: catch-all arm of %s match cannot bind fields", desc.Name)
			}
			sawCatchAll = true
			plan.arms = append(plan.arms, compiledArm{tag: -1})
			continue
		}
		variant := desc.VariantByName(arm.Variant)
		if variant == nil {
			return nil, fmt.Errorf("vm: type %s has no variant %s", desc.Name, arm.Variant)
		}
		ca, err := compileArm(desc, variant, arm.Pattern)
		if err != nil {
			return nil, err
		}
		// Only unconstrained arms cover a variant: a literal can fail
		// at runtime and fall through.
		if !hasLiteral(arm.Pattern) {
			covered[variant.Tag] = true
		}
		plan.arms = append(plan.arms, ca)
	}
	plan.exhaustive = sawCatchAll || len(covered) == len(desc.Variants)
	return plan, nil
}

func hasLiteral(p ArmPattern) bool {
	for _, f := range p.Fields {
		if f.Literal != nil {
			return true
		}
	}
	return false
}

func compileArm(desc *schema.TypeDescriptor, variant *schema.VariantDescriptor, p ArmPattern) (compiledArm, error) {
	ca := compiledArm{tag: int64(variant.Tag), pats: p.Fields}
	label := fmt.Sprintf("%s.%s", desc.Name, variant.Name)

	if p.Positional {
		if !p.Rest && len(p.Fields) != len(variant.Fields) {
			return ca, fmt.Errorf("vm: positional pattern for %s has %d entries, variant has %d fields",
				label, len(p.Fields), len(variant.Fields))
		}
		if len(p.Fields) > len(variant.Fields) {
			return ca, fmt.Errorf("vm: positional pattern for %s has %d entries, variant has only %d fields",
				label, len(p.Fields), len(variant.Fields))
		}
		ca.fieldIdx = make([]int, len(p.Fields))
		for i := range p.Fields {
			if p.Fields[i].Name != "" {
				return ca, fmt.Errorf("vm: positional pattern for %s names field %q", label, p.Fields[i].Name)
			}
			ca.fieldIdx[i] = i
		}
	} else {
		seen := make(map[string]bool, len(p.Fields))
		ca.fieldIdx = make([]int, len(p.Fields))
		for i, fp := range p.Fields {
			if fp.Name == "" {
				return ca, fmt.Errorf("vm: named pattern for %s has an entry without a field name", label)
			}
			if seen[fp.Name] {
				return ca, fmt.Errorf("vm: pattern for %s mentions field %s twice", label, fp.Name)
			}
			seen[fp.Name] = true
			idx := -1
			for j, f := range variant.Fields {
				if f.Name == fp.Name {
					idx = j
					break
				}
			}
			if idx < 0 {
				return ca, fmt.Errorf("vm: variant %s has no field %s", label, fp.Name)
			}
			ca.fieldIdx[i] = idx
		}
		if !p.Rest && len(p.Fields) != len(variant.Fields) {
			return ca, fmt.Errorf("vm: pattern for %s covers %d of %d fields and has no spread",
				label, len(p.Fields), len(variant.Fields))
		}
	}

	// Binding names must be unique within the arm.
	bound := make(map[string]bool)
	for _, fp := range p.Fields {
		name := bindingName(fp)
		if name == "" {
			continue
		}
		if bound[name] {
			return ca, fmt.Errorf("vm: pattern for %s binds %s twice", label, name)
		}
		bound[name] = true
	}
	return ca, nil
}

// bindingName resolves the name a field pattern binds under: the
// explicit name, the punned field name, or nothing for discards and
// unnamed positional entries.
func bindingName(fp FieldPat) string {
	if fp.Discard {
		return ""
	}
	if fp.Bind != "" {
		return fp.Bind
	}
	return fp.Name
}

// ---------------------------------------------------------------------------
// Runtime matching
// ---------------------------------------------------------------------------

// Match selects the first arm whose variant selector matches the
// value's actual variant (or is a catch-all) and whose literal
// constraints hold: declaration order, short-circuit, no backtracking.
// It returns the selected arm index and the bindings it
// produced. A value whose variant no arm covers yields ErrUnmatched.
func (p *MatchPlan) Match(v Value, b *Budget) (int, map[string]Value, error) {
	c, ok := v.(ConstrValue)
	if !ok {
		return -1, nil, fmt.Errorf("vm: cannot match non-constructed value %s against %s", v, p.desc.Name)
	}
	if c.Type.Name != p.desc.Name {
		return -1, nil, fmt.Errorf("vm: cannot match %s value against %s patterns", c.Type.Name, p.desc.Name)
	}
arms:
	for i, arm := range p.arms {
		if err := b.Spend(); err != nil {
			return -1, nil, err
		}
		if arm.tag >= 0 && uint64(arm.tag) != c.Tag {
			continue
		}
		for j, fp := range arm.pats {
			if fp.Literal != nil && !c.Fields[arm.fieldIdx[j]].Equal(fp.Literal) {
				continue arms
			}
		}
		bindings := make(map[string]Value, len(arm.pats))
		for j, fp := range arm.pats {
			if name := bindingName(fp); name != "" {
				bindings[name] = c.Fields[arm.fieldIdx[j]]
			}
		}
		return i, bindings, nil
	}
	variantName := fmt.Sprintf("tag %d", c.Tag)
	if variant := c.Variant(); variant != nil {
		variantName = variant.Name
	}
	return -1, nil, fmt.Errorf("vm: no arm matches %s.%s: %w", p.desc.Name, variantName, ErrUnmatched)
}
