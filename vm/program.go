package vm

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/chazu/verdict/schema"
)

// A Program is a validator's decision logic: a pure boolean expression
// over the typed datum, redeemer, and script context. Programs contain
// no I/O, no clocks, no randomness, and no unbounded recursion: every
// construct either terminates structurally or delegates to the matcher
// and caster, which recurse only over finite data.
//
// Programs must be compiled before use. Compilation resolves match
// patterns against the registry ahead of time (malformed patterns are
// rejected before any data is processed) and yields an immutable
// Compiled artifact safe for concurrent evaluation.
type Program struct {
	Name string
	Body Expr
}

// Expr is one node of decision logic.
type Expr interface {
	eval(st *execState, env *Env) (Value, error)
	compile(st *compileState) error
}

// Env is a lexical binding environment. Environments are persistent:
// child scopes extend their parent without mutating it.
type Env struct {
	parent *Env
	vars   map[string]Value
}

// NewEnv builds a root environment from initial bindings.
func NewEnv(vars map[string]Value) *Env {
	return &Env{vars: vars}
}

// Lookup resolves a name through the scope chain.
func (e *Env) Lookup(name string) (Value, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *Env) child(vars map[string]Value) *Env {
	return &Env{parent: e, vars: vars}
}

type execState struct {
	reg    *schema.Registry
	budget *Budget
	plans  map[Expr]*MatchPlan
}

type compileState struct {
	reg   *schema.Registry
	plans map[Expr]*MatchPlan
}

// Compiled is an immutable, registry-checked program.
type Compiled struct {
	prog  *Program
	plans map[Expr]*MatchPlan
}

// Compile resolves and validates the program against a registry.
func (p *Program) Compile(reg *schema.Registry) (*Compiled, error) {
	if p.Body == nil {
		return nil, fmt.Errorf("vm: program %q has no body", p.Name)
	}
	st := &compileState{reg: reg, plans: make(map[Expr]*MatchPlan)}
	if err := p.Body.compile(st); err != nil {
		return nil, fmt.Errorf("vm: program %q: %w", p.Name, err)
	}
	return &Compiled{prog: p, plans: st.plans}, nil
}

// Name returns the underlying program's name.
func (c *Compiled) Name() string {
	return c.prog.Name
}

// Run evaluates the program body under the given environment. The
// result must be a boolean; anything else is a programmer error.
func (c *Compiled) Run(env *Env, reg *schema.Registry, budget *Budget) (bool, error) {
	st := &execState{reg: reg, budget: budget, plans: c.plans}
	v, err := c.prog.Body.eval(st, env)
	if err != nil {
		return false, err
	}
	b, ok := AsBool(v)
	if !ok {
		return false, fmt.Errorf("vm: program %q evaluated to non-boolean %s", c.prog.Name, v)
	}
	return b, nil
}

// ---------------------------------------------------------------------------
// Literals and variables
// ---------------------------------------------------------------------------

// IntLit is an integer literal.
type IntLit struct {
	Value *big.Int
}

// Int builds an integer literal from an int64.
func Int(n int64) IntLit {
	return IntLit{Value: big.NewInt(n)}
}

// BytesLit is a byte-string literal.
type BytesLit struct {
	Value []byte
}

// BoolLit is a boolean literal.
type BoolLit struct {
	Value bool
}

// Var references a bound name: one of the top-level bindings (datum,
// redeemer, ctx) or a name bound by an enclosing match arm.
type Var struct {
	Name string
}

func (e IntLit) compile(*compileState) error   { return nil }
func (e BytesLit) compile(*compileState) error { return nil }
func (e BoolLit) compile(*compileState) error  { return nil }
func (e Var) compile(*compileState) error      { return nil }

func (e IntLit) eval(*execState, *Env) (Value, error) {
	return IntValue{Value: e.Value}, nil
}

func (e BytesLit) eval(*execState, *Env) (Value, error) {
	return BytesValue{Value: e.Value}, nil
}

func (e BoolLit) eval(st *execState, _ *Env) (Value, error) {
	return NewBoolValue(st.reg, e.Value), nil
}

func (e Var) eval(_ *execState, env *Env) (Value, error) {
	v, ok := env.Lookup(e.Name)
	if !ok {
		return nil, fmt.Errorf("vm: unbound variable %s", e.Name)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Field projection
// ---------------------------------------------------------------------------

// Proj projects a named field out of a constructed value's selected
// variant.
type Proj struct {
	Of    Expr
	Field string
}

func (e Proj) compile(st *compileState) error {
	return e.Of.compile(st)
}

func (e Proj) eval(st *execState, env *Env) (Value, error) {
	v, err := e.Of.eval(st, env)
	if err != nil {
		return nil, err
	}
	c, ok := v.(ConstrValue)
	if !ok {
		return nil, fmt.Errorf("vm: cannot project field %s from non-constructed value %s", e.Field, v)
	}
	f, ok := c.FieldByName(e.Field)
	if !ok {
		return nil, fmt.Errorf("vm: value %s has no field %s", c, e.Field)
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// Boolean combinators
// ---------------------------------------------------------------------------

// And is true when all sub-checks are true. Evaluation short-circuits;
// since decision logic has no side effects this is unobservable.
type And struct {
	Exprs []Expr
}

// Or is true when at least one sub-check is true.
type Or struct {
	Exprs []Expr
}

// Not negates a sub-check.
type Not struct {
	Expr Expr
}

func (e And) compile(st *compileState) error { return compileAll(st, e.Exprs) }
func (e Or) compile(st *compileState) error  { return compileAll(st, e.Exprs) }
func (e Not) compile(st *compileState) error { return e.Expr.compile(st) }

func compileAll(st *compileState, exprs []Expr) error {
	for _, e := range exprs {
		if err := e.compile(st); err != nil {
			return err
		}
	}
	return nil
}

func (e And) eval(st *execState, env *Env) (Value, error) {
	for _, sub := range e.Exprs {
		b, err := evalBool(sub, st, env)
		if err != nil {
			return nil, err
		}
		if !b {
			return NewBoolValue(st.reg, false), nil
		}
	}
	return NewBoolValue(st.reg, true), nil
}

func (e Or) eval(st *execState, env *Env) (Value, error) {
	for _, sub := range e.Exprs {
		b, err := evalBool(sub, st, env)
		if err != nil {
			return nil, err
		}
		if b {
			return NewBoolValue(st.reg, true), nil
		}
	}
	return NewBoolValue(st.reg, false), nil
}

func (e Not) eval(st *execState, env *Env) (Value, error) {
	b, err := evalBool(e.Expr, st, env)
	if err != nil {
		return nil, err
	}
	return NewBoolValue(st.reg, !b), nil
}

func evalBool(e Expr, st *execState, env *Env) (bool, error) {
	v, err := e.eval(st, env)
	if err != nil {
		return false, err
	}
	b, ok := AsBool(v)
	if !ok {
		return false, fmt.Errorf("vm: expected boolean, got %s", v)
	}
	return b, nil
}

// ---------------------------------------------------------------------------
// Comparisons and membership
// ---------------------------------------------------------------------------

// CmpOp names a comparison operator.
type CmpOp string

const (
	OpEq CmpOp = "eq"
	OpNe CmpOp = "ne"
	OpLt CmpOp = "lt"
	OpLe CmpOp = "le"
	OpGt CmpOp = "gt"
	OpGe CmpOp = "ge"
)

// Cmp compares two values. Equality is structural over any values;
// ordering is defined for integers and byte strings.
type Cmp struct {
	Op    CmpOp
	Left  Expr
	Right Expr
}

func (e Cmp) compile(st *compileState) error {
	switch e.Op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
	default:
		return fmt.Errorf("vm: unknown comparison operator %q", e.Op)
	}
	if err := e.Left.compile(st); err != nil {
		return err
	}
	return e.Right.compile(st)
}

func (e Cmp) eval(st *execState, env *Env) (Value, error) {
	l, err := e.Left.eval(st, env)
	if err != nil {
		return nil, err
	}
	r, err := e.Right.eval(st, env)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case OpEq:
		return NewBoolValue(st.reg, l.Equal(r)), nil
	case OpNe:
		return NewBoolValue(st.reg, !l.Equal(r)), nil
	}
	ord, err := order(l, r)
	if err != nil {
		return nil, err
	}
	var b bool
	switch e.Op {
	case OpLt:
		b = ord < 0
	case OpLe:
		b = ord <= 0
	case OpGt:
		b = ord > 0
	case OpGe:
		b = ord >= 0
	}
	return NewBoolValue(st.reg, b), nil
}

func order(l, r Value) (int, error) {
	switch lv := l.(type) {
	case IntValue:
		rv, ok := r.(IntValue)
		if !ok {
			return 0, fmt.Errorf("vm: cannot order %s against %s", l, r)
		}
		return lv.Value.Cmp(rv.Value), nil
	case BytesValue:
		rv, ok := r.(BytesValue)
		if !ok {
			return 0, fmt.Errorf("vm: cannot order %s against %s", l, r)
		}
		return bytes.Compare(lv.Value, rv.Value), nil
	default:
		return 0, fmt.Errorf("vm: values of type %T have no ordering", l)
	}
}

// Contains is true when the list contains an element structurally
// equal to Elem.
type Contains struct {
	List Expr
	Elem Expr
}

func (e Contains) compile(st *compileState) error {
	if err := e.List.compile(st); err != nil {
		return err
	}
	return e.Elem.compile(st)
}

func (e Contains) eval(st *execState, env *Env) (Value, error) {
	lv, err := e.List.eval(st, env)
	if err != nil {
		return nil, err
	}
	list, ok := lv.(ListValue)
	if !ok {
		return nil, fmt.Errorf("vm: contains wants a list, got %s", lv)
	}
	elem, err := e.Elem.eval(st, env)
	if err != nil {
		return nil, err
	}
	for _, it := range list.Items {
		if it.Equal(elem) {
			return NewBoolValue(st.reg, true), nil
		}
	}
	return NewBoolValue(st.reg, false), nil
}

// ---------------------------------------------------------------------------
// Match, expect, downcast
// ---------------------------------------------------------------------------

// MatchArm is one branch of a Match expression.
type MatchArm struct {
	Variant string // empty selects the catch-all
	Pattern ArmPattern
	Body    Expr
}

// Match branches over a constructed value's variant. Type names the
// scrutinee's declared type so the pattern set can be compiled ahead
// of runtime. Arm bindings are visible in the arm's body. A value
// whose variant no arm covers fails the evaluation with ErrUnmatched.
type Match struct {
	Scrutinee Expr
	Type      schema.TypeRef
	Arms      []MatchArm
}

func (e *Match) compile(st *compileState) error {
	if err := e.Scrutinee.compile(st); err != nil {
		return err
	}
	desc, err := st.reg.Resolve(e.Type)
	if err != nil {
		return err
	}
	arms := make([]Arm, len(e.Arms))
	for i, a := range e.Arms {
		arms[i] = Arm{Variant: a.Variant, Pattern: a.Pattern}
	}
	plan, err := CompilePatterns(desc, arms)
	if err != nil {
		return err
	}
	st.plans[e] = plan
	for _, a := range e.Arms {
		if a.Body == nil {
			return fmt.Errorf("vm: match arm for %s has no body", e.Type)
		}
		if err := a.Body.compile(st); err != nil {
			return err
		}
	}
	return nil
}

func (e *Match) eval(st *execState, env *Env) (Value, error) {
	plan, ok := st.plans[e]
	if !ok {
		return nil, fmt.Errorf("vm: match on %s evaluated without compilation", e.Type)
	}
	v, err := e.Scrutinee.eval(st, env)
	if err != nil {
		return nil, err
	}
	idx, bindings, err := plan.Match(v, st.budget)
	if err != nil {
		return nil, err
	}
	return e.Arms[idx].Body.eval(st, env.child(bindings))
}

// Expect is the single-arm, no-catch-all match: it destructures one
// expected variant and fails the whole evaluation with ErrUnmatched
// when the value is anything else.
type Expect struct {
	Scrutinee Expr
	Type      schema.TypeRef
	Variant   string
	Pattern   ArmPattern
	Body      Expr
}

func (e *Expect) compile(st *compileState) error {
	if err := e.Scrutinee.compile(st); err != nil {
		return err
	}
	desc, err := st.reg.Resolve(e.Type)
	if err != nil {
		return err
	}
	plan, err := CompilePatterns(desc, []Arm{{Variant: e.Variant, Pattern: e.Pattern}})
	if err != nil {
		return err
	}
	st.plans[e] = plan
	if e.Body == nil {
		return fmt.Errorf("vm: expect on %s has no body", e.Type)
	}
	return e.Body.compile(st)
}

func (e *Expect) eval(st *execState, env *Env) (Value, error) {
	plan, ok := st.plans[e]
	if !ok {
		return nil, fmt.Errorf("vm: expect on %s evaluated without compilation", e.Type)
	}
	v, err := e.Scrutinee.eval(st, env)
	if err != nil {
		return nil, err
	}
	_, bindings, err := plan.Match(v, st.budget)
	if err != nil {
		return nil, err
	}
	return e.Body.eval(st, env.child(bindings))
}

// Downcast is the explicit checked injection from Data to a concrete
// type: the boundary crossing from untyped to typed data inside a
// program. It fails with ErrShapeMismatch when the wrapped term does
// not conform.
type Downcast struct {
	Expr Expr
	Type schema.TypeRef
}

func (e Downcast) compile(st *compileState) error {
	// Resolve named targets now so typos surface before evaluation.
	switch e.Type.Kind {
	case schema.KindNamed, schema.KindBool, schema.KindVoid, schema.KindOption:
		if _, err := st.reg.Resolve(e.Type); err != nil {
			return err
		}
	}
	return e.Expr.compile(st)
}

func (e Downcast) eval(st *execState, env *Env) (Value, error) {
	v, err := e.Expr.eval(st, env)
	if err != nil {
		return nil, err
	}
	d, ok := v.(DataValue)
	if !ok {
		return nil, fmt.Errorf("vm: downcast wants a Data value, got %s", v)
	}
	return Cast(d.Term, e.Type, st.reg, st.budget)
}
