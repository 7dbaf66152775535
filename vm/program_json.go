package vm

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/chazu/verdict/schema"
)

// Programs have a JSON wire form so validators can be loaded from
// scenario files and registered over the service boundary. Every node
// is an object with an "op" discriminator; type references use
// manifest syntax ("Option<Data>").

type nodeJSON struct {
	Op        string          `json:"op"`
	Value     json.RawMessage `json:"value,omitempty"`
	Name      string          `json:"name,omitempty"`
	Of        *nodeJSON       `json:"of,omitempty"`
	Arg       *nodeJSON       `json:"arg,omitempty"`
	Args      []*nodeJSON     `json:"args,omitempty"`
	Cmp       string          `json:"cmp,omitempty"`
	Left      *nodeJSON       `json:"left,omitempty"`
	Right     *nodeJSON       `json:"right,omitempty"`
	List      *nodeJSON       `json:"list,omitempty"`
	Elem      *nodeJSON       `json:"elem,omitempty"`
	Scrutinee *nodeJSON       `json:"scrutinee,omitempty"`
	Type      string          `json:"type,omitempty"`
	Arms      []*armJSON      `json:"arms,omitempty"`
	Variant   string          `json:"variant,omitempty"`
	Pattern   *patternJSON    `json:"pattern,omitempty"`
	Body      *nodeJSON       `json:"body,omitempty"`
}

type armJSON struct {
	Variant string       `json:"variant,omitempty"`
	Pattern *patternJSON `json:"pattern,omitempty"`
	Body    *nodeJSON    `json:"body"`
}

type patternJSON struct {
	Positional bool            `json:"positional,omitempty"`
	Rest       bool            `json:"rest,omitempty"`
	Fields     []*fieldPatJSON `json:"fields,omitempty"`
}

type fieldPatJSON struct {
	Name    string    `json:"name,omitempty"`
	Bind    string    `json:"bind,omitempty"`
	Discard bool      `json:"discard,omitempty"`
	Literal *nodeJSON `json:"literal,omitempty"`
}

// ParseProgram decodes a program body from its JSON wire form.
func ParseProgram(name string, src []byte) (*Program, error) {
	var root nodeJSON
	if err := json.Unmarshal(src, &root); err != nil {
		return nil, fmt.Errorf("vm: parse program %q: %w", name, err)
	}
	body, err := exprFromJSON(&root)
	if err != nil {
		return nil, fmt.Errorf("vm: parse program %q: %w", name, err)
	}
	return &Program{Name: name, Body: body}, nil
}

// MarshalProgram encodes a program body to its JSON wire form.
func MarshalProgram(p *Program) ([]byte, error) {
	node, err := exprToJSON(p.Body)
	if err != nil {
		return nil, fmt.Errorf("vm: marshal program %q: %w", p.Name, err)
	}
	return json.Marshal(node)
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

func exprFromJSON(n *nodeJSON) (Expr, error) {
	if n == nil {
		return nil, fmt.Errorf("missing expression")
	}
	switch n.Op {
	case "int":
		var s string
		if err := json.Unmarshal(n.Value, &s); err != nil {
			return nil, fmt.Errorf("int literal wants a decimal string: %w", err)
		}
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("bad integer literal %q", s)
		}
		return IntLit{Value: v}, nil
	case "bytes":
		var s string
		if err := json.Unmarshal(n.Value, &s); err != nil {
			return nil, fmt.Errorf("bytes literal wants a hex string: %w", err)
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("bad bytes literal %q: %w", s, err)
		}
		return BytesLit{Value: b}, nil
	case "bool":
		var b bool
		if err := json.Unmarshal(n.Value, &b); err != nil {
			return nil, fmt.Errorf("bool literal wants true or false: %w", err)
		}
		return BoolLit{Value: b}, nil
	case "var":
		if n.Name == "" {
			return nil, fmt.Errorf("var node wants a name")
		}
		return Var{Name: n.Name}, nil
	case "field":
		of, err := exprFromJSON(n.Of)
		if err != nil {
			return nil, err
		}
		if n.Name == "" {
			return nil, fmt.Errorf("field node wants a name")
		}
		return Proj{Of: of, Field: n.Name}, nil
	case "and", "or":
		exprs, err := exprsFromJSON(n.Args)
		if err != nil {
			return nil, err
		}
		if n.Op == "and" {
			return And{Exprs: exprs}, nil
		}
		return Or{Exprs: exprs}, nil
	case "not":
		arg, err := exprFromJSON(n.Arg)
		if err != nil {
			return nil, err
		}
		return Not{Expr: arg}, nil
	case "cmp":
		l, err := exprFromJSON(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := exprFromJSON(n.Right)
		if err != nil {
			return nil, err
		}
		return Cmp{Op: CmpOp(n.Cmp), Left: l, Right: r}, nil
	case "contains":
		list, err := exprFromJSON(n.List)
		if err != nil {
			return nil, err
		}
		elem, err := exprFromJSON(n.Elem)
		if err != nil {
			return nil, err
		}
		return Contains{List: list, Elem: elem}, nil
	case "match":
		scrut, err := exprFromJSON(n.Scrutinee)
		if err != nil {
			return nil, err
		}
		ref, err := schema.ParseTypeRef(n.Type, nil)
		if err != nil {
			return nil, err
		}
		arms := make([]MatchArm, len(n.Arms))
		for i, a := range n.Arms {
			body, err := exprFromJSON(a.Body)
			if err != nil {
				return nil, err
			}
			pat, err := patternFromJSON(a.Pattern)
			if err != nil {
				return nil, err
			}
			arms[i] = MatchArm{Variant: a.Variant, Pattern: pat, Body: body}
		}
		return &Match{Scrutinee: scrut, Type: ref, Arms: arms}, nil
	case "expect":
		scrut, err := exprFromJSON(n.Scrutinee)
		if err != nil {
			return nil, err
		}
		ref, err := schema.ParseTypeRef(n.Type, nil)
		if err != nil {
			return nil, err
		}
		pat, err := patternFromJSON(n.Pattern)
		if err != nil {
			return nil, err
		}
		body, err := exprFromJSON(n.Body)
		if err != nil {
			return nil, err
		}
		return &Expect{Scrutinee: scrut, Type: ref, Variant: n.Variant, Pattern: pat, Body: body}, nil
	case "downcast":
		arg, err := exprFromJSON(n.Arg)
		if err != nil {
			return nil, err
		}
		ref, err := schema.ParseTypeRef(n.Type, nil)
		if err != nil {
			return nil, err
		}
		return Downcast{Expr: arg, Type: ref}, nil
	default:
		return nil, fmt.Errorf("unknown op %q", n.Op)
	}
}

func exprsFromJSON(nodes []*nodeJSON) ([]Expr, error) {
	exprs := make([]Expr, len(nodes))
	for i, n := range nodes {
		e, err := exprFromJSON(n)
		if err != nil {
			return nil, err
		}
		exprs[i] = e
	}
	return exprs, nil
}

func patternFromJSON(p *patternJSON) (ArmPattern, error) {
	if p == nil {
		return ArmPattern{}, nil
	}
	pat := ArmPattern{Positional: p.Positional, Rest: p.Rest}
	for _, f := range p.Fields {
		fp := FieldPat{Name: f.Name, Bind: f.Bind, Discard: f.Discard}
		if f.Literal != nil {
			lit, err := literalFromJSON(f.Literal)
			if err != nil {
				return ArmPattern{}, err
			}
			fp.Literal = lit
		}
		pat.Fields = append(pat.Fields, fp)
	}
	return pat, nil
}

// literalFromJSON restricts pattern literals to self-contained values.
func literalFromJSON(n *nodeJSON) (Value, error) {
	e, err := exprFromJSON(n)
	if err != nil {
		return nil, err
	}
	switch lit := e.(type) {
	case IntLit:
		return IntValue{Value: lit.Value}, nil
	case BytesLit:
		return BytesValue{Value: lit.Value}, nil
	case BoolLit:
		tag := schema.FalseTag
		if lit.Value {
			tag = schema.TrueTag
		}
		return ConstrValue{Type: schema.BoolDescriptor(), Ref: schema.BoolRef(), Tag: tag}, nil
	default:
		return nil, fmt.Errorf("pattern literal must be an int, bytes, or bool literal")
	}
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func exprToJSON(e Expr) (*nodeJSON, error) {
	switch t := e.(type) {
	case IntLit:
		return litNode("int", t.Value.String())
	case BytesLit:
		return litNode("bytes", hex.EncodeToString(t.Value))
	case BoolLit:
		raw, _ := json.Marshal(t.Value)
		return &nodeJSON{Op: "bool", Value: raw}, nil
	case Var:
		return &nodeJSON{Op: "var", Name: t.Name}, nil
	case Proj:
		of, err := exprToJSON(t.Of)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{Op: "field", Of: of, Name: t.Field}, nil
	case And:
		args, err := exprsToJSON(t.Exprs)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{Op: "and", Args: args}, nil
	case Or:
		args, err := exprsToJSON(t.Exprs)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{Op: "or", Args: args}, nil
	case Not:
		arg, err := exprToJSON(t.Expr)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{Op: "not", Arg: arg}, nil
	case Cmp:
		l, err := exprToJSON(t.Left)
		if err != nil {
			return nil, err
		}
		r, err := exprToJSON(t.Right)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{Op: "cmp", Cmp: string(t.Op), Left: l, Right: r}, nil
	case Contains:
		list, err := exprToJSON(t.List)
		if err != nil {
			return nil, err
		}
		elem, err := exprToJSON(t.Elem)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{Op: "contains", List: list, Elem: elem}, nil
	case *Match:
		scrut, err := exprToJSON(t.Scrutinee)
		if err != nil {
			return nil, err
		}
		arms := make([]*armJSON, len(t.Arms))
		for i, a := range t.Arms {
			body, err := exprToJSON(a.Body)
			if err != nil {
				return nil, err
			}
			pat, err := patternToJSON(a.Pattern)
			if err != nil {
				return nil, err
			}
			arms[i] = &armJSON{Variant: a.Variant, Pattern: pat, Body: body}
		}
		return &nodeJSON{Op: "match", Scrutinee: scrut, Type: t.Type.String(), Arms: arms}, nil
	case *Expect:
		scrut, err := exprToJSON(t.Scrutinee)
		if err != nil {
			return nil, err
		}
		pat, err := patternToJSON(t.Pattern)
		if err != nil {
			return nil, err
		}
		body, err := exprToJSON(t.Body)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{
			Op: "expect", Scrutinee: scrut, Type: t.Type.String(),
			Variant: t.Variant, Pattern: pat, Body: body,
		}, nil
	case Downcast:
		arg, err := exprToJSON(t.Expr)
		if err != nil {
			return nil, err
		}
		return &nodeJSON{Op: "downcast", Arg: arg, Type: t.Type.String()}, nil
	default:
		return nil, fmt.Errorf("cannot marshal expression of type %T", e)
	}
}

func exprsToJSON(exprs []Expr) ([]*nodeJSON, error) {
	nodes := make([]*nodeJSON, len(exprs))
	for i, e := range exprs {
		n, err := exprToJSON(e)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}
	return nodes, nil
}

func patternToJSON(p ArmPattern) (*patternJSON, error) {
	if !p.Positional && !p.Rest && len(p.Fields) == 0 {
		return nil, nil
	}
	out := &patternJSON{Positional: p.Positional, Rest: p.Rest}
	for _, f := range p.Fields {
		fp := &fieldPatJSON{Name: f.Name, Bind: f.Bind, Discard: f.Discard}
		if f.Literal != nil {
			lit, err := literalToJSON(f.Literal)
			if err != nil {
				return nil, err
			}
			fp.Literal = lit
		}
		out.Fields = append(out.Fields, fp)
	}
	return out, nil
}

func literalToJSON(v Value) (*nodeJSON, error) {
	switch t := v.(type) {
	case IntValue:
		return litNode("int", t.Value.String())
	case BytesValue:
		return litNode("bytes", hex.EncodeToString(t.Value))
	case ConstrValue:
		if b, ok := AsBool(t); ok {
			raw, _ := json.Marshal(b)
			return &nodeJSON{Op: "bool", Value: raw}, nil
		}
		return nil, fmt.Errorf("cannot marshal constructed pattern literal %s", t)
	default:
		return nil, fmt.Errorf("cannot marshal pattern literal %s", v)
	}
}

func litNode(op, s string) (*nodeJSON, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return &nodeJSON{Op: op, Value: raw}, nil
}
