package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest represents a verdict.toml type manifest: the declarations a
// build step hands to the core at registration time.
type Manifest struct {
	Project Project    `toml:"project"`
	Types   []TypeDecl `toml:"types"`

	// Dir is the directory containing the verdict.toml file (set at
	// load time).
	Dir string `toml:"-"`
}

// Project contains manifest metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// TypeDecl declares one named type.
type TypeDecl struct {
	Name     string        `toml:"name"`
	Params   []string      `toml:"params"`
	Variants []VariantDecl `toml:"variants"`
}

// VariantDecl declares one constructor alternative. Tags follow
// declaration order.
type VariantDecl struct {
	Name   string      `toml:"name"`
	Fields []FieldDecl `toml:"fields"`
}

// FieldDecl declares one field; Name may be omitted for positional
// fields.
type FieldDecl struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// LoadManifest parses a verdict.toml file from the given directory.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "verdict.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return &m, nil
}

// RegisterAll converts every declared type to a descriptor and
// registers it.
func (m *Manifest) RegisterAll(reg *Registry) error {
	for _, decl := range m.Types {
		d, err := decl.Descriptor()
		if err != nil {
			return err
		}
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// Descriptor converts a declaration to a validated TypeDescriptor.
func (decl TypeDecl) Descriptor() (*TypeDescriptor, error) {
	variants := make([]VariantDescriptor, len(decl.Variants))
	for i, v := range decl.Variants {
		fields := make([]FieldDescriptor, len(v.Fields))
		for j, f := range v.Fields {
			ref, err := ParseTypeRef(f.Type, decl.Params)
			if err != nil {
				return nil, fmt.Errorf("schema: type %s variant %s field %d: %w",
					decl.Name, v.Name, j, err)
			}
			fields[j] = FieldDescriptor{Name: f.Name, Type: ref}
		}
		variants[i] = NewVariant(v.Name, fields...)
	}
	d := NewType(decl.Name, decl.Params, variants...)
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// ---------------------------------------------------------------------------
// Type reference syntax
// ---------------------------------------------------------------------------

// ParseTypeRef parses manifest type syntax: "Int", "ByteArray",
// "Bool", "Void", "Data", "List<T>", "Option<T>", "Map<K, V>", named
// types with optional arguments ("Interval<Int>"), and bare
// identifiers matching a declared parameter.
func ParseTypeRef(s string, params []string) (TypeRef, error) {
	p := &refParser{input: s, params: params}
	ref, err := p.parse()
	if err != nil {
		return TypeRef{}, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return TypeRef{}, fmt.Errorf("unexpected %q after type in %q", p.input[p.pos:], s)
	}
	return ref, nil
}

type refParser struct {
	input  string
	pos    int
	params []string
}

func (p *refParser) parse() (TypeRef, error) {
	name, err := p.ident()
	if err != nil {
		return TypeRef{}, err
	}
	var args []TypeRef
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == '<' {
		p.pos++
		for {
			arg, err := p.parse()
			if err != nil {
				return TypeRef{}, err
			}
			args = append(args, arg)
			p.skipSpace()
			if p.pos >= len(p.input) {
				return TypeRef{}, fmt.Errorf("unterminated type arguments in %q", p.input)
			}
			if p.input[p.pos] == ',' {
				p.pos++
				continue
			}
			if p.input[p.pos] == '>' {
				p.pos++
				break
			}
			return TypeRef{}, fmt.Errorf("expected ',' or '>' at %q in %q", p.input[p.pos:], p.input)
		}
	}
	return p.build(name, args)
}

func (p *refParser) build(name string, args []TypeRef) (TypeRef, error) {
	arity := func(want int) error {
		if len(args) != want {
			return fmt.Errorf("%s wants %d type arguments, got %d", name, want, len(args))
		}
		return nil
	}
	switch name {
	case "Int", "ByteArray", "Bool", "Void", "Data":
		if err := arity(0); err != nil {
			return TypeRef{}, err
		}
		switch name {
		case "Int":
			return IntRef(), nil
		case "ByteArray":
			return BytesRef(), nil
		case "Bool":
			return BoolRef(), nil
		case "Void":
			return VoidRef(), nil
		default:
			return DataRef(), nil
		}
	case "List":
		if err := arity(1); err != nil {
			return TypeRef{}, err
		}
		return ListOf(args[0]), nil
	case "Option":
		if err := arity(1); err != nil {
			return TypeRef{}, err
		}
		return OptionOf(args[0]), nil
	case "Map":
		if err := arity(2); err != nil {
			return TypeRef{}, err
		}
		return MapOf(args[0], args[1]), nil
	default:
		if len(args) == 0 {
			for _, param := range p.params {
				if name == param {
					return Param(name), nil
				}
			}
		}
		return Named(name, args...), nil
	}
}

func (p *refParser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) && isIdentChar(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", fmt.Errorf("expected type name at %q in %q", p.input[start:], p.input)
	}
	return p.input[start:p.pos], nil
}

func (p *refParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func isIdentChar(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// ValidateRefs checks that every named type referenced by the manifest
// resolves against the registry (after RegisterAll). It catches typos
// before any term is cast.
func (m *Manifest) ValidateRefs(reg *Registry) error {
	var walk func(ref TypeRef) error
	walk = func(ref TypeRef) error {
		if ref.Kind == KindNamed {
			d, err := reg.Lookup(ref.Name)
			if err != nil {
				return err
			}
			if len(ref.Args) != len(d.Params) {
				return fmt.Errorf("schema: %s wants %d type arguments, got %d",
					ref.Name, len(d.Params), len(ref.Args))
			}
		}
		for _, a := range ref.Args {
			if err := walk(a); err != nil {
				return err
			}
		}
		return nil
	}
	for _, decl := range m.Types {
		for _, v := range decl.Variants {
			for _, f := range v.Fields {
				ref, err := ParseTypeRef(f.Type, decl.Params)
				if err != nil {
					return err
				}
				if err := walk(ref); err != nil {
					return fmt.Errorf("schema: type %s variant %s: %w", decl.Name, v.Name, err)
				}
			}
		}
	}
	return nil
}

// String renders the manifest's type declarations for diagnostics.
func (m *Manifest) String() string {
	var sb strings.Builder
	for _, t := range m.Types {
		fmt.Fprintf(&sb, "%s(%d variants) ", t.Name, len(t.Variants))
	}
	return strings.TrimSpace(sb.String())
}
