package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the type descriptors known to an evaluator. It is
// populated once at validator-registration time and read-only
// afterwards; concurrent lookups are safe.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*TypeDescriptor
}

// NewRegistry returns a registry pre-loaded with the built-in Bool,
// Option, and Void descriptors.
func NewRegistry() *Registry {
	r := &Registry{types: make(map[string]*TypeDescriptor)}
	for _, d := range []*TypeDescriptor{BoolDescriptor(), OptionDescriptor(), VoidDescriptor()} {
		r.types[d.Name] = d
	}
	return r
}

// Register adds a descriptor. Registering a name twice is an error.
func (r *Registry) Register(d *TypeDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[d.Name]; exists {
		return fmt.Errorf("schema: type %s already registered", d.Name)
	}
	r.types[d.Name] = d
	return nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*TypeDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("schema: unknown type %s", name)
	}
	return d, nil
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve dereferences a type reference to a concrete descriptor,
// instantiating generic descriptors with the reference's type
// arguments. Only variant-bearing references resolve: primitives,
// Data, List, and Map have no descriptor.
func (r *Registry) Resolve(ref TypeRef) (*TypeDescriptor, error) {
	switch ref.Kind {
	case KindBool:
		return r.Lookup("Bool")
	case KindVoid:
		return r.Lookup("Void")
	case KindOption:
		d, err := r.Lookup("Option")
		if err != nil {
			return nil, err
		}
		return d.Instantiate(ref.Args)
	case KindNamed:
		d, err := r.Lookup(ref.Name)
		if err != nil {
			return nil, err
		}
		return d.Instantiate(ref.Args)
	default:
		return nil, fmt.Errorf("schema: type %s has no variants to resolve", ref)
	}
}
