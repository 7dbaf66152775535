// Package server exposes validator evaluation over HTTP/JSON.
package server

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/verdict/audit"
	"github.com/chazu/verdict/data"
	"github.com/chazu/verdict/schema"
	"github.com/chazu/verdict/vm"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("verdict.server")

// Validator is a named, compiled decision program together with the
// declared types of its datum and redeemer.
type Validator struct {
	Name         string
	Program      *vm.Compiled
	DatumType    schema.TypeRef
	RedeemerType schema.TypeRef
}

// VerdictServer serves evaluation requests against a fixed type
// registry and a set of registered validators.
type VerdictServer struct {
	reg   *schema.Registry
	codec data.Codec
	mux   *http.ServeMux

	mu         sync.RWMutex
	validators map[string]*Validator

	auditStore    *audit.Store
	defaultBudget int64
}

// ServerOption configures a VerdictServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	codec         data.Codec
	auditStore    *audit.Store
	defaultBudget int64
}

// WithCodec sets the wire codec used to decode term payloads. Without
// this, the bundled CBOR codec is used.
func WithCodec(c data.Codec) ServerOption {
	return func(cfg *serverConfig) { cfg.codec = c }
}

// WithAuditStore records every evaluation outcome in the given store.
func WithAuditStore(s *audit.Store) ServerOption {
	return func(cfg *serverConfig) { cfg.auditStore = s }
}

// WithDefaultBudget caps evaluations that don't carry their own budget.
// Zero means unlimited.
func WithDefaultBudget(steps int64) ServerOption {
	return func(cfg *serverConfig) { cfg.defaultBudget = steps }
}

// New creates a VerdictServer over the given registry.
func New(reg *schema.Registry, opts ...ServerOption) *VerdictServer {
	cfg := &serverConfig{
		codec: data.DefaultCodec(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &VerdictServer{
		reg:           reg,
		codec:         cfg.codec,
		mux:           http.NewServeMux(),
		validators:    make(map[string]*Validator),
		auditStore:    cfg.auditStore,
		defaultBudget: cfg.defaultBudget,
	}

	s.mux.HandleFunc("/v1/evaluate", s.handleEvaluate)
	s.mux.HandleFunc("/v1/types", s.handleTypes)
	s.mux.HandleFunc("/v1/validators", s.handleValidators)

	return s
}

// RegisterValidator compiles prog against the server's registry and
// makes it callable by name.
func (s *VerdictServer) RegisterValidator(prog *vm.Program, datumType, redeemerType schema.TypeRef) error {
	compiled, err := prog.Compile(s.reg)
	if err != nil {
		return fmt.Errorf("compiling validator %q: %w", prog.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.validators[prog.Name]; exists {
		return fmt.Errorf("validator %q already registered", prog.Name)
	}
	s.validators[prog.Name] = &Validator{
		Name:         prog.Name,
		Program:      compiled,
		DatumType:    datumType,
		RedeemerType: redeemerType,
	}
	log.Infof("registered validator %q", prog.Name)
	return nil
}

// Validator returns the named validator, if registered.
func (s *VerdictServer) Validator(name string) (*Validator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.validators[name]
	return v, ok
}

// ValidatorNames returns the registered validator names, sorted.
func (s *VerdictServer) ValidatorNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.validators))
	for name := range s.validators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handler returns the server's HTTP handler.
func (s *VerdictServer) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *VerdictServer) ListenAndServe(addr string) error {
	log.Infof("verdict server listening on %s", addr)
	return http.ListenAndServe(addr, s.mux)
}
