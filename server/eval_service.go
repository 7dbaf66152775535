package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chazu/verdict/data"
	"github.com/chazu/verdict/vm"
)

// EvaluateRequest is the JSON body of POST /v1/evaluate. Terms are
// hex-encoded CBOR.
type EvaluateRequest struct {
	Validator string `json:"validator"`
	Datum     string `json:"datum"`
	Redeemer  string `json:"redeemer"`
	Context   string `json:"context"`
	Budget    int64  `json:"budget,omitempty"`
}

// EvaluateResponse reports the verdict. Failures are categorically
// distinct from a false verdict: Verdict is only meaningful when
// FailureKind is empty.
type EvaluateResponse struct {
	Validator   string `json:"validator"`
	Verdict     bool   `json:"verdict"`
	FailureKind string `json:"failure_kind,omitempty"`
	Error       string `json:"error,omitempty"`
	BudgetSpent int64  `json:"budget_spent"`
	AuditID     string `json:"audit_id,omitempty"`
}

func (s *VerdictServer) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Validator == "" {
		http.Error(w, "validator is required", http.StatusBadRequest)
		return
	}

	val, ok := s.Validator(req.Validator)
	if !ok {
		http.Error(w, fmt.Sprintf("validator %q not found", req.Validator), http.StatusNotFound)
		return
	}

	datum, err := s.decodeTerm(req.Datum)
	if err != nil {
		http.Error(w, fmt.Sprintf("datum: %v", err), http.StatusBadRequest)
		return
	}
	redeemer, err := s.decodeTerm(req.Redeemer)
	if err != nil {
		http.Error(w, fmt.Sprintf("redeemer: %v", err), http.StatusBadRequest)
		return
	}
	ctxTerm, err := s.decodeTerm(req.Context)
	if err != nil {
		http.Error(w, fmt.Sprintf("context: %v", err), http.StatusBadRequest)
		return
	}

	var budget *vm.Budget
	steps := req.Budget
	if steps == 0 {
		steps = s.defaultBudget
	}
	if steps > 0 {
		budget = vm.NewBudget(steps)
	}

	evalReq := vm.NewRequest(val.Program, datum, redeemer, ctxTerm, val.DatumType, val.RedeemerType)
	evalReq.Budget = budget

	verdict, evalErr := vm.Evaluate(s.reg, evalReq)

	resp := EvaluateResponse{
		Validator:   val.Name,
		Verdict:     verdict,
		FailureKind: vm.FailureKind(evalErr),
		BudgetSpent: budget.Spent(),
	}
	if evalErr != nil {
		resp.Error = evalErr.Error()
		log.Errorf("validator %q failed: %v", val.Name, evalErr)
	}

	if s.auditStore != nil {
		id, err := s.auditStore.Append(val.Name, verdict, resp.FailureKind, resp.BudgetSpent)
		if err != nil {
			log.Errorf("audit append failed: %v", err)
		} else {
			resp.AuditID = id
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeTerm decodes a hex-encoded CBOR term.
func (s *VerdictServer) decodeTerm(hexStr string) (data.Term, error) {
	if hexStr == "" {
		return nil, fmt.Errorf("term is required")
	}
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decoding hex: %w", err)
	}
	term, err := s.codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding term: %w", err)
	}
	return term, nil
}

// TypeInfo describes one registered type for /v1/types.
type TypeInfo struct {
	Name     string   `json:"name"`
	Params   []string `json:"params,omitempty"`
	Variants []string `json:"variants"`
}

func (s *VerdictServer) handleTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names := s.reg.Names()
	infos := make([]TypeInfo, 0, len(names))
	for _, name := range names {
		desc, err := s.reg.Lookup(name)
		if err != nil {
			continue
		}
		info := TypeInfo{Name: desc.Name, Params: desc.Params}
		for _, v := range desc.Variants {
			info.Variants = append(info.Variants, v.Name)
		}
		infos = append(infos, info)
	}
	writeJSON(w, http.StatusOK, infos)
}

// ValidatorInfo describes one registered validator for /v1/validators.
type ValidatorInfo struct {
	Name         string `json:"name"`
	DatumType    string `json:"datum_type"`
	RedeemerType string `json:"redeemer_type"`
}

func (s *VerdictServer) handleValidators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	infos := make([]ValidatorInfo, 0)
	for _, name := range s.ValidatorNames() {
		val, ok := s.Validator(name)
		if !ok {
			continue
		}
		infos = append(infos, ValidatorInfo{
			Name:         val.Name,
			DatumType:    val.DatumType.String(),
			RedeemerType: val.RedeemerType.String(),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("encoding response: %v", err)
	}
}
