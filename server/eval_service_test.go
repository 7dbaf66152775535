package server

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chazu/verdict/data"
	"github.com/chazu/verdict/schema"
	"github.com/chazu/verdict/vm"
)

var ownerHash = []byte{0xAA, 0x01}

func testServer(t *testing.T, opts ...ServerOption) *VerdictServer {
	t.Helper()

	reg := schema.NewRegistry()
	if err := vm.RegisterContextTypes(reg); err != nil {
		t.Fatalf("RegisterContextTypes: %v", err)
	}
	datum := schema.NewType("SpendDatum", nil,
		schema.NewVariant("SpendDatum",
			schema.Field("owner", schema.BytesRef()),
		),
	)
	if err := reg.Register(datum); err != nil {
		t.Fatalf("Register: %v", err)
	}

	s := New(reg, opts...)

	// Approves when the datum's owner signed the transaction.
	prog := &vm.Program{
		Name: "owner-signed",
		Body: vm.Contains{
			List: vm.Proj{Of: vm.Proj{Of: vm.Var{Name: "ctx"}, Field: "transaction"}, Field: "extra_signatories"},
			Elem: vm.Proj{Of: vm.Var{Name: "datum"}, Field: "owner"},
		},
	}
	if err := s.RegisterValidator(prog, schema.Named("SpendDatum"), schema.VoidRef()); err != nil {
		t.Fatalf("RegisterValidator: %v", err)
	}
	return s
}

func encodeHex(t *testing.T, term data.Term) string {
	t.Helper()
	raw, err := data.DefaultCodec().Encode(term)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return hex.EncodeToString(raw)
}

func contextHex(t *testing.T, signatories ...[]byte) string {
	t.Helper()
	tx := vm.TxInfoTerm{
		Fee:         2,
		Signatories: signatories,
	}
	return encodeHex(t, vm.ContextTerm(tx, vm.SpendPurposeTerm([]byte{0x01}, 0)))
}

func postEvaluate(t *testing.T, s *VerdictServer, req EvaluateRequest) (*httptest.ResponseRecorder, *EvaluateResponse) {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/evaluate", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		return rec, nil
	}
	var resp EvaluateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal response: %v", err)
	}
	return rec, &resp
}

func TestEvaluateVerdicts(t *testing.T) {
	s := testServer(t)

	datumHex := encodeHex(t, data.NewConstr(0, data.NewBytes(ownerHash)))
	redeemerHex := encodeHex(t, data.NewConstr(0))

	tests := []struct {
		name    string
		context string
		want    bool
	}{
		{"owner signed", contextHex(t, ownerHash), true},
		{"nobody signed", contextHex(t), false},
		{"stranger signed", contextHex(t, []byte{0xCC}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := postEvaluate(t, s, EvaluateRequest{
				Validator: "owner-signed",
				Datum:     datumHex,
				Redeemer:  redeemerHex,
				Context:   tt.context,
			})
			if resp == nil {
				t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
			}
			if resp.Verdict != tt.want || resp.FailureKind != "" {
				t.Errorf("verdict = %v (failure %q), want %v", resp.Verdict, resp.FailureKind, tt.want)
			}
		})
	}
}

func TestEvaluateMalformedDatum(t *testing.T) {
	s := testServer(t)

	// Datum with an integer where the owner hash should be.
	datumHex := encodeHex(t, data.NewConstr(0, data.NewInt(7)))
	_, resp := postEvaluate(t, s, EvaluateRequest{
		Validator: "owner-signed",
		Datum:     datumHex,
		Redeemer:  encodeHex(t, data.NewConstr(0)),
		Context:   contextHex(t, ownerHash),
	})
	if resp == nil {
		t.Fatal("expected a 200 response carrying the failure")
	}
	if resp.Verdict || resp.FailureKind != "malformed_datum" {
		t.Errorf("got verdict=%v failure=%q, want malformed_datum", resp.Verdict, resp.FailureKind)
	}
	if resp.Error == "" {
		t.Error("failure response should carry an error message")
	}
}

func TestEvaluateBudgetExhausted(t *testing.T) {
	s := testServer(t)

	_, resp := postEvaluate(t, s, EvaluateRequest{
		Validator: "owner-signed",
		Datum:     encodeHex(t, data.NewConstr(0, data.NewBytes(ownerHash))),
		Redeemer:  encodeHex(t, data.NewConstr(0)),
		Context:   contextHex(t, ownerHash),
		Budget:    1,
	})
	if resp == nil {
		t.Fatal("expected a 200 response carrying the failure")
	}
	if resp.FailureKind != "budget_exhausted" {
		t.Errorf("failure kind = %q, want budget_exhausted", resp.FailureKind)
	}
	if resp.BudgetSpent == 0 {
		t.Error("budget_spent should reflect consumed steps")
	}
}

func TestEvaluateBadRequests(t *testing.T) {
	s := testServer(t)

	valid := EvaluateRequest{
		Validator: "owner-signed",
		Datum:     encodeHex(t, data.NewConstr(0, data.NewBytes(ownerHash))),
		Redeemer:  encodeHex(t, data.NewConstr(0)),
		Context:   contextHex(t, ownerHash),
	}

	tests := []struct {
		name   string
		mutate func(*EvaluateRequest)
		status int
	}{
		{"unknown validator", func(r *EvaluateRequest) { r.Validator = "nope" }, http.StatusNotFound},
		{"missing validator", func(r *EvaluateRequest) { r.Validator = "" }, http.StatusBadRequest},
		{"bad hex", func(r *EvaluateRequest) { r.Datum = "zz" }, http.StatusBadRequest},
		{"missing term", func(r *EvaluateRequest) { r.Context = "" }, http.StatusBadRequest},
		{"undecodable term", func(r *EvaluateRequest) { r.Redeemer = "60" }, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			rec, _ := postEvaluate(t, s, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/evaluate", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /v1/evaluate status = %d, want 405", rec.Code)
	}
}

func TestListTypesAndValidators(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/types", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/types status = %d", rec.Code)
	}
	var types []TypeInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &types); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	found := map[string]bool{}
	for _, ti := range types {
		found[ti.Name] = true
	}
	for _, want := range []string{"ScriptContext", "SpendDatum", "Bool", "Option"} {
		if !found[want] {
			t.Errorf("types listing missing %q", want)
		}
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/validators", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/validators status = %d", rec.Code)
	}
	var vals []ValidatorInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &vals); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(vals) != 1 || vals[0].Name != "owner-signed" || vals[0].DatumType != "SpendDatum" {
		t.Errorf("validators listing = %+v", vals)
	}
}

func TestDuplicateValidatorRejected(t *testing.T) {
	s := testServer(t)

	prog := &vm.Program{Name: "owner-signed", Body: vm.BoolLit{Value: true}}
	if err := s.RegisterValidator(prog, schema.Named("SpendDatum"), schema.VoidRef()); err == nil {
		t.Error("re-registering an existing validator should fail")
	}
}
