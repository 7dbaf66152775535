package audit

import (
	"errors"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndLoad(t *testing.T) {
	s := tempStore(t)

	id, err := s.Append("vesting", true, "", 42)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if id == "" {
		t.Fatal("Append returned empty id")
	}

	rec, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Validator != "vesting" || !rec.Verdict || rec.FailureKind != "" || rec.BudgetSpent != 42 {
		t.Errorf("loaded record %+v", rec)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("record has zero timestamp")
	}
}

func TestLoadMissing(t *testing.T) {
	s := tempStore(t)

	if _, err := s.Load("no-such-id"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Load of missing id = %v, want ErrRecordNotFound", err)
	}
}

func TestFindByValidator(t *testing.T) {
	s := tempStore(t)

	if _, err := s.Append("vesting", false, "shape_mismatch", 3); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := s.Append("vesting", true, "", 10); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := s.Append("other", true, "", 1); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recs, err := s.FindByValidator("vesting")
	if err != nil {
		t.Fatalf("FindByValidator: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("FindByValidator returned %d records, want 2", len(recs))
	}
	for _, rec := range recs {
		if rec.Validator != "vesting" {
			t.Errorf("record for wrong validator: %+v", rec)
		}
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}
