// Package audit records evaluation outcomes in a local SQLite
// database so operators can review what each validator decided and
// how much budget it consumed.
package audit

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrRecordNotFound indicates the requested record doesn't exist.
var ErrRecordNotFound = errors.New("audit record not found")

// Record is one evaluation outcome.
type Record struct {
	ID          string
	Validator   string
	Verdict     bool
	FailureKind string
	BudgetSpent int64
	CreatedAt   time.Time
}

// Store handles SQLite storage for evaluation records.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// NewStore opens (or creates) the audit database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	s := &Store{dbPath: dbPath}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		validator TEXT NOT NULL,
		verdict INTEGER NOT NULL,
		failure_kind TEXT NOT NULL,
		budget_spent INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return s, nil
}

// NewStoreDefault opens the audit database at its default path.
func NewStoreDefault() (*Store, error) {
	dbPath := os.Getenv("VERDICT_AUDIT_DB")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home dir: %w", err)
		}
		dbPath = filepath.Join(home, ".verdict", "audit.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating audit dir: %w", err)
	}
	return NewStore(dbPath)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Append records an evaluation outcome and returns the assigned record ID.
func (s *Store) Append(validator string, verdict bool, failureKind string, budgetSpent int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.Exec(
		"INSERT INTO evaluations (id, validator, verdict, failure_kind, budget_spent, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, validator, boolToInt(verdict), failureKind, budgetSpent,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("saving record: %w", err)
	}
	return id, nil
}

// Load retrieves a single record by ID.
func (s *Store) Load(id string) (*Record, error) {
	row := s.db.QueryRow(
		"SELECT id, validator, verdict, failure_kind, budget_spent, created_at FROM evaluations WHERE id = ?",
		id,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying record: %w", err)
	}
	return rec, nil
}

// FindByValidator returns all records for a validator, newest first.
func (s *Store) FindByValidator(validator string) ([]*Record, error) {
	rows, err := s.db.Query(
		"SELECT id, validator, verdict, failure_kind, budget_spent, created_at FROM evaluations WHERE validator = ? ORDER BY created_at DESC",
		validator,
	)
	if err != nil {
		return nil, fmt.Errorf("querying by validator: %w", err)
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Count returns the total number of recorded evaluations.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM evaluations").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var verdict int
	var created string
	if err := row.Scan(&rec.ID, &rec.Validator, &verdict, &rec.FailureKind, &rec.BudgetSpent, &created); err != nil {
		return nil, err
	}
	rec.Verdict = verdict != 0
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}
	rec.CreatedAt = ts
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
