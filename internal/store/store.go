// Package store persists the compact verdict projection of each scanned
// submission: risk level, finding count, safe flag, platform score,
// compliance category, and timestamp. Full scan results are returned to
// the caller, never stored.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // sqlite driver
)

// ErrNotFound reports that no verdict exists for the requested id.
var ErrNotFound = errors.New("submission not found")

// Verdict is the persisted projection of one scan.
type Verdict struct {
	ID           string    `json:"id"`
	Archive      string    `json:"archive"`
	RiskLevel    string    `json:"risk_level"`
	RiskScore    int       `json:"risk_score"`
	FindingCount int       `json:"finding_count"`
	Safe         bool      `json:"safe"`
	Score        int       `json:"score"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store wraps the SQLite database holding submission verdicts.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS verdicts (
	id            TEXT PRIMARY KEY,
	archive       TEXT NOT NULL,
	risk_level    TEXT NOT NULL,
	risk_score    INTEGER NOT NULL,
	finding_count INTEGER NOT NULL,
	safe          INTEGER NOT NULL,
	score         INTEGER NOT NULL,
	category      TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS verdicts_created_at ON verdicts(created_at DESC);
`

// Open opens (creating if needed) the verdict database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening verdict db %s: %w", path, err)
	}
	// modernc sqlite is single-writer; serialize access at the pool level.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing verdict schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveVerdict inserts one verdict row.
func (s *Store) SaveVerdict(ctx context.Context, v Verdict) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verdicts (id, archive, risk_level, risk_score, finding_count, safe, score, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Archive, v.RiskLevel, v.RiskScore, v.FindingCount,
		boolToInt(v.Safe), v.Score, v.Category, v.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving verdict %s: %w", v.ID, err)
	}
	return nil
}

// Get returns the verdict with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Verdict, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, archive, risk_level, risk_score, finding_count, safe, score, category, created_at
		FROM verdicts WHERE id = ?`, id)
	v, err := scanVerdict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Verdict{}, ErrNotFound
	}
	if err != nil {
		return Verdict{}, fmt.Errorf("loading verdict %s: %w", id, err)
	}
	return v, nil
}

// Recent returns up to limit verdicts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Verdict, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, archive, risk_level, risk_score, finding_count, safe, score, category, created_at
		FROM verdicts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing verdicts: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var verdicts []Verdict
	for rows.Next() {
		v, err := scanVerdict(rows)
		if err != nil {
			return nil, fmt.Errorf("listing verdicts: %w", err)
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVerdict(row rowScanner) (Verdict, error) {
	var v Verdict
	var safe int
	var createdAt string
	if err := row.Scan(&v.ID, &v.Archive, &v.RiskLevel, &v.RiskScore,
		&v.FindingCount, &safe, &v.Score, &v.Category, &createdAt); err != nil {
		return Verdict{}, err
	}
	v.Safe = safe != 0
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Verdict{}, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	v.CreatedAt = ts
	return v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
