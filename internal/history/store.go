package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one finished run in the local history
type Record struct {
	ID         string // local identifier, independent of the server's run_id
	RunID      string // server-assigned run identifier, empty if submission failed
	InstanceID string
	Status     string // "resolved" or "failed"
	Patch      string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store provides SQLite-backed run history persistence
type Store struct {
	db *sql.DB
}

// New creates a Store at the given database path, creating parent
// directories as needed. Use ":memory:" for an ephemeral store.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun persists one finished run. A missing ID is filled with a
// fresh UUID; the generated record is returned.
func (s *Store) SaveRun(rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, run_id, instance_id, status, patch, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.RunID,
		rec.InstanceID,
		rec.Status,
		rec.Patch,
		rec.Error,
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListRecent returns up to limit runs, most recently finished first
func (s *Store) ListRecent(limit int) ([]*Record, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, instance_id, status, patch, error, started_at, finished_at
		FROM runs
		ORDER BY finished_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.InstanceID,
			&rec.Status,
			&rec.Patch,
			&rec.Error,
			&rec.StartedAt,
			&rec.FinishedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Get retrieves a run by local ID or server run_id
func (s *Store) Get(id string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT id, run_id, instance_id, status, patch, error, started_at, finished_at
		FROM runs
		WHERE id = ? OR run_id = ?
	`, id, id)

	var rec Record
	if err := row.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.InstanceID,
		&rec.Status,
		&rec.Patch,
		&rec.Error,
		&rec.StartedAt,
		&rec.FinishedAt,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}
