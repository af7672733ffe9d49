// Package store persists raw glossary submissions so the last accepted batch
// survives restarts and can be replayed into a rebuild.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/calaix/esmena/pkg/glossary"
)

// ErrNoSubmissions is returned when the database holds no batch yet.
var ErrNoSubmissions = errors.New("no stored submissions")

// Batch is one saved submission batch.
type Batch struct {
	ID         string
	EntryCount int
	CreatedAt  int64
}

// DB manages the glossary_submissions SQLite table.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the
// glossary_submissions table exists.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open submissions db: %w", err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS glossary_submissions (
		id          TEXT PRIMARY KEY,
		payload     TEXT NOT NULL,
		entry_count INTEGER NOT NULL,
		created_at  INTEGER NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create glossary_submissions table: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the SQLite connection.
func (s *DB) Close() error {
	return s.db.Close()
}

// SaveBatch stores one submission batch as JSON and returns its assigned ID.
func (s *DB) SaveBatch(subs []glossary.Submission) (string, error) {
	payload, err := json.Marshal(subs)
	if err != nil {
		return "", fmt.Errorf("encode submissions: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO glossary_submissions (id, payload, entry_count, created_at) VALUES (?, ?, ?, ?)`,
		id, string(payload), len(subs), time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("save submissions: %w", err)
	}
	return id, nil
}

// LatestBatch returns the most recently saved submission batch, for replaying
// into a rebuild on reload.
func (s *DB) LatestBatch() ([]glossary.Submission, Batch, error) {
	var b Batch
	var payload string
	err := s.db.QueryRow(
		`SELECT id, payload, entry_count, created_at FROM glossary_submissions
		ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	).Scan(&b.ID, &payload, &b.EntryCount, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Batch{}, ErrNoSubmissions
	}
	if err != nil {
		return nil, Batch{}, fmt.Errorf("load latest submissions: %w", err)
	}

	var subs []glossary.Submission
	if err := json.Unmarshal([]byte(payload), &subs); err != nil {
		return nil, Batch{}, fmt.Errorf("decode submissions %s: %w", b.ID, err)
	}
	return subs, b, nil
}

// ListBatches returns saved batch metadata, newest first.
func (s *DB) ListBatches() ([]Batch, error) {
	rows, err := s.db.Query(
		`SELECT id, entry_count, created_at FROM glossary_submissions
		ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.EntryCount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Prune deletes all but the newest keep batches.
func (s *DB) Prune(keep int) error {
	if keep < 1 {
		keep = 1
	}
	_, err := s.db.Exec(
		`DELETE FROM glossary_submissions WHERE id NOT IN (
			SELECT id FROM glossary_submissions ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, keep,
	)
	if err != nil {
		return fmt.Errorf("prune submissions: %w", err)
	}
	return nil
}
