// Package sqlite provides a SQLite-backed implementation of both
// persistence contracts of the application:
//
//   - storage.Caller: an in-process stand-in for the remote
//     submit_registration procedure, used in local development
//   - draft.Backend: the key/value table that mirrors in-progress forms
//
// SQLite stores everything in a single file on disk: no network, no
// separate server process. The blank import below registers the sqlite3
// driver with database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aanand-mishra/registration-api/internal/storage"

	// Blank import: side-effect only (registers the "sqlite3" driver).
	_ "github.com/mattn/go-sqlite3"
)

// SQLite holds a *sql.DB, a connection pool managed by database/sql that
// is safe for concurrent use by multiple goroutines.
type SQLite struct {
	Db *sql.DB
}

// New opens the SQLite database at path and creates the registrations
// and drafts tables if they do not exist yet.
func New(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// CREATE TABLE IF NOT EXISTS is idempotent, so it runs on every startup.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS registrations (
			id                     INTEGER PRIMARY KEY AUTOINCREMENT,
			full_name              TEXT    NOT NULL,
			date_of_birth          TEXT    NOT NULL,
			email                  TEXT    NOT NULL UNIQUE COLLATE NOCASE,
			phone                  TEXT    NOT NULL,
			city                   TEXT    NOT NULL,
			country                TEXT    NOT NULL,
			current_school         TEXT    NOT NULL,
			education_level        TEXT    NOT NULL,
			motivation             TEXT    NOT NULL,
			problem_solving        TEXT    NOT NULL,
			used_ai_tools          TEXT    NOT NULL,
			ai_experience          TEXT    NOT NULL DEFAULT '',
			reliable_internet      TEXT    NOT NULL,
			program_commitment     TEXT    NOT NULL,
			additional_information TEXT    NOT NULL DEFAULT '',
			accept_program_emails  INTEGER NOT NULL,
			subscribe_newsletter   INTEGER NOT NULL,
			created_at             TEXT    NOT NULL
		);
		CREATE TABLE IF NOT EXISTS drafts (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: create tables: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// Close releases the connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// CallSubmitRegistration emulates the remote procedure: it rejects an
// e-mail that already applied and otherwise inserts one row, replying
// with the new id. Parameter names map to columns by dropping the "p_"
// prefix, so the column list always follows storage.Params.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) CallSubmitRegistration(ctx context.Context, params []storage.Param) (storage.Reply, error) {
	values := storage.ParamMap(params)

	email, _ := values["p_email"].(string)
	var exists int
	err := s.Db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM registrations WHERE email = ?", strings.TrimSpace(email),
	).Scan(&exists)
	if err != nil {
		return storage.Reply{}, fmt.Errorf("CallSubmitRegistration: check email: %w", err)
	}
	if exists > 0 {
		return storage.Reply{Success: false, Error: "this email address has already been registered"}, nil
	}

	columns := make([]string, 0, len(params)+1)
	placeholders := make([]string, 0, len(params)+1)
	args := make([]any, 0, len(params)+1)
	for _, p := range params {
		column := strings.TrimPrefix(p.Name, "p_")
		value := p.Value
		if column == "email" {
			value = strings.TrimSpace(email)
		}
		columns = append(columns, column)
		placeholders = append(placeholders, "?")
		args = append(args, value)
	}
	columns = append(columns, "created_at")
	placeholders = append(placeholders, "?")
	args = append(args, time.Now().UTC().Format(time.RFC3339))

	stmt, err := s.Db.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO registrations (%s) VALUES (%s)",
		strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	))
	if err != nil {
		return storage.Reply{}, fmt.Errorf("CallSubmitRegistration: prepare: %w", err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return storage.Reply{}, fmt.Errorf("CallSubmitRegistration: exec: %w", err)
	}

	lastID, err := result.LastInsertId()
	if err != nil {
		return storage.Reply{}, fmt.Errorf("CallSubmitRegistration: last insert id: %w", err)
	}

	return storage.Reply{Success: true, ID: storage.FormatID(lastID)}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Draft backend: one row per key, the value is an opaque string.
// ─────────────────────────────────────────────────────────────────────────────

// Get returns the value stored under key and whether it exists.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.Db.QueryRowContext(ctx, "SELECT value FROM drafts WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite.Get: %w", err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (s *SQLite) Put(ctx context.Context, key, value string) error {
	_, err := s.Db.ExecContext(ctx, `
		INSERT INTO drafts (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("sqlite.Put: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.Db.ExecContext(ctx, "DELETE FROM drafts WHERE key = ?", key); err != nil {
		return fmt.Errorf("sqlite.Delete: %w", err)
	}
	return nil
}
