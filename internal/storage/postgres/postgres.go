// Package postgres calls the submit_registration database function of a
// managed PostgreSQL backend through lib/pq.
//
// The function owns the write: it checks for a duplicate e-mail, inserts
// the row and answers with a JSON object of the storage.Reply shape. This
// package only builds the call and decodes the answer. Migrate installs
// the table and the function for self-hosted databases.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	// registers the "postgres" driver
	_ "github.com/lib/pq"

	"github.com/aanand-mishra/registration-api/internal/storage"
)

// Postgres implements storage.Caller.
type Postgres struct {
	db *sql.DB
}

// Open connects to dsn, verifies the connection and sizes the pool.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.Open: open connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres.Open: ping: %w", err)
	}

	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(15 * time.Minute)

	return &Postgres{db: db}, nil
}

// New wraps an existing pool.
func New(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Close releases the pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Migrate creates the registrations table and (re)defines the
// submit_registration function. Safe to run on every startup.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres.Migrate: %w", err)
	}
	return nil
}

// CallSubmitRegistration runs
//
//	SELECT submit_registration(p_full_name => $1, p_date_of_birth => $2, ...)::text
//
// and decodes the JSON answer.
func (p *Postgres) CallSubmitRegistration(ctx context.Context, params []storage.Param) (storage.Reply, error) {
	query, args := callQuery(params)

	var raw string
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return storage.Reply{}, fmt.Errorf("postgres.CallSubmitRegistration: %w", err)
	}

	var reply storage.Reply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return storage.Reply{}, fmt.Errorf("postgres.CallSubmitRegistration: decode reply: %w", err)
	}
	return reply, nil
}

// callQuery builds the named-notation call for params.
func callQuery(params []storage.Param) (string, []any) {
	named := make([]string, len(params))
	args := make([]any, len(params))
	for i, p := range params {
		named[i] = fmt.Sprintf("%s => $%d", p.Name, i+1)
		args[i] = p.Value
	}
	query := fmt.Sprintf("SELECT %s(%s)::text", storage.ProcedureName, strings.Join(named, ", "))
	return query, args
}

const schema = `
CREATE TABLE IF NOT EXISTS registrations (
	id                     BIGSERIAL PRIMARY KEY,
	full_name              TEXT        NOT NULL,
	date_of_birth          DATE        NOT NULL,
	email                  TEXT        NOT NULL,
	phone                  TEXT        NOT NULL,
	city                   TEXT        NOT NULL,
	country                TEXT        NOT NULL,
	current_school         TEXT        NOT NULL,
	education_level        TEXT        NOT NULL,
	motivation             TEXT        NOT NULL,
	problem_solving        TEXT        NOT NULL,
	used_ai_tools          TEXT        NOT NULL,
	ai_experience          TEXT        NOT NULL DEFAULT '',
	reliable_internet      TEXT        NOT NULL,
	program_commitment     TEXT        NOT NULL,
	additional_information TEXT        NOT NULL DEFAULT '',
	accept_program_emails  BOOLEAN     NOT NULL,
	subscribe_newsletter   BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS registrations_email_key ON registrations (lower(email));

CREATE OR REPLACE FUNCTION submit_registration(
	p_full_name              TEXT,
	p_date_of_birth          DATE,
	p_email                  TEXT,
	p_phone                  TEXT,
	p_city                   TEXT,
	p_country                TEXT,
	p_current_school         TEXT,
	p_education_level        TEXT,
	p_motivation             TEXT,
	p_problem_solving        TEXT,
	p_used_ai_tools          TEXT,
	p_ai_experience          TEXT,
	p_reliable_internet      TEXT,
	p_program_commitment     TEXT,
	p_additional_information TEXT,
	p_accept_program_emails  BOOLEAN,
	p_subscribe_newsletter   BOOLEAN
) RETURNS JSON
LANGUAGE plpgsql
SECURITY DEFINER
AS $$
DECLARE
	new_id BIGINT;
BEGIN
	IF EXISTS (SELECT 1 FROM registrations WHERE lower(email) = lower(trim(p_email))) THEN
		RETURN json_build_object('success', false, 'error', 'this email address has already been registered');
	END IF;

	INSERT INTO registrations (
		full_name, date_of_birth, email, phone, city, country, current_school,
		education_level, motivation, problem_solving, used_ai_tools, ai_experience,
		reliable_internet, program_commitment, additional_information,
		accept_program_emails, subscribe_newsletter
	) VALUES (
		p_full_name, p_date_of_birth, trim(p_email), p_phone, p_city, p_country, p_current_school,
		p_education_level, p_motivation, p_problem_solving, p_used_ai_tools, coalesce(p_ai_experience, ''),
		p_reliable_internet, p_program_commitment, coalesce(p_additional_information, ''),
		p_accept_program_emails, coalesce(p_subscribe_newsletter, false)
	)
	RETURNING id INTO new_id;

	RETURN json_build_object('success', true, 'id', new_id);
EXCEPTION
	WHEN others THEN
		RETURN json_build_object('success', false, 'error', SQLERRM);
END;
$$;
`
