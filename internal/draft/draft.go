// Package draft mirrors in-progress applications into durable key/value
// storage so an applicant who reloads the page (or comes back next week)
// resumes where they left off.
//
// The store is write-through: the whole record is re-serialized on every
// change. It is read once when a session starts and deleted once, after
// a confirmed successful submission. Drafts never expire.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aanand-mishra/registration-api/internal/types"
)

// KeyPrefix scopes draft keys inside a shared backend.
const KeyPrefix = "talaqai-registration-form:"

// Backend is plain key/value string storage. Implementations live in
// storage/sqlite, storage/redis and this package (Memory).
type Backend interface {
	// Get returns the value under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key, value string) error
	// Delete removes key; a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Store encodes records to JSON on top of a Backend.
type Store struct {
	backend Backend
	log     *slog.Logger
}

// New returns a Store on backend. A nil logger falls back to
// slog.Default().
func New(backend Backend, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{backend: backend, log: log}
}

// Key returns the backend key for session id.
func Key(id string) string {
	return KeyPrefix + id
}

// Load returns the draft saved for id.
//
//   - no draft: the empty record
//   - unparseable draft: the empty record; the broken value is discarded
//     and the applicant is never told
//   - backend failure: the empty record and the error, so the caller can
//     log it and carry on with a fresh form
func (s *Store) Load(ctx context.Context, id string) (types.RegistrationRecord, error) {
	raw, ok, err := s.backend.Get(ctx, Key(id))
	if err != nil {
		return types.RegistrationRecord{}, fmt.Errorf("draft.Load: %w", err)
	}
	if !ok {
		return types.RegistrationRecord{}, nil
	}

	var rec types.RegistrationRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.log.Warn("discarding corrupt draft",
			slog.String("id", id),
			slog.String("error", err.Error()))
		if err := s.backend.Delete(ctx, Key(id)); err != nil {
			s.log.Warn("failed to delete corrupt draft",
				slog.String("id", id),
				slog.String("error", err.Error()))
		}
		return types.RegistrationRecord{}, nil
	}
	return rec, nil
}

// Save serializes the whole record under id.
func (s *Store) Save(ctx context.Context, id string, rec types.RegistrationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("draft.Save: encode: %w", err)
	}
	if err := s.backend.Put(ctx, Key(id), string(data)); err != nil {
		return fmt.Errorf("draft.Save: %w", err)
	}
	return nil
}

// Clear deletes the draft for id.
func (s *Store) Clear(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, Key(id)); err != nil {
		return fmt.Errorf("draft.Clear: %w", err)
	}
	return nil
}
