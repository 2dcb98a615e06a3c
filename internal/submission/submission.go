// Package submission implements the confirm-before-send gate that sits
// between a fully validated form and the persistence adapter.
//
//	editing ──Review(ok)──▶ awaiting ──Begin──▶ submitting
//	   ▲                       │  ▲                 │
//	   └──────ReviewAgain──────┘  └──Finish(fail)───┤
//	   ▲                                            │
//	   └───────────────Finish(success)──────────────┘
//
// There is no timeout: a pending confirmation waits for the user forever.
// There is no cancellation either: once Begin succeeds, only Finish moves
// the flow on.
package submission

import (
	"errors"
	"time"

	"github.com/aanand-mishra/registration-api/internal/types"
	"github.com/aanand-mishra/registration-api/internal/validation"
)

// State is where the flow currently stands.
type State string

const (
	StateEditing    State = "editing"
	StateAwaiting   State = "awaiting_confirmation"
	StateSubmitting State = "submitting"
)

var (
	// ErrNotAwaiting is returned by Begin when nothing has been reviewed.
	ErrNotAwaiting = errors.New("there is no reviewed application to confirm")

	// ErrInFlight is returned when a submission is already running.
	ErrInFlight = errors.New("a submission is already in progress")
)

// Summary is what the applicant sees in the confirmation dialog.
type Summary struct {
	FullName      string        `json:"fullName"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	Country       types.Country `json:"country"`
	City          string        `json:"city"`
	CurrentSchool string        `json:"currentSchool"`
	Grade         types.Grade   `json:"grade"`
}

// Summarize extracts the key fields of rec.
func Summarize(rec types.RegistrationRecord) Summary {
	return Summary{
		FullName:      rec.FullName,
		Email:         rec.Email,
		Phone:         rec.Phone,
		Country:       rec.Country,
		City:          rec.City,
		CurrentSchool: rec.CurrentSchool,
		Grade:         rec.Grade,
	}
}

// Flow is the confirmation gate for one applicant. It is not safe for
// concurrent use; callers serialize access (see registration.Service).
type Flow struct {
	state     State
	summary   *Summary
	submitted bool
}

// NewFlow returns a Flow in the editing state.
func NewFlow() *Flow {
	return &Flow{state: StateEditing}
}

// State returns the current state.
func (f *Flow) State() State {
	return f.state
}

// Summary returns the pending summary, or nil when nothing is awaiting
// confirmation.
func (f *Flow) Summary() *Summary {
	if f.state == StateEditing {
		return nil
	}
	s := *f.summary
	return &s
}

// Submitted reports whether the last flight ended in success. It is
// reset by the next Review.
func (f *Flow) Submitted() bool {
	return f.submitted
}

// Review re-validates the whole record, independent of the phase the
// applicant is on. When it passes, the flow waits for confirmation and
// the summary is returned; otherwise the flow stays in editing and the
// errors are returned for display.
func (f *Flow) Review(rec types.RegistrationRecord, now time.Time) (*Summary, validation.Errors, error) {
	if f.state == StateSubmitting {
		return nil, nil, ErrInFlight
	}

	f.submitted = false
	if errs := validation.Record(rec, now); len(errs) > 0 {
		f.state = StateEditing
		f.summary = nil
		return nil, errs, nil
	}

	summary := Summarize(rec)
	f.summary = &summary
	f.state = StateAwaiting
	return f.Summary(), nil, nil
}

// ReviewAgain drops a pending confirmation and returns to the form. The
// record is not touched. It is a no-op while editing.
func (f *Flow) ReviewAgain() error {
	if f.state == StateSubmitting {
		return ErrInFlight
	}
	f.state = StateEditing
	f.summary = nil
	return nil
}

// Begin marks the confirmed submission as in flight. A second Begin
// before Finish returns ErrInFlight so the same application cannot be
// sent twice.
func (f *Flow) Begin() error {
	switch f.state {
	case StateSubmitting:
		return ErrInFlight
	case StateAwaiting:
		f.state = StateSubmitting
		return nil
	default:
		return ErrNotAwaiting
	}
}

// Finish ends the flight. On success the flow goes back to editing (the
// caller resets the form); on failure it waits for confirmation again so
// the applicant can retry by hand.
func (f *Flow) Finish(success bool) {
	if f.state != StateSubmitting {
		return
	}
	if success {
		f.state = StateEditing
		f.summary = nil
		f.submitted = true
		return
	}
	f.state = StateAwaiting
}

// Cancel is called when the record changes under a pending confirmation:
// the summary no longer matches what would be sent.
func (f *Flow) Cancel() {
	if f.state == StateAwaiting {
		f.state = StateEditing
		f.summary = nil
	}
}
