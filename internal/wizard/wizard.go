// Package wizard implements the four-phase registration form as an
// explicit state machine.
//
// A Machine owns three things: the current phase, the record being built
// and the per-field error messages currently on screen. The view layer
// holds the Machine and passes every user action through it; nothing
// else mutates the record.
//
// Error display follows two rules that are part of the UX contract:
//
//   - errors are only ADDED by Next (phase validation) or ShowErrors
//     (full-record validation before submission)
//   - an Edit may only REMOVE errors: if the edited field shows an error
//     and now passes, the error disappears; a new problem stays silent
//     until the next Next or submission attempt
package wizard

import (
	"maps"
	"time"

	"github.com/aanand-mishra/registration-api/internal/types"
	"github.com/aanand-mishra/registration-api/internal/validation"
)

// Machine is not safe for concurrent use; callers serialize access.
type Machine struct {
	phase  types.Phase
	record types.RegistrationRecord
	errs   validation.Errors
	now    func() time.Time
}

// New returns a Machine on the first phase holding rec (typically a
// draft restored from the draft store, or the zero record). now is read
// on every validation so age checks never use a stale clock.
func New(rec types.RegistrationRecord, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{
		phase:  types.FirstPhase,
		record: rec,
		errs:   validation.Errors{},
		now:    now,
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() types.Phase {
	return m.phase
}

// Record returns a copy of the record.
func (m *Machine) Record() types.RegistrationRecord {
	return m.record
}

// Errors returns a copy of the errors currently displayed.
func (m *Machine) Errors() validation.Errors {
	return maps.Clone(m.errs)
}

// VisibleFields lists the fields shown on the current phase; hidden
// conditional fields are left out.
func (m *Machine) VisibleFields() []types.Field {
	return m.record.VisibleFields(m.phase)
}

// Edit stores raw into field and returns the updated record.
//
// Changing the country re-anchors the phone number on the new country's
// dialing prefix. After the change, every displayed error on the edited
// field, on fields rewritten by the edit, or on fields whose visibility
// depends on it is re-checked and cleared if it now passes.
//
// A parse error (bad date, bad boolean, unknown field) leaves the record
// untouched.
func (m *Machine) Edit(field types.Field, raw string) (types.RegistrationRecord, error) {
	next := m.record
	if err := next.Set(field, raw); err != nil {
		return m.record, err
	}

	touched := []types.Field{field}
	if field == types.FieldCountry && next.Country != m.record.Country {
		next.Phone = types.ReanchorPhone(m.record.Phone, m.record.Country, next.Country)
		touched = append(touched, types.FieldPhone)
	}
	touched = append(touched, types.Dependents(field)...)

	m.record = next
	m.clearResolved(touched)
	return m.record, nil
}

// Next validates the current phase. When it passes the machine advances
// one phase (staying put on the last one), clears all displayed errors
// and returns true. Otherwise the displayed errors become exactly the
// failing fields and Next returns false.
func (m *Machine) Next() (bool, validation.Errors) {
	errs := validation.Phase(m.record, m.phase, m.now())
	if len(errs) > 0 {
		m.errs = errs
		return false, m.Errors()
	}

	if m.phase < types.LastPhase {
		m.phase++
	}
	m.errs = validation.Errors{}
	return true, nil
}

// Previous goes back one phase without validating and without touching
// the displayed errors. It reports false on the first phase.
func (m *Machine) Previous() bool {
	if m.phase <= types.FirstPhase {
		return false
	}
	m.phase--
	return true
}

// OnLastPhase reports whether the submit action is available.
func (m *Machine) OnLastPhase() bool {
	return m.phase == types.LastPhase
}

// ShowErrors replaces the displayed errors, typically with the result of
// a full-record validation run before submission.
func (m *Machine) ShowErrors(errs validation.Errors) {
	m.errs = maps.Clone(errs)
	if m.errs == nil {
		m.errs = validation.Errors{}
	}
}

// Reset empties the record and returns to the first phase. Used after a
// successful submission.
func (m *Machine) Reset() {
	m.phase = types.FirstPhase
	m.record = types.RegistrationRecord{}
	m.errs = validation.Errors{}
}

func (m *Machine) clearResolved(fields []types.Field) {
	now := m.now()
	for _, f := range fields {
		if !m.errs.Has(f) {
			continue
		}
		if validation.Field(m.record, f, now) == nil {
			delete(m.errs, f)
		}
	}
}
