// Package storage defines the persistence contract for submitted
// applications and the Adapter that turns a validated record into one
// remote procedure call.
//
// WHY AN INTERFACE?
// ─────────────────
// The rest of the application should not know or care which backend
// receives the application. The remote side exposes a single procedure,
// submit_registration, taking every field as a named parameter. Each
// backend package (postgres, rest, sqlite) only has to implement Caller:
//
//   - Switching backends = one config value, zero changes elsewhere.
//   - Writing tests = pass a fake Caller. No real database needed.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aanand-mishra/registration-api/internal/types"
)

// ProcedureName is the remote procedure every backend exposes.
const ProcedureName = "submit_registration"

// Param is one named argument of the remote procedure.
type Param struct {
	Name  string
	Value any
}

// Params maps rec to the procedure's named parameters, in a fixed order.
// Optional free text is sent as-is (possibly empty); the experience text
// is only sent when the applicant said they have used AI tools.
func Params(rec types.RegistrationRecord) []Param {
	experience := ""
	if rec.Visible(types.FieldAIExperience) {
		experience = rec.AIExperience
	}

	return []Param{
		{Name: "p_full_name", Value: rec.FullName},
		{Name: "p_date_of_birth", Value: rec.DateOfBirth.String()},
		{Name: "p_email", Value: rec.Email},
		{Name: "p_phone", Value: rec.Phone},
		{Name: "p_city", Value: rec.City},
		{Name: "p_country", Value: string(rec.Country)},
		{Name: "p_current_school", Value: rec.CurrentSchool},
		{Name: "p_education_level", Value: string(rec.Grade)},
		{Name: "p_motivation", Value: rec.Motivation},
		{Name: "p_problem_solving", Value: rec.ProblemSolving},
		{Name: "p_used_ai_tools", Value: string(rec.UsedAITools)},
		{Name: "p_ai_experience", Value: experience},
		{Name: "p_reliable_internet", Value: string(rec.ReliableInternet)},
		{Name: "p_program_commitment", Value: string(rec.ProgramCommitment)},
		{Name: "p_additional_information", Value: rec.AdditionalInformation},
		{Name: "p_accept_program_emails", Value: rec.AcceptProgramEmails},
		{Name: "p_subscribe_newsletter", Value: rec.SubscribeNewsletter},
	}
}

// ParamMap returns params keyed by name, the shape JSON transports send.
func ParamMap(params []Param) map[string]any {
	m := make(map[string]any, len(params))
	for _, p := range params {
		m[p.Name] = p.Value
	}
	return m
}

// ReplyID is the id in a procedure reply. Backends return it either as a
// JSON number or a string; both decode to the same text.
type ReplyID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ReplyID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ReplyID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ReplyID(n.String())
	return nil
}

// Reply is the structured payload the procedure returns:
//
//	{ "success": true, "id": 42 }
//	{ "success": false, "error": "email already registered" }
type Reply struct {
	Success bool    `json:"success"`
	ID      ReplyID `json:"id,omitempty"`
	Error   string  `json:"error,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Caller is the persistence contract. Any type with this method
// satisfies it.
type Caller interface {
	// CallSubmitRegistration invokes submit_registration once with the
	// given named parameters. A non-nil error means the call itself
	// failed (network, driver, HTTP status); a failure decided by the
	// procedure comes back as Reply{Success: false}.
	CallSubmitRegistration(ctx context.Context, params []Param) (Reply, error)
}

// Failure describes why a submission did not go through.
type Failure struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Result is the normalized outcome of Adapter.Submit: either
//
//	{ "success": true, "id": "42" }
//
// or
//
//	{ "success": false, "error": { "message": "...", "details": ... } }
type Result struct {
	Success bool     `json:"success"`
	ID      string   `json:"id,omitempty"`
	Error   *Failure `json:"error,omitempty"`
}

// Succeeded builds a success Result.
func Succeeded(id string) Result {
	return Result{Success: true, ID: id}
}

// Failed builds a failure Result.
func Failed(message string, details any) Result {
	return Result{Success: false, Error: &Failure{Message: message, Details: details}}
}

// MessageUnavailable is shown to the applicant when the backend could not
// be reached at all. The underlying error goes into Failure.Details.
const MessageUnavailable = "we could not reach the registration service, please try again"

// Adapter is the boundary between the form and the remote backend.
type Adapter struct {
	caller Caller
	log    *slog.Logger
}

// NewAdapter wraps caller. A nil logger falls back to slog.Default().
func NewAdapter(caller Caller, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{caller: caller, log: log}
}

// Submit performs exactly one remote call for rec and always returns a
// Result: transport errors, failure replies and even panics inside the
// caller are converted into a failure Result. Nothing is retried; the
// applicant decides whether to try again.
func (a *Adapter) Submit(ctx context.Context, rec types.RegistrationRecord) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("unexpected error submitting registration",
				slog.String("panic", fmt.Sprint(r)))
			res = Failed("an unexpected error occurred", fmt.Sprint(r))
		}
	}()

	a.log.Debug("submitting registration", slog.String("country", string(rec.Country)))

	reply, err := a.caller.CallSubmitRegistration(ctx, Params(rec))
	if err != nil {
		a.log.Error("registration call failed", slog.String("error", err.Error()))
		return Failed(MessageUnavailable, err.Error())
	}

	if !reply.Success {
		msg := messageOr(reply.Error, messageOr(reply.Message, "registration function failed"))
		a.log.Warn("registration rejected", slog.String("error", msg))
		return Failed(msg, reply)
	}

	a.log.Info("registration stored", slog.String("id", string(reply.ID)))
	return Succeeded(string(reply.ID))
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}

// FormatID renders an auto-increment key the way replies carry it.
func FormatID(id int64) ReplyID {
	return ReplyID(strconv.FormatInt(id, 10))
}
