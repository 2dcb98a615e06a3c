// Package form contains the HTTP handlers that drive the registration
// wizard.
//
// Every handler is a factory: it receives the Service once at startup and
// returns the http.HandlerFunc the router calls on every request.
//
//	router.HandleFunc("POST /api/registrations/{id}/next", form.Next(svc))
//
// Successful actions answer with the current form view. Failures use the
// envelopes from internal/utils/response; form validation failures carry
// the per-field messages AND the view.
package form

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/registration-api/internal/deadline"
	"github.com/aanand-mishra/registration-api/internal/registration"
	"github.com/aanand-mishra/registration-api/internal/storage"
	"github.com/aanand-mishra/registration-api/internal/submission"
	"github.com/aanand-mishra/registration-api/internal/types"
	"github.com/aanand-mishra/registration-api/internal/utils/response"
	"github.com/aanand-mishra/registration-api/internal/validation"
)

// Service is the part of registration.Service the handlers use.
type Service interface {
	Start(ctx context.Context, id string) (registration.View, error)
	Get(id string) (registration.View, error)
	Edit(ctx context.Context, id string, field types.Field, value string) (registration.View, error)
	Next(ctx context.Context, id string) (registration.View, error)
	Previous(ctx context.Context, id string) (registration.View, error)
	Review(ctx context.Context, id string) (registration.View, error)
	ReviewAgain(ctx context.Context, id string) (registration.View, error)
	Confirm(ctx context.Context, id string) (registration.View, storage.Result, error)
}

// Gate is the part of deadline.Gate the countdown handler uses.
type Gate interface {
	Deadline() time.Time
	Closed() bool
	Countdown() deadline.Countdown
}

// StartRequest is the optional body of POST /api/registrations.
type StartRequest struct {
	ID string `json:"id" validate:"omitempty,uuid"`
}

// EditRequest is the body of PATCH /api/registrations/{id}/fields.
// Booleans are sent as "true" / "false", dates as "YYYY-MM-DD".
type EditRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value"`
}

// ConfirmResponse is the body of POST /api/registrations/{id}/confirm.
type ConfirmResponse struct {
	Status string            `json:"status"`
	Result storage.Result    `json:"result"`
	Data   registration.View `json:"data"`
}

// DeadlineResponse is the body of GET /api/deadline.
type DeadlineResponse struct {
	Deadline  time.Time          `json:"deadline"`
	Closed    bool               `json:"closed"`
	Countdown deadline.Countdown `json:"countdown"`
}

// CountryOption is one entry of GET /api/countries.
type CountryOption struct {
	Name       types.Country `json:"name"`
	DialPrefix string        `json:"dialPrefix"`
}

// CountriesResponse is the body of GET /api/countries.
type CountriesResponse struct {
	Countries []CountryOption `json:"countries"`
}

var validate = validator.New()

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/registrations
// Starts a fresh application, or resumes one when the client still holds
// its id (page reload, or a return visit after the session expired).
//
// Request body (JSON, optional):
//
//	{ "id": "3b0c6a6e-5d0e-4c1e-9a55-0c6f1b5a9d2f" }
//
// Success: 201 Created for a new application, 200 OK when resumed.
//
// Error responses:
//
//	400 Bad Request: malformed JSON or id is not a UUID
//	403 Forbidden: registration is closed
//
// ─────────────────────────────────────────────────────────────────────────────
func New(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := validate.Struct(req); err != nil {
			validateErrs := err.(validator.ValidationErrors)
			response.WriteJSON(w, http.StatusBadRequest,
				response.ValidationError(validateErrs))
			return
		}

		slog.Info("starting a registration", slog.Bool("resume", req.ID != ""))

		view, err := svc.Start(r.Context(), req.ID)
		if err != nil {
			writeError(w, view, err, http.StatusInternalServerError)
			return
		}

		status := http.StatusOK
		if req.ID == "" {
			status = http.StatusCreated
		}
		response.WriteJSON(w, status, view)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET /api/registrations/{id}
// Returns the current view: phase, visible fields, record, displayed
// errors and confirmation state.
//
// Error responses:
//
//	404 Not Found: unknown or expired session (POST to resume it)
//
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Debug("getting a registration", slog.String("id", id))

		view, err := svc.Get(id)
		if err != nil {
			writeError(w, view, err, http.StatusInternalServerError)
			return
		}
		response.WriteJSON(w, http.StatusOK, view)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// EditField handles PATCH /api/registrations/{id}/fields
// Stores one field value and mirrors the record into the draft store.
//
// Request body (JSON):
//
//	{ "field": "country", "value": "Jordan" }
//
// An edit never ADDS error messages; it can only clear the message of a
// field that now passes.
//
// Error responses:
//
//	400 Bad Request: unknown field or a value that cannot be parsed
//	409 Conflict: the application is being submitted
//
// ─────────────────────────────────────────────────────────────────────────────
func EditField(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		var req EditRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if errors.Is(err, io.EOF) {
			response.WriteJSON(w, http.StatusBadRequest,
				response.GeneralError(errors.New("request body is empty")))
			return
		}
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := validate.Struct(req); err != nil {
			validateErrs := err.(validator.ValidationErrors)
			response.WriteJSON(w, http.StatusBadRequest,
				response.ValidationError(validateErrs))
			return
		}

		slog.Debug("editing a registration",
			slog.String("id", id),
			slog.String("field", req.Field))

		view, err := svc.Edit(r.Context(), id, types.Field(req.Field), req.Value)
		if err != nil {
			// Anything not mapped to a service condition is a bad value.
			writeError(w, view, err, http.StatusBadRequest)
			return
		}
		response.WriteJSON(w, http.StatusOK, view)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Next handles POST /api/registrations/{id}/next
// Validates the current phase and moves forward.
//
// Error responses:
//
//	422 Unprocessable: the phase has failing fields (messages + view)
//
// ─────────────────────────────────────────────────────────────────────────────
func Next(svc Service) http.HandlerFunc {
	return action(svc.Next, "advancing a registration")
}

// Previous handles POST /api/registrations/{id}/previous
func Previous(svc Service) http.HandlerFunc {
	return action(svc.Previous, "going back in a registration")
}

// ─────────────────────────────────────────────────────────────────────────────
// Review handles POST /api/registrations/{id}/review
// The submit button: validates every phase again and, when all pass,
// returns the view with the confirmation summary.
//
// Error responses:
//
//	409 Conflict: not on the last phase, or a submission is running
//	422 Unprocessable: some field anywhere in the form fails
//
// ─────────────────────────────────────────────────────────────────────────────
func Review(svc Service) http.HandlerFunc {
	return action(svc.Review, "reviewing a registration")
}

// ReviewAgain handles POST /api/registrations/{id}/review-again
func ReviewAgain(svc Service) http.HandlerFunc {
	return action(svc.ReviewAgain, "returning to the form")
}

// ─────────────────────────────────────────────────────────────────────────────
// Confirm handles POST /api/registrations/{id}/confirm
// Sends the reviewed application to persistence.
//
// Success response (201 Created):
//
//	{ "status": "ok", "result": { "success": true, "id": "42" }, "data": {...} }
//
// Error responses:
//
//	409 Conflict: nothing reviewed, or a submission is already running
//	502 Bad Gateway: the backend refused or failed; "result.error" holds
//	the message and the summary stays up for a retry
//
// ─────────────────────────────────────────────────────────────────────────────
func Confirm(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("confirming a registration", slog.String("id", id))

		view, res, err := svc.Confirm(r.Context(), id)
		if err != nil {
			writeError(w, view, err, http.StatusInternalServerError)
			return
		}

		if !res.Success {
			slog.Error("registration submission failed",
				slog.String("id", id),
				slog.String("error", res.Error.Message))
			response.WriteJSON(w, http.StatusBadGateway,
				ConfirmResponse{Status: response.StatusError, Result: res, Data: view})
			return
		}

		slog.Info("registration confirmed",
			slog.String("id", id),
			slog.String("registration_id", res.ID))
		response.WriteJSON(w, http.StatusCreated,
			ConfirmResponse{Status: response.StatusOK, Result: res, Data: view})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Deadline handles GET /api/deadline
//
//	{ "deadline": "2025-10-05T23:59:59+02:00", "closed": false,
//	  "countdown": { "days": 3, "hours": 4, "minutes": 5, "seconds": 6 } }
//
// ─────────────────────────────────────────────────────────────────────────────
func Deadline(gate Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.WriteJSON(w, http.StatusOK, DeadlineResponse{
			Deadline:  gate.Deadline(),
			Closed:    gate.Closed(),
			Countdown: gate.Countdown(),
		})
	}
}

// action wraps a session operation that takes no body.
func action(op func(context.Context, string) (registration.View, error), msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Debug(msg, slog.String("id", id))

		view, err := op(r.Context(), id)
		if err != nil {
			writeError(w, view, err, http.StatusInternalServerError)
			return
		}
		response.WriteJSON(w, http.StatusOK, view)
	}
}

// writeError maps service errors to HTTP statuses. fallback is used for
// errors the service does not name.
func writeError(w http.ResponseWriter, view registration.View, err error, fallback int) {
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for f, msg := range fieldErrs {
			fields[string(f)] = msg
		}
		response.WriteJSON(w, http.StatusUnprocessableEntity,
			response.FieldErrors(fields, view))
		return
	}

	var unknown *types.UnknownFieldError
	status := fallback
	switch {
	case errors.Is(err, registration.ErrClosed):
		status = http.StatusForbidden
	case errors.Is(err, registration.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, registration.ErrInvalidID), errors.As(err, &unknown):
		status = http.StatusBadRequest
	case errors.Is(err, registration.ErrNotOnLastPhase),
		errors.Is(err, submission.ErrInFlight),
		errors.Is(err, submission.ErrNotAwaiting):
		status = http.StatusConflict
	}

	if status >= http.StatusInternalServerError {
		slog.Error("registration request failed", slog.String("error", err.Error()))
	}
	response.WriteJSON(w, status, response.GeneralError(err))
}

// Countries handles GET /api/countries: the options of the country
// select, each with the prefix the phone field is anchored to.
func Countries() http.HandlerFunc {
	countries := types.Countries()
	opts := make([]CountryOption, 0, len(countries))
	for _, c := range countries {
		prefix, _ := c.DialPrefix()
		opts = append(opts, CountryOption{Name: c, DialPrefix: prefix})
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.WriteJSON(w, http.StatusOK, CountriesResponse{Countries: opts})
	}
}
