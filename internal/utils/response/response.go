// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Every endpoint of the registration API answers with JSON. Success bodies
// vary (a form view, a countdown, a chat answer); error bodies always use
// one of the two envelopes below so clients can handle them generically.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ─────────────────────────────────────────────────────────────────────────────
// Response is the standard envelope returned for error cases:
//
//	{ "status": "error", "error": "registration is closed" }
//
// ─────────────────────────────────────────────────────────────────────────────
type Response struct {
	Status string `json:"status"` // "ok" or "error"
	Error  string `json:"error"`  // human-readable error detail
}

// FieldErrorsResponse is returned when the form itself does not pass
// validation. Fields maps each failing field to the message shown next
// to it; Data carries the current form view so the client can re-render
// without a second request.
//
//	{
//	  "status": "error",
//	  "error":  "2 fields need attention",
//	  "fields": { "email": "Please enter a valid email address", ... },
//	  "data":   { ...view... }
//	}
type FieldErrorsResponse struct {
	Status string            `json:"status"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
	Data   any               `json:"data,omitempty"`
}

// Status string constants.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ─────────────────────────────────────────────────────────────────────────────
// WriteJSON writes data as JSON with the given HTTP status code.
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
// Once WriteHeader is called (or the first Write), headers are locked.
// ─────────────────────────────────────────────────────────────────────────────
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GeneralError wraps any Go error into the standard Response shape.
func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ValidationError turns go-playground/validator failures on a request
// body into a single readable message, e.g.
//
//	{ "status": "error", "error": "field Field is required, field Role is invalid" }
//
// ─────────────────────────────────────────────────────────────────────────────
func ValidationError(errs validator.ValidationErrors) Response {
	var errMessages []string

	for _, e := range errs {
		switch e.ActualTag() {
		case "required":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s is required", e.Field()))
		case "uuid", "uuid4":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s must be a UUID", e.Field()))
		case "oneof":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s must be one of [%s]", e.Field(), e.Param()))
		default:
			errMessages = append(errMessages,
				fmt.Sprintf("field %s is invalid", e.Field()))
		}
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(errMessages, ", "),
	}
}

// FieldErrors builds the envelope for form validation failures. fields
// is keyed by form field name.
func FieldErrors(fields map[string]string, data any) FieldErrorsResponse {
	msg := "1 field needs attention"
	if len(fields) != 1 {
		msg = fmt.Sprintf("%d fields need attention", len(fields))
	}
	return FieldErrorsResponse{
		Status: StatusError,
		Error:  msg,
		Fields: fields,
		Data:   data,
	}
}
