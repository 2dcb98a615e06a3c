// Package assistant contains the HTTP handler for the program assistant.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/registration-api/internal/chat"
	"github.com/aanand-mishra/registration-api/internal/utils/response"
)

// Replier answers a conversation. chat.Client implements it.
type Replier interface {
	Reply(ctx context.Context, history []chat.Message) (string, error)
}

// Request is the body of POST /api/chat. At most 50 turns are accepted
// and the last one must come from the user.
type Request struct {
	Messages []chat.Message `json:"messages" validate:"required,min=1,max=50,dive"`
}

// Reply is the body of a chat answer. Fallback is true when the
// assistant could not be reached and Reply holds the apology.
type Reply struct {
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback"`
}

var validate = validator.New()

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/chat
//
// Request body (JSON):
//
//	{ "messages": [ { "role": "user", "content": "How long is the program?" } ] }
//
// Success response (200 OK), also when the upstream fails:
//
//	{ "reply": "Four weeks, eight sessions.", "fallback": false }
//
// onFailure, when set, is called for every fallback answer.
// ─────────────────────────────────────────────────────────────────────────────
func New(replier Replier, onFailure func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
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
		if req.Messages[len(req.Messages)-1].Role != chat.RoleUser {
			response.WriteJSON(w, http.StatusBadRequest,
				response.GeneralError(errors.New("the last message must come from the user")))
			return
		}

		slog.Info("chat request", slog.Int("messages", len(req.Messages)))

		answer, err := replier.Reply(r.Context(), req.Messages)
		if err != nil {
			slog.Error("chat request failed", slog.String("error", err.Error()))
			if onFailure != nil {
				onFailure()
			}
			response.WriteJSON(w, http.StatusOK, Reply{Reply: chat.Fallback, Fallback: true})
			return
		}

		response.WriteJSON(w, http.StatusOK, Reply{Reply: answer})
	}
}
