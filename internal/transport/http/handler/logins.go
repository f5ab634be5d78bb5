package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-telegram-login/internal/application/handshake"
	"github.com/go-telegram-login/internal/domain"
	"github.com/go-telegram-login/internal/pkg/validate"
)

// LoginHandler exposes the bot-mediated login handshake over HTTP.
type LoginHandler struct {
	svc         handshake.Service
	botUsername string
}

func NewLoginHandler(svc handshake.Service, botUsername string) *LoginHandler {
	return &LoginHandler{svc: svc, botUsername: botUsername}
}

// CreateSession issues a fresh correlation token. No auth required: the
// caller is by definition not authenticated yet.
func (h *LoginHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	tok, err := h.svc.CreateSession(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	env := TokenEnvelope{Token: tok}
	if h.botUsername != "" {
		env.DeepLink = handshake.DeepLink(h.botUsername, tok)
	}
	writeJSON(w, http.StatusOK, env)
}

// Complete runs the terminal transition for a token. The payload must carry
// a valid provider signature; anything less is rejected before any state
// change.
func (h *LoginHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req domain.CompleteLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	credential, err := h.svc.CompleteSession(r.Context(), req)
	if err != nil {
		status, msg := completionStatus(err)
		writeJSON(w, status, CompleteEnvelope{Status: domain.ResultError, Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, CompleteEnvelope{Status: domain.ResultSuccess, Credential: credential})
}

func completionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrLoginExpired), errors.Is(err, domain.ErrLoginConsumed):
		return http.StatusGone, "invalid or expired login token"
	default:
		return http.StatusInternalServerError, "authentication failed"
	}
}
