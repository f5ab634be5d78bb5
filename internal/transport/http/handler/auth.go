package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-telegram-login/internal/application/handshake"
	"github.com/go-telegram-login/internal/domain"
	"github.com/go-telegram-login/internal/transport/http/middleware"
)

// UserStore is the minimal user lookup surface the profile endpoint needs.
type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// AuthHandler handles the Telegram Login Widget redirect variant and the
// profile endpoint consumed with the minted credential.
type AuthHandler struct {
	svc              handshake.Service
	users            UserStore
	frontendLoginURL string
}

func NewAuthHandler(svc handshake.Service, users UserStore, frontendLoginURL string) *AuthHandler {
	return &AuthHandler{svc: svc, users: users, frontendLoginURL: frontendLoginURL}
}

// WidgetRedirect verifies widget query parameters, logs the user in and
// redirects back to the frontend with the credential.
func (h *AuthHandler) WidgetRedirect(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.WidgetLogin(r.Context(), queryFields(r))
	if err != nil {
		writeError(w, widgetStatus(err), "invalid telegram login data")
		return
	}
	redirect := h.frontendLoginURL + "?token=" + url.QueryEscape(result.Credential)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// WidgetLogin is the JSON variant of the widget flow.
func (h *AuthHandler) WidgetLogin(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.WidgetLogin(r.Context(), queryFields(r))
	if err != nil {
		writeJSON(w, widgetStatus(err), WidgetEnvelope{Success: false, Error: "invalid telegram login data"})
		return
	}
	writeJSON(w, http.StatusOK, WidgetEnvelope{
		Success:     true,
		AccessToken: result.Credential,
		User:        result.User,
	})
}

// Profile returns the account behind the presented credential.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.users.Get(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func widgetStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// queryFields flattens the query string into the field map covered by the
// widget signature. Telegram sends each field at most once.
func queryFields(r *http.Request) map[string]string {
	fields := make(map[string]string)
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	return fields
}
