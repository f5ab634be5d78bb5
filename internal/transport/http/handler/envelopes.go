package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-telegram-login/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TokenEnvelope wraps session-create responses. DeepLink carries the token
// straight into the bot conversation.
type TokenEnvelope struct {
	Token    string `json:"token"`
	DeepLink string `json:"deep_link,omitempty"`
}

// CompleteEnvelope wraps session-complete responses.
type CompleteEnvelope struct {
	Status     string `json:"status"`
	Credential string `json:"credential,omitempty"`
	Error      string `json:"error,omitempty"`
}

// WidgetEnvelope wraps widget-login responses.
type WidgetEnvelope struct {
	Success     bool         `json:"success"`
	AccessToken string       `json:"access_token,omitempty"`
	User        *domain.User `json:"user,omitempty"`
	Error       string       `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
