package domain

import "time"

// Login states. A row moves created->consumed exactly once, or
// created->expired. Expiry is always re-checked on read, so a row that
// still says "created" past its deadline is treated as expired.
const (
	LoginStateCreated  = "created"
	LoginStateConsumed = "consumed"
	LoginStateExpired  = "expired"
)

// PendingLogin is one browser-initiated login attempt, keyed by its
// single-use correlation token. The token is the only thing the browser,
// the bot conversation and the backend share.
type PendingLogin struct {
	Token      string    `json:"token" dynamodbav:"token"`
	State      string    `json:"state" dynamodbav:"state"`
	ExpiresAt  int64     `json:"expires_at" dynamodbav:"expires_at"`
	TelegramID string    `json:"telegram_id,omitempty" dynamodbav:"telegram_id"`
	Name       string    `json:"name,omitempty" dynamodbav:"name"`
	Phone      string    `json:"phone,omitempty" dynamodbav:"phone"`
	Username   string    `json:"username,omitempty" dynamodbav:"username"`
	Photo      string    `json:"photo,omitempty" dynamodbav:"photo"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt  time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Expired reports whether the login deadline has passed at time now.
func (l *PendingLogin) Expired(now time.Time) bool {
	return now.Unix() > l.ExpiresAt
}

// IdentityAttributes is the identity payload asserted by Telegram for one
// person. It is opaque to the handshake beyond being the input to user
// resolution; only its provenance is checked (HMAC + freshness).
type IdentityAttributes struct {
	TelegramID string `json:"telegram_id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone"`
	Username   string `json:"username"`
	Photo      string `json:"photo"`
}

// CompleteLoginRequest is the completion call payload. AuthDate and Hash
// carry the provider signature over the identity fields.
type CompleteLoginRequest struct {
	Token      string `json:"token" validate:"required"`
	TelegramID string `json:"telegram_id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone"`
	Username   string `json:"username"`
	Photo      string `json:"photo"`
	AuthDate   int64  `json:"auth_date" validate:"required"`
	Hash       string `json:"hash" validate:"required"`
}

// Push result statuses.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// LoginResult is the payload delivered over the push channel once a
// handshake reaches a terminal state. Exactly one is sent per token.
type LoginResult struct {
	Status     string `json:"status"`
	Credential string `json:"credential,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Attributes extracts the identity payload from the request.
func (r *CompleteLoginRequest) Attributes() IdentityAttributes {
	return IdentityAttributes{
		TelegramID: r.TelegramID,
		Name:       r.Name,
		Phone:      r.Phone,
		Username:   r.Username,
		Photo:      r.Photo,
	}
}
