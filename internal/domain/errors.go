package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// ErrLoginConsumed is returned when a login token has already been
	// exchanged for a credential. The attempt is terminal; the browser
	// must start over.
	ErrLoginConsumed = errors.New("login already consumed")
	// ErrLoginExpired is returned when a login token is unknown or past
	// its deadline. Also terminal.
	ErrLoginExpired = errors.New("login expired")
)
