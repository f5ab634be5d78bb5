package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewLoginToken generates a cryptographically random 64-character hex
// correlation token. It is the sole routing key shared by the browser,
// the bot conversation and the backend for one login attempt.
func NewLoginToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate login token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
