package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram-login/internal/domain"
)

// Verifier checks that identity fields asserted on behalf of Telegram truly
// originated from the provider. Telegram signs login payloads with
// HMAC-SHA256 over a canonical data-check string, keyed by the SHA256 of the
// bot token. This is the only cryptographic trust boundary in the handshake.
type Verifier struct {
	secret []byte
}

func NewVerifier(botToken string) *Verifier {
	secret := sha256.Sum256([]byte(botToken))
	return &Verifier{secret: secret[:]}
}

// Verify recomputes the signature over all fields except "hash" and compares
// it constant-time against the received one. False means Unauthorized, never
// "retry".
func (v *Verifier) Verify(fields map[string]string, receivedHash string) bool {
	if receivedHash == "" {
		return false
	}
	computed := v.Sign(fields)
	return hmac.Equal([]byte(computed), []byte(receivedHash))
}

// VerifyFresh additionally rejects assertions whose auth_date is absent or
// older than maxAge. Guards against replay of captured login payloads.
func (v *Verifier) VerifyFresh(fields map[string]string, receivedHash string, maxAge time.Duration) bool {
	if !v.Verify(fields, receivedHash) {
		return false
	}
	raw, ok := fields["auth_date"]
	if !ok {
		return false
	}
	authDate, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	return time.Since(time.Unix(authDate, 0)) <= maxAge
}

// Sign computes the hex HMAC over the canonical data-check string: all keys
// except "hash" sorted lexicographically, "key=value" pairs joined by newline.
func (v *Verifier) Sign(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}
	checkString := strings.Join(pairs, "\n")

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(checkString))
	return hex.EncodeToString(mac.Sum(nil))
}

// AttributeFields flattens an identity payload into the field map covered by
// the completion-call signature. The bot signs exactly these fields; the HTTP
// boundary verifies them before any state change.
func AttributeFields(attrs domain.IdentityAttributes, authDate int64) map[string]string {
	return map[string]string{
		"telegram_id": attrs.TelegramID,
		"name":        attrs.Name,
		"phone":       attrs.Phone,
		"username":    attrs.Username,
		"photo":       attrs.Photo,
		"auth_date":   strconv.FormatInt(authDate, 10),
	}
}
