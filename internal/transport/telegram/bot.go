package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram-login/internal/domain"
	tg "github.com/go-telegram-login/internal/infrastructure/telegram"
)

const (
	pollTimeout   = 50 // seconds the getUpdates call is held server-side
	pollBackoff   = 3 * time.Second
	contactButton = "Share Contact"

	replyWelcome       = "Welcome! Please initiate login from the website to use this bot."
	replyAskContact    = "Please share your contact information to continue:"
	replyNoSession     = "Please initiate login from the website first."
	replyUseButton     = "Please share your contact information using the button below."
	replySuccess       = "Authentication successful! You can now close this chat and return to the website."
	replyLinkExpired   = "Your login link is invalid or has expired. Please start again from the website."
	replyGenericError  = "An error occurred during authentication. Please try again."
	replyNotAuthorized = "Authentication was rejected. Please try again from the website."
)

// API is the Telegram Bot API surface the collector needs.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]tg.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendContactRequest(ctx context.Context, chatID int64, text, buttonLabel string) error
	ProfilePhotoURL(ctx context.Context, userID int64) (string, error)
}

// Completer is the handshake surface the collector reports into.
type Completer interface {
	CompleteSession(ctx context.Context, req domain.CompleteLoginRequest) (string, error)
}

// Signer produces the provenance hash over identity fields so the
// completion call passes the trust boundary.
type Signer interface {
	Sign(fields map[string]string) string
}

// Bot runs the provider-facing conversational flow: it maps each human to
// the correlation token they carried in via /start, collects their contact
// share and reports the assembled identity attributes to the handshake.
type Bot struct {
	api       API
	handshake Completer
	signer    Signer

	mu     sync.Mutex
	tokens map[int64]string // telegram user id -> pending correlation token
}

func NewBot(api API, hs Completer, signer Signer) *Bot {
	return &Bot{
		api:       api,
		handshake: hs,
		signer:    signer,
		tokens:    make(map[int64]string),
	}
}

// Run long-polls for updates until the context is cancelled. Each update is
// handled on its own goroutine; all shared state is behind the token map's
// mutex.
func (b *Bot) Run(ctx context.Context) {
	slog.Info("telegram bot started")
	var offset int64
	for {
		updates, err := b.api.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("telegram bot stopped")
				return
			}
			slog.Warn("getUpdates failed", "err", err)
			select {
			case <-time.After(pollBackoff):
			case <-ctx.Done():
				slog.Info("telegram bot stopped")
				return
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			go b.HandleUpdate(ctx, u)
		}
	}
}

// HandleUpdate dispatches one update. Exported so tests and webhook-style
// deployments can feed updates directly.
func (b *Bot) HandleUpdate(ctx context.Context, u tg.Update) {
	msg := u.Message
	if msg == nil || msg.From == nil {
		return
	}
	switch {
	case strings.HasPrefix(msg.Text, "/start"):
		b.handleStart(ctx, msg)
	case msg.Contact != nil:
		b.handleContact(ctx, msg)
	default:
		b.handleOther(ctx, msg)
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tg.Message) {
	parts := strings.Fields(msg.Text)
	if len(parts) < 2 {
		b.reply(ctx, msg.Chat.ID, replyWelcome)
		return
	}
	tok := parts[1]

	b.mu.Lock()
	b.tokens[msg.From.ID] = tok
	b.mu.Unlock()

	if err := b.api.SendContactRequest(ctx, msg.Chat.ID, replyAskContact, contactButton); err != nil {
		slog.Warn("failed to send contact request", "chat_id", msg.Chat.ID, "err", err)
	}
}

func (b *Bot) handleContact(ctx context.Context, msg *tg.Message) {
	tok, ok := b.takeToken(msg.From.ID)
	if !ok {
		b.reply(ctx, msg.Chat.ID, replyNoSession)
		return
	}

	contact := msg.Contact
	name := contact.FirstName
	if contact.LastName != "" {
		name += " " + contact.LastName
	}
	// The contact's own id is authoritative; fall back to the sender.
	telegramID := msg.From.ID
	if contact.UserID != 0 {
		telegramID = contact.UserID
	}

	// Best-effort avatar: a failed media fetch never fails the handshake.
	photo, err := b.api.ProfilePhotoURL(ctx, msg.From.ID)
	if err != nil {
		slog.Warn("could not fetch profile photo", "telegram_id", msg.From.ID, "err", err)
		photo = ""
	}

	attrs := domain.IdentityAttributes{
		TelegramID: strconv.FormatInt(telegramID, 10),
		Name:       name,
		Phone:      contact.PhoneNumber,
		Username:   msg.From.Username,
		Photo:      photo,
	}
	authDate := time.Now().Unix()
	req := domain.CompleteLoginRequest{
		Token:      tok,
		TelegramID: attrs.TelegramID,
		Name:       attrs.Name,
		Phone:      attrs.Phone,
		Username:   attrs.Username,
		Photo:      attrs.Photo,
		AuthDate:   authDate,
		Hash:       b.signer.Sign(tg.AttributeFields(attrs, authDate)),
	}

	_, err = b.handshake.CompleteSession(ctx, req)
	switch {
	case err == nil:
		b.reply(ctx, msg.Chat.ID, replySuccess)
	case errors.Is(err, domain.ErrLoginExpired), errors.Is(err, domain.ErrLoginConsumed):
		b.reply(ctx, msg.Chat.ID, replyLinkExpired)
	case errors.Is(err, domain.ErrUnauthorized):
		b.reply(ctx, msg.Chat.ID, replyNotAuthorized)
	default:
		slog.Error("completion call failed", "token", tok, "err", err)
		b.reply(ctx, msg.Chat.ID, replyGenericError)
	}
}

func (b *Bot) handleOther(ctx context.Context, msg *tg.Message) {
	b.mu.Lock()
	_, pending := b.tokens[msg.From.ID]
	b.mu.Unlock()
	if !pending {
		b.reply(ctx, msg.Chat.ID, replyNoSession)
		return
	}
	b.reply(ctx, msg.Chat.ID, replyUseButton)
}

// takeToken removes and returns the pending token for a human. Removal
// happens before the completion call resolves, so a stale token can never
// be replayed by a later contact share.
func (b *Bot) takeToken(userID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tok, ok := b.tokens[userID]
	if ok {
		delete(b.tokens, userID)
	}
	return tok, ok
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.api.SendMessage(ctx, chatID, text); err != nil {
		slog.Warn("failed to send reply", "chat_id", chatID, "err", err)
	}
}
