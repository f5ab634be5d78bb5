package handshake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram-login/internal/domain"
	"github.com/go-telegram-login/internal/infrastructure/sns"
	"github.com/go-telegram-login/internal/infrastructure/telegram"
	"github.com/go-telegram-login/internal/pkg/token"
)

// LoginStore is the correlation-store surface the handshake needs.
type LoginStore interface {
	Put(ctx context.Context, l *domain.PendingLogin) error
	Get(ctx context.Context, token string) (*domain.PendingLogin, error)
	// MarkConsumed must be atomic: under concurrent calls for one token,
	// exactly one succeeds and the rest fail with ErrLoginConsumed.
	MarkConsumed(ctx context.Context, token string, attrs domain.IdentityAttributes) error
	MarkExpired(ctx context.Context, token string) error
}

// IdentityResolver maps asserted attributes to a local user account.
type IdentityResolver interface {
	ResolveOrCreate(ctx context.Context, attrs domain.IdentityAttributes) (*domain.User, error)
}

// CredentialSigner mints the signed credential returned to the browser.
type CredentialSigner interface {
	Sign(userID, role string) (string, error)
}

// SignatureVerifier checks provenance of provider-asserted identity fields.
type SignatureVerifier interface {
	VerifyFresh(fields map[string]string, hash string, maxAge time.Duration) bool
}

// ResultPusher delivers the terminal result to the browser's push channel.
// A push with no registered channel is a no-op.
type ResultPusher interface {
	SendResult(token string, res domain.LoginResult)
}

// WidgetResult is the outcome of the browser-redirect login variant.
type WidgetResult struct {
	Credential string
	User       *domain.User
}

type Service interface {
	// CreateSession issues a fresh correlation token with a short deadline.
	CreateSession(ctx context.Context) (string, error)
	// CompleteSession runs the terminal transition for one token: verify
	// provenance, resolve the user, consume the token, mint the credential
	// and push it. The credential is also returned synchronously so the
	// actor making the call is answered even if it missed the push.
	CompleteSession(ctx context.Context, req domain.CompleteLoginRequest) (string, error)
	// WidgetLogin authenticates Telegram Login Widget query parameters.
	WidgetLogin(ctx context.Context, fields map[string]string) (*WidgetResult, error)
}

// Deps wires the service's collaborators. Events may be nil.
type Deps struct {
	Logins   LoginStore
	Identity IdentityResolver
	Signer   CredentialSigner
	Verifier SignatureVerifier
	Pusher   ResultPusher
	Events   sns.EventPublisher

	TokenTTL   time.Duration
	MaxAuthAge time.Duration
}

type service struct {
	logins     LoginStore
	identity   IdentityResolver
	signer     CredentialSigner
	verifier   SignatureVerifier
	pusher     ResultPusher
	events     sns.EventPublisher
	tokenTTL   time.Duration
	maxAuthAge time.Duration
}

func NewService(deps Deps) Service {
	return &service{
		logins:     deps.Logins,
		identity:   deps.Identity,
		signer:     deps.Signer,
		verifier:   deps.Verifier,
		pusher:     deps.Pusher,
		events:     deps.Events,
		tokenTTL:   deps.TokenTTL,
		maxAuthAge: deps.MaxAuthAge,
	}
}

func (s *service) CreateSession(ctx context.Context) (string, error) {
	tok, err := token.NewLoginToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	l := &domain.PendingLogin{
		Token:     tok,
		State:     domain.LoginStateCreated,
		ExpiresAt: now.Add(s.tokenTTL).Unix(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.logins.Put(ctx, l); err != nil {
		return "", fmt.Errorf("store pending login: %w", err)
	}
	slog.Info("created login session", "token", tok)
	return tok, nil
}

func (s *service) CompleteSession(ctx context.Context, req domain.CompleteLoginRequest) (string, error) {
	attrs := req.Attributes()

	fields := telegram.AttributeFields(attrs, req.AuthDate)
	if !s.verifier.VerifyFresh(fields, req.Hash, s.maxAuthAge) {
		s.fail(ctx, req.Token, attrs.TelegramID, "identity assertion rejected")
		return "", fmt.Errorf("invalid identity signature: %w", domain.ErrUnauthorized)
	}

	l, err := s.logins.Get(ctx, req.Token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.fail(ctx, req.Token, attrs.TelegramID, "invalid or expired login token")
			return "", fmt.Errorf("unknown login token: %w", domain.ErrLoginExpired)
		}
		return "", err
	}
	switch {
	case l.State == domain.LoginStateConsumed:
		s.fail(ctx, req.Token, attrs.TelegramID, "invalid or expired login token")
		return "", domain.ErrLoginConsumed
	case l.State != domain.LoginStateCreated || l.Expired(time.Now().UTC()):
		if l.State == domain.LoginStateCreated {
			if err := s.logins.MarkExpired(ctx, req.Token); err != nil {
				slog.Warn("failed to expire lapsed login", "token", req.Token, "err", err)
			}
		}
		s.fail(ctx, req.Token, attrs.TelegramID, "invalid or expired login token")
		return "", domain.ErrLoginExpired
	}

	u, err := s.identity.ResolveOrCreate(ctx, attrs)
	if err != nil {
		// A structurally valid completion call never leaves the row in
		// the created state, even when resolution fails.
		if cerr := s.logins.MarkConsumed(ctx, req.Token, attrs); cerr != nil {
			slog.Warn("failed to consume login after resolution failure", "token", req.Token, "err", cerr)
		}
		slog.Error("identity resolution failed", "token", req.Token, "telegram_id", attrs.TelegramID, "err", err)
		s.fail(ctx, req.Token, attrs.TelegramID, "authentication failed")
		return "", fmt.Errorf("resolve user: %w", err)
	}

	// The conditional write is the idempotency guard: a concurrent call
	// that lost the race fails here, never re-mints a credential.
	if err := s.logins.MarkConsumed(ctx, req.Token, attrs); err != nil {
		s.fail(ctx, req.Token, attrs.TelegramID, "invalid or expired login token")
		return "", err
	}

	credential, err := s.signer.Sign(u.UserID, u.Role)
	if err != nil {
		slog.Error("failed to mint credential", "token", req.Token, "user_id", u.UserID, "err", err)
		s.fail(ctx, req.Token, attrs.TelegramID, "authentication failed")
		return "", fmt.Errorf("sign credential: %w", err)
	}

	s.pusher.SendResult(req.Token, domain.LoginResult{
		Status:     domain.ResultSuccess,
		Credential: credential,
	})
	s.publish(ctx, sns.LoginEvent{
		Type:       "login_completed",
		Token:      req.Token,
		UserID:     u.UserID,
		TelegramID: u.TelegramID,
		At:         time.Now().UTC(),
	})
	slog.Info("completed login session", "token", req.Token, "user_id", u.UserID)
	return credential, nil
}

func (s *service) WidgetLogin(ctx context.Context, fields map[string]string) (*WidgetResult, error) {
	hash := fields["hash"]
	if !s.verifier.VerifyFresh(fields, hash, s.maxAuthAge) {
		return nil, fmt.Errorf("invalid telegram login data: %w", domain.ErrUnauthorized)
	}

	name := fields["first_name"]
	if last := fields["last_name"]; last != "" {
		name = strings.TrimSpace(name + " " + last)
	}
	attrs := domain.IdentityAttributes{
		TelegramID: fields["id"],
		Name:       name,
		Username:   fields["username"],
		Photo:      fields["photo_url"],
	}
	if attrs.TelegramID == "" {
		return nil, fmt.Errorf("missing telegram id: %w", domain.ErrBadRequest)
	}

	u, err := s.identity.ResolveOrCreate(ctx, attrs)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	credential, err := s.signer.Sign(u.UserID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("sign credential: %w", err)
	}
	return &WidgetResult{Credential: credential, User: u}, nil
}

// fail pushes a terminal error result and emits the failure event. Both are
// best-effort deliveries scoped to one token.
func (s *service) fail(ctx context.Context, tok, telegramID, msg string) {
	s.pusher.SendResult(tok, domain.LoginResult{Status: domain.ResultError, Message: msg})
	s.publish(ctx, sns.LoginEvent{
		Type:       "login_failed",
		Token:      tok,
		TelegramID: telegramID,
		Reason:     msg,
		At:         time.Now().UTC(),
	})
}

func (s *service) publish(ctx context.Context, evt sns.LoginEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishLoginEvent(ctx, evt); err != nil {
		slog.Warn("failed to publish login event", "type", evt.Type, "token", evt.Token, "err", err)
	}
}

// DeepLink builds the t.me start link that carries the correlation token
// into the bot conversation.
func DeepLink(botUsername, tok string) string {
	return "https://t.me/" + botUsername + "?start=" + tok
}
