package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram-login/internal/domain"
	"github.com/go-telegram-login/internal/pkg/id"
)

// UserStore is the user persistence surface identity resolution needs.
type UserStore interface {
	GetByTelegramID(ctx context.Context, telegramID string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// Service resolves asserted identity attributes to a local user account.
type Service interface {
	// ResolveOrCreate finds the user by Telegram id, creating one on first
	// login. Mutable display fields (name, username, photo) are refreshed
	// from the fresh assertion; the Telegram id and account provenance are
	// never overwritten.
	ResolveOrCreate(ctx context.Context, attrs domain.IdentityAttributes) (*domain.User, error)
}

type service struct {
	userRepo UserStore
}

func NewService(userRepo UserStore) Service {
	return &service{userRepo: userRepo}
}

func (s *service) ResolveOrCreate(ctx context.Context, attrs domain.IdentityAttributes) (*domain.User, error) {
	u, err := s.userRepo.GetByTelegramID(ctx, attrs.TelegramID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("lookup user by telegram id: %w", err)
		}
		return s.create(ctx, attrs)
	}

	if !u.Enable {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
	}

	updates := map[string]interface{}{}
	if attrs.Name != "" && attrs.Name != u.Name {
		updates["name"] = attrs.Name
	}
	if attrs.Username != "" && attrs.Username != u.TelegramUsername {
		updates["telegram_username"] = attrs.Username
	}
	if attrs.Photo != "" && attrs.Photo != u.Photo {
		updates["photo"] = attrs.Photo
	}
	if len(updates) > 0 {
		if err := s.userRepo.Update(ctx, u.UserID, updates); err != nil {
			return nil, fmt.Errorf("refresh user profile: %w", err)
		}
		if v, ok := updates["name"].(string); ok {
			u.Name = v
		}
		if v, ok := updates["telegram_username"].(string); ok {
			u.TelegramUsername = v
		}
		if v, ok := updates["photo"].(string); ok {
			u.Photo = v
		}
	}
	return u, nil
}

func (s *service) create(ctx context.Context, attrs domain.IdentityAttributes) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		UserID:           id.New(),
		Name:             attrs.Name,
		Phone:            attrs.Phone,
		TelegramID:       attrs.TelegramID,
		TelegramUsername: attrs.Username,
		Photo:            attrs.Photo,
		Role:             domain.RoleUser,
		AuthProvider:     domain.AuthProviderTelegram,
		Enable:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.userRepo.Put(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.Info("created user from telegram identity", "user_id", u.UserID, "telegram_id", u.TelegramID)
	return u, nil
}
