package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-telegram-login/internal/application/handshake"
	"github.com/go-telegram-login/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func widgetQuery() string {
	return "/v1/auth/telegram?id=42&first_name=Ana&username=ana&auth_date=1700000000&hash=aabbcc"
}

func TestWidgetLogin_ReturnsTokenAndUser(t *testing.T) {
	svc := &mockHandshake{}
	svc.On("WidgetLogin", mock.Anything, map[string]string{
		"id":         "42",
		"first_name": "Ana",
		"username":   "ana",
		"auth_date":  "1700000000",
		"hash":       "aabbcc",
	}).Return(&handshake.WidgetResult{
		Credential: "bearer",
		User:       &domain.User{UserID: "user-1", Name: "Ana"},
	}, nil)

	rec := httptest.NewRecorder()
	NewAuthHandler(svc, &mockUserStore{}, "https://app.example.com/login").
		WidgetLogin(rec, httptest.NewRequest("POST", widgetQuery(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var env WidgetEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "bearer", env.AccessToken)
	require.NotNil(t, env.User)
	assert.Equal(t, "user-1", env.User.UserID)
}

func TestWidgetLogin_BadSignature(t *testing.T) {
	svc := &mockHandshake{}
	svc.On("WidgetLogin", mock.Anything, mock.Anything).Return(nil, domain.ErrUnauthorized)

	rec := httptest.NewRecorder()
	NewAuthHandler(svc, &mockUserStore{}, "https://app.example.com/login").
		WidgetLogin(rec, httptest.NewRequest("POST", widgetQuery(), nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var env WidgetEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
}

func TestWidgetRedirect_RedirectsWithCredential(t *testing.T) {
	svc := &mockHandshake{}
	svc.On("WidgetLogin", mock.Anything, mock.Anything).Return(&handshake.WidgetResult{
		Credential: "bearer",
		User:       &domain.User{UserID: "user-1"},
	}, nil)

	rec := httptest.NewRecorder()
	NewAuthHandler(svc, &mockUserStore{}, "https://app.example.com/login").
		WidgetRedirect(rec, httptest.NewRequest("GET", widgetQuery(), nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.example.com/login?token=bearer", rec.Header().Get("Location"))
}

func TestWidgetRedirect_BadSignature(t *testing.T) {
	svc := &mockHandshake{}
	svc.On("WidgetLogin", mock.Anything, mock.Anything).Return(nil, domain.ErrUnauthorized)

	rec := httptest.NewRecorder()
	NewAuthHandler(svc, &mockUserStore{}, "https://app.example.com/login").
		WidgetRedirect(rec, httptest.NewRequest("GET", widgetQuery(), nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfile_NoClaims(t *testing.T) {
	rec := httptest.NewRecorder()
	NewAuthHandler(&mockHandshake{}, &mockUserStore{}, "").
		Profile(rec, httptest.NewRequest("GET", "/v1/auth/profile", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
