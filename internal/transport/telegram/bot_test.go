package telegram

import (
	"context"
	"sync"
	"testing"

	"github.com/go-telegram-login/internal/domain"
	tg "github.com/go-telegram-login/internal/infrastructure/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeAPI records outbound Bot API calls; updates are fed directly through
// HandleUpdate so GetUpdates is never exercised here.
type fakeAPI struct {
	mu              sync.Mutex
	messages        []string
	contactRequests int
	photoURL        string
	photoErr        error
}

func (f *fakeAPI) GetUpdates(ctx context.Context, offset int64, timeout int) ([]tg.Update, error) {
	return nil, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeAPI) SendContactRequest(ctx context.Context, chatID int64, text, buttonLabel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contactRequests++
	return nil
}

func (f *fakeAPI) ProfilePhotoURL(ctx context.Context, userID int64) (string, error) {
	return f.photoURL, f.photoErr
}

func (f *fakeAPI) lastMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

type mockCompleter struct{ mock.Mock }

func (m *mockCompleter) CompleteSession(ctx context.Context, req domain.CompleteLoginRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type stubSigner struct{}

func (stubSigner) Sign(fields map[string]string) string { return "signed-hash" }

func startUpdate(userID int64, text string) tg.Update {
	return tg.Update{
		UpdateID: 1,
		Message: &tg.Message{
			From: &tg.Account{ID: userID, FirstName: "Ana", Username: "ana"},
			Chat: tg.Chat{ID: userID},
			Text: text,
		},
	}
}

func contactUpdate(userID int64, contact *tg.Contact) tg.Update {
	return tg.Update{
		UpdateID: 2,
		Message: &tg.Message{
			From:    &tg.Account{ID: userID, FirstName: "Ana", Username: "ana"},
			Chat:    tg.Chat{ID: userID},
			Contact: contact,
		},
	}
}

func TestHandleUpdate_StartWithoutToken_Welcomes(t *testing.T) {
	api, hs := &fakeAPI{}, &mockCompleter{}
	bot := NewBot(api, hs, stubSigner{})

	bot.HandleUpdate(context.Background(), startUpdate(7, "/start"))

	assert.Equal(t, replyWelcome, api.lastMessage())
	assert.Zero(t, api.contactRequests)
}

func TestHandleUpdate_StartWithToken_RequestsContact(t *testing.T) {
	api, hs := &fakeAPI{}, &mockCompleter{}
	bot := NewBot(api, hs, stubSigner{})

	bot.HandleUpdate(context.Background(), startUpdate(7, "/start tok-1"))

	assert.Equal(t, 1, api.contactRequests)
	hs.AssertNotCalled(t, "CompleteSession", mock.Anything, mock.Anything)
}

func TestHandleUpdate_ContactAfterStart_CompletesSession(t *testing.T) {
	api := &fakeAPI{photoURL: "https://example.com/a.jpg"}
	hs := &mockCompleter{}
	bot := NewBot(api, hs, stubSigner{})

	var captured domain.CompleteLoginRequest
	hs.On("CompleteSession", mock.Anything, mock.AnythingOfType("domain.CompleteLoginRequest")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(domain.CompleteLoginRequest)
		}).Return("bearer", nil)

	bot.HandleUpdate(context.Background(), startUpdate(7, "/start tok-1"))
	bot.HandleUpdate(context.Background(), contactUpdate(7, &tg.Contact{
		PhoneNumber: "+1555",
		FirstName:   "Ana",
		LastName:    "Silva",
		UserID:      7,
	}))

	require.Equal(t, "tok-1", captured.Token)
	assert.Equal(t, "7", captured.TelegramID)
	assert.Equal(t, "Ana Silva", captured.Name)
	assert.Equal(t, "+1555", captured.Phone)
	assert.Equal(t, "ana", captured.Username)
	assert.Equal(t, "https://example.com/a.jpg", captured.Photo)
	assert.Equal(t, "signed-hash", captured.Hash)
	assert.NotZero(t, captured.AuthDate)
	assert.Equal(t, replySuccess, api.lastMessage())
}

func TestHandleUpdate_ContactConsumesPendingToken(t *testing.T) {
	api, hs := &fakeAPI{}, &mockCompleter{}
	bot := NewBot(api, hs, stubSigner{})
	hs.On("CompleteSession", mock.Anything, mock.Anything).Return("bearer", nil).Once()

	contact := &tg.Contact{FirstName: "Ana", UserID: 7}
	bot.HandleUpdate(context.Background(), startUpdate(7, "/start tok-1"))
	bot.HandleUpdate(context.Background(), contactUpdate(7, contact))
	// The mapping was removed before the first completion resolved; a
	// replayed contact share finds no pending session.
	bot.HandleUpdate(context.Background(), contactUpdate(7, contact))

	assert.Equal(t, replyNoSession, api.lastMessage())
	hs.AssertNumberOfCalls(t, "CompleteSession", 1)
}

func TestHandleUpdate_ContactWithoutStart_PromptsWebsite(t *testing.T) {
	api, hs := &fakeAPI{}, &mockCompleter{}
	bot := NewBot(api, hs, stubSigner{})

	bot.HandleUpdate(context.Background(), contactUpdate(7, &tg.Contact{FirstName: "Ana"}))

	assert.Equal(t, replyNoSession, api.lastMessage())
	hs.AssertNotCalled(t, "CompleteSession", mock.Anything, mock.Anything)
}

func TestHandleUpdate_ExpiredToken_TellsUserToRestart(t *testing.T) {
	api, hs := &fakeAPI{}, &mockCompleter{}
	bot := NewBot(api, hs, stubSigner{})
	hs.On("CompleteSession", mock.Anything, mock.Anything).Return("", domain.ErrLoginExpired)

	bot.HandleUpdate(context.Background(), startUpdate(7, "/start tok-1"))
	bot.HandleUpdate(context.Background(), contactUpdate(7, &tg.Contact{FirstName: "Ana", UserID: 7}))

	assert.Equal(t, replyLinkExpired, api.lastMessage())
}

func TestHandleUpdate_RejectedCompletion_TellsUserNotAuthorized(t *testing.T) {
	api, hs := &fakeAPI{}, &mockCompleter{}
	bot := NewBot(api, hs, stubSigner{})
	hs.On("CompleteSession", mock.Anything, mock.Anything).Return("", domain.ErrUnauthorized)

	bot.HandleUpdate(context.Background(), startUpdate(7, "/start tok-1"))
	bot.HandleUpdate(context.Background(), contactUpdate(7, &tg.Contact{FirstName: "Ana", UserID: 7}))

	assert.Equal(t, replyNotAuthorized, api.lastMessage())
}

func TestHandleUpdate_PhotoFetchFailure_DoesNotBlockLogin(t *testing.T) {
	api := &fakeAPI{photoErr: assert.AnError}
	hs := &mockCompleter{}
	bot := NewBot(api, hs, stubSigner{})

	var captured domain.CompleteLoginRequest
	hs.On("CompleteSession", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(domain.CompleteLoginRequest)
	}).Return("bearer", nil)

	bot.HandleUpdate(context.Background(), startUpdate(7, "/start tok-1"))
	bot.HandleUpdate(context.Background(), contactUpdate(7, &tg.Contact{FirstName: "Ana", UserID: 7}))

	assert.Empty(t, captured.Photo)
	assert.Equal(t, replySuccess, api.lastMessage())
}

func TestHandleUpdate_TextWithPendingSession_RepromptsButton(t *testing.T) {
	api, hs := &fakeAPI{}, &mockCompleter{}
	bot := NewBot(api, hs, stubSigner{})

	bot.HandleUpdate(context.Background(), startUpdate(7, "/start tok-1"))
	bot.HandleUpdate(context.Background(), startUpdate(7, "hello"))

	assert.Equal(t, replyUseButton, api.lastMessage())
}

func TestHandleUpdate_IgnoresEmptyUpdates(t *testing.T) {
	api, hs := &fakeAPI{}, &mockCompleter{}
	bot := NewBot(api, hs, stubSigner{})

	bot.HandleUpdate(context.Background(), tg.Update{UpdateID: 1})
	bot.HandleUpdate(context.Background(), tg.Update{UpdateID: 2, Message: &tg.Message{Text: "hi"}})

	assert.Empty(t, api.messages)
}
