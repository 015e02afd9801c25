package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/notifier-labs/pushnotifier-proxy/internal/pushnotifier"
)

func TestSessionKeep(t *testing.T) {
	ctx := context.Background()
	margin := 30 * time.Minute

	t.Run("logs in when logged out", func(t *testing.T) {
		client := new(mockNotifier)
		client.On("Session").Return(pushnotifier.Session{})
		client.On("Login", ctx).Return(&pushnotifier.LoginResult{AppToken: "T1", Success: true}, nil).Once()

		svc := NewSessionService(client, "", margin, discardLogger())
		require.NoError(t, svc.Keep(ctx))
		client.AssertExpectations(t)
	})

	t.Run("leaves a fresh token alone", func(t *testing.T) {
		client := new(mockNotifier)
		client.On("Session").Return(pushnotifier.Session{LoggedIn: true, AppToken: "T1", ExpiresAt: time.Now().Add(2 * time.Hour)})

		svc := NewSessionService(client, "", margin, discardLogger())
		require.NoError(t, svc.Keep(ctx))
		client.AssertNotCalled(t, "RefreshToken", mock.Anything)
		client.AssertNotCalled(t, "Login", mock.Anything)
	})

	t.Run("refreshes a token close to expiry", func(t *testing.T) {
		client := new(mockNotifier)
		client.On("Session").Return(pushnotifier.Session{LoggedIn: true, AppToken: "T1", ExpiresAt: time.Now().Add(10 * time.Minute)})
		client.On("RefreshToken", ctx).Return(&pushnotifier.RefreshResult{AppToken: "T2"}, nil).Once()

		svc := NewSessionService(client, "", margin, discardLogger())
		require.NoError(t, svc.Keep(ctx))
		client.AssertExpectations(t)
		client.AssertNotCalled(t, "Login", mock.Anything)
	})

	t.Run("falls back to login when refresh is rejected", func(t *testing.T) {
		client := new(mockNotifier)
		client.On("Session").Return(pushnotifier.Session{LoggedIn: true, AppToken: "T1", ExpiresAt: time.Now().Add(-time.Minute)})
		client.On("RefreshToken", ctx).Return(nil, pushnotifier.ErrUnauthorized).Once()
		client.On("Login", ctx).Return(&pushnotifier.LoginResult{AppToken: "T3"}, nil).Once()

		svc := NewSessionService(client, "", margin, discardLogger())
		require.NoError(t, svc.Keep(ctx))
		client.AssertExpectations(t)
	})

	t.Run("surfaces other refresh failures", func(t *testing.T) {
		client := new(mockNotifier)
		client.On("Session").Return(pushnotifier.Session{LoggedIn: true, ExpiresAt: time.Now()})
		client.On("RefreshToken", ctx).Return(nil, pushnotifier.ErrTransport).Once()

		svc := NewSessionService(client, "", margin, discardLogger())
		require.ErrorIs(t, svc.Keep(ctx), pushnotifier.ErrTransport)
		client.AssertNotCalled(t, "Login", mock.Anything)
	})
}

func TestEnsureSession(t *testing.T) {
	ctx := context.Background()
	client := new(mockNotifier)
	client.On("Session").Return(pushnotifier.Session{}).Once()
	client.On("Login", ctx).Return(nil, pushnotifier.ErrWrongCredentials).Once()

	svc := NewSessionService(client, "", time.Minute, discardLogger())
	require.ErrorIs(t, svc.EnsureSession(ctx), pushnotifier.ErrWrongCredentials)

	client.On("Session").Return(pushnotifier.Session{LoggedIn: true})
	require.NoError(t, svc.EnsureSession(ctx))
	client.AssertNumberOfCalls(t, "Login", 1)
}

func TestSessionView(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	client := new(mockNotifier)
	client.On("Session").Return(pushnotifier.Session{LoggedIn: true, Username: "alice", AppToken: "abcdefgh", ExpiresAt: expires})

	view := NewSessionService(client, "", time.Minute, discardLogger()).View()
	assert.True(t, view.LoggedIn)
	assert.Equal(t, "alice", view.Username)
	assert.Equal(t, "com.example.app", view.PackageName)
	assert.Equal(t, "abcd****", view.AppToken)
	assert.Equal(t, expires, view.ExpiresAt)
	assert.False(t, view.Expired)
}

func TestSessionStartStop(t *testing.T) {
	client := new(mockNotifier)
	svc := NewSessionService(client, "not a cron spec", time.Minute, discardLogger())
	require.Error(t, svc.Start())
	svc.Stop()

	svc = NewSessionService(client, "@every 1h", time.Minute, discardLogger())
	require.NoError(t, svc.Start())
	svc.Stop()
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "", maskValue(""))
	assert.Equal(t, "***", maskValue("abc"))
	assert.Equal(t, "abcd**", maskValue("abcdef"))
}
