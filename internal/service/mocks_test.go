package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/notifier-labs/pushnotifier-proxy/internal/pushnotifier"
	"github.com/notifier-labs/pushnotifier-proxy/internal/storage/bolt"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Login(ctx context.Context) (*pushnotifier.LoginResult, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*pushnotifier.LoginResult)
	return res, args.Error(1)
}

func (m *mockNotifier) RefreshToken(ctx context.Context) (*pushnotifier.RefreshResult, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*pushnotifier.RefreshResult)
	return res, args.Error(1)
}

func (m *mockNotifier) ListDevices(ctx context.Context) ([]pushnotifier.Device, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]pushnotifier.Device)
	return res, args.Error(1)
}

func (m *mockNotifier) SendText(ctx context.Context, message, deviceID string, silent bool) (*pushnotifier.NotificationResult, error) {
	args := m.Called(ctx, message, deviceID, silent)
	res, _ := args.Get(0).(*pushnotifier.NotificationResult)
	return res, args.Error(1)
}

func (m *mockNotifier) SendURL(ctx context.Context, link, deviceID string, silent bool) (*pushnotifier.NotificationResult, error) {
	args := m.Called(ctx, link, deviceID, silent)
	res, _ := args.Get(0).(*pushnotifier.NotificationResult)
	return res, args.Error(1)
}

func (m *mockNotifier) SendNotification(ctx context.Context, message, link, deviceID string, silent bool) (*pushnotifier.NotificationResult, error) {
	args := m.Called(ctx, message, link, deviceID, silent)
	res, _ := args.Get(0).(*pushnotifier.NotificationResult)
	return res, args.Error(1)
}

func (m *mockNotifier) Session() pushnotifier.Session {
	return m.Called().Get(0).(pushnotifier.Session)
}

func (m *mockNotifier) PackageName() string {
	return "com.example.app"
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string, dest any) error {
	return m.Called(ctx, key, dest).Error(0)
}

func (m *mockCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *bolt.Store {
	t.Helper()
	s, err := bolt.New(filepath.Join(t.TempDir(), "pn.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sent(ids ...string) *pushnotifier.NotificationResult {
	res := &pushnotifier.NotificationResult{Error: []string{}}
	res.Success = append(res.Success, ids...)
	return res
}
