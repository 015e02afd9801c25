package bolt

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/notifier-labs/pushnotifier-proxy/internal/crypto"
	"github.com/notifier-labs/pushnotifier-proxy/internal/model"
	"github.com/notifier-labs/pushnotifier-proxy/internal/storage"
)

func openStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "pn.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDevices(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.ReplaceDevices(ctx, []*model.Device{
		{ID: "b", Title: "Phone"},
		{ID: "a", Title: "Tablet"},
	}))

	devices, err := s.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "a", devices[0].ID)
	assert.Equal(t, "b", devices[1].ID)
	assert.False(t, devices[0].SyncedAt.IsZero())

	got, err := s.GetDevice(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Phone", got.Title)

	// a new snapshot drops devices that were unpaired upstream
	require.NoError(t, s.ReplaceDevices(ctx, []*model.Device{{ID: "c", Title: "Watch"}}))
	_, err = s.GetDevice(ctx, "a")
	require.ErrorIs(t, err, storage.ErrNotFound)
	devices, err = s.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "c", devices[0].ID)
}

func TestNoticeLogs(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	first := &model.NoticeLog{DeviceID: "a", Content: "one", Status: model.NoticeStatusSuccess}
	second := &model.NoticeLog{DeviceID: "b", URL: "https://x", Status: model.NoticeStatusFailed}
	require.NoError(t, s.AppendNoticeLog(ctx, first))
	require.NoError(t, s.AppendNoticeLog(ctx, second))
	assert.EqualValues(t, 1, first.ID)
	assert.EqualValues(t, 2, second.ID)

	logs, err := s.ListNoticeLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "one", logs[0].Content)
	assert.Equal(t, "https://x", logs[1].URL)
	assert.False(t, logs[0].CreatedAt.IsZero())
}

func TestNoticeLogs_Sealed(t *testing.T) {
	ctx := context.Background()
	sealer, err := crypto.NewSealer([]byte("0123456789abcdef"))
	require.NoError(t, err)
	s := openStore(t, WithSealer(sealer))

	entry := &model.NoticeLog{DeviceID: "a", Content: "top secret", URL: "https://private"}
	require.NoError(t, s.AppendNoticeLog(ctx, entry))
	assert.Equal(t, "top secret", entry.Content, "caller's copy stays plaintext")

	var raw model.NoticeLog
	require.NoError(t, s.db.View(func(tx *bolt.Tx) error {
		key := make([]byte, 8)
		key[7] = 1
		return json.Unmarshal(tx.Bucket(bucketNoticeLog).Get(key), &raw)
	}))
	assert.NotEqual(t, "top secret", raw.Content)
	assert.NotEqual(t, "https://private", raw.URL)

	logs, err := s.ListNoticeLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "top secret", logs[0].Content)
	assert.Equal(t, "https://private", logs[0].URL)
}

func TestCancelledContext(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, s.ReplaceDevices(ctx, nil), context.Canceled)
	_, err := s.ListNoticeLogs(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
