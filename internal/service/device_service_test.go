package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/notifier-labs/pushnotifier-proxy/internal/cache"
	"github.com/notifier-labs/pushnotifier-proxy/internal/model"
	"github.com/notifier-labs/pushnotifier-proxy/internal/pushnotifier"
	"github.com/notifier-labs/pushnotifier-proxy/internal/storage"
)

var remoteDevices = []pushnotifier.Device{
	{ID: "d2", Title: "Phone", Model: "Pixel 8"},
	{ID: "d1", Title: "Tablet", Model: "iPad"},
}

const devicesKey = "pushnotifier:devices:com.example.app"

func TestDeviceListSyncsStore(t *testing.T) {
	ctx := context.Background()
	client := new(mockNotifier)
	client.On("ListDevices", ctx).Return(remoteDevices, nil).Once()
	store := newStore(t)

	svc := NewDeviceService(client, store, nil, time.Minute, discardLogger())
	devices, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "d2", devices[0].ID)
	assert.Equal(t, "com.example.app", devices[0].PackageName)
	assert.False(t, devices[0].SyncedAt.IsZero())

	got, err := svc.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Tablet", got.Title)

	_, err = svc.Get(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.Get(ctx, " ")
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDeviceListUsesCache(t *testing.T) {
	ctx := context.Background()
	client := new(mockNotifier)
	c := new(mockCache)
	cached := []*model.Device{{ID: "cached"}}
	c.On("Get", ctx, devicesKey, mock.Anything).Run(func(args mock.Arguments) {
		*args.Get(2).(*[]*model.Device) = cached
	}).Return(nil).Once()

	svc := NewDeviceService(client, newStore(t), c, time.Minute, discardLogger())
	devices, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, cached, devices)
	client.AssertNotCalled(t, "ListDevices", mock.Anything)
	c.AssertExpectations(t)
}

func TestDeviceListMissFillsCache(t *testing.T) {
	ctx := context.Background()
	client := new(mockNotifier)
	client.On("ListDevices", ctx).Return(remoteDevices, nil).Once()
	c := new(mockCache)
	c.On("Get", ctx, devicesKey, mock.Anything).Return(cache.ErrMiss).Once()
	c.On("Set", ctx, devicesKey, mock.Anything, 5*time.Minute).Return(nil).Once()

	svc := NewDeviceService(client, newStore(t), c, 5*time.Minute, discardLogger())
	_, err := svc.List(ctx, false)
	require.NoError(t, err)
	c.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestDeviceListForceSkipsCache(t *testing.T) {
	ctx := context.Background()
	client := new(mockNotifier)
	client.On("ListDevices", ctx).Return(remoteDevices, nil).Once()
	c := new(mockCache)
	c.On("Del", ctx, devicesKey).Return(errors.New("redis down")).Once()
	c.On("Set", ctx, devicesKey, mock.Anything, time.Minute).Return(errors.New("redis down")).Once()

	svc := NewDeviceService(client, newStore(t), c, time.Minute, discardLogger())
	devices, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, devices, 2)
	c.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
	c.AssertExpectations(t)
}

func TestDeviceListUpstreamError(t *testing.T) {
	ctx := context.Background()
	client := new(mockNotifier)
	client.On("ListDevices", ctx).Return(nil, pushnotifier.ErrNotAuthenticated).Once()
	store := newStore(t)
	require.NoError(t, store.ReplaceDevices(ctx, []*model.Device{{ID: "old"}}))

	svc := NewDeviceService(client, store, nil, time.Minute, discardLogger())
	_, err := svc.List(ctx, false)
	require.ErrorIs(t, err, pushnotifier.ErrNotAuthenticated)

	// the previous snapshot stays in place
	devices, err := store.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "old", devices[0].ID)
}

func TestDeviceKnown(t *testing.T) {
	ctx := context.Background()
	client := new(mockNotifier)
	client.On("ListDevices", ctx).Return(remoteDevices, nil).Once()

	svc := NewDeviceService(client, newStore(t), nil, time.Minute, discardLogger())
	first, err := svc.Known(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := svc.Known(ctx)
	require.NoError(t, err)
	assert.Len(t, second, 2)
	client.AssertNumberOfCalls(t, "ListDevices", 1)
}
