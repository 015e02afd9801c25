package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/notifier-labs/pushnotifier-proxy/internal/cache"
	"github.com/notifier-labs/pushnotifier-proxy/internal/model"
	"github.com/notifier-labs/pushnotifier-proxy/internal/storage"
)

// DeviceService syncs the devices paired with the package.
type DeviceService struct {
	client Notifier
	store  storage.Store
	cache  cache.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewDeviceService constructs DeviceService. A nil cache disables caching.
func NewDeviceService(client Notifier, store storage.Store, c cache.Client, ttl time.Duration, logger *slog.Logger) *DeviceService {
	if c == nil {
		c = cache.Nop{}
	}
	return &DeviceService{
		client: client,
		store:  store,
		cache:  c,
		ttl:    ttl,
		logger: logger.With("component", "devices"),
	}
}

// List returns the remote device list in server order.
// Unless force is set a cached copy is served when present.
func (s *DeviceService) List(ctx context.Context, force bool) ([]*model.Device, error) {
	key := s.cacheKey()
	if force {
		if err := s.cache.Del(ctx, key); err != nil {
			s.logger.Warn("cache invalidate failed", "key", key, "err", err)
		}
	} else {
		var cached []*model.Device
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("cache read failed", "key", key, "err", err)
		}
	}

	remote, err := s.client.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	devices := make([]*model.Device, 0, len(remote))
	for _, d := range remote {
		devices = append(devices, &model.Device{
			ID:          d.ID,
			Title:       d.Title,
			Model:       d.Model,
			Image:       d.Image,
			PackageName: s.client.PackageName(),
			SyncedAt:    now,
		})
	}
	if err := s.store.ReplaceDevices(ctx, devices); err != nil {
		return nil, fmt.Errorf("store devices: %w", err)
	}
	if err := s.cache.Set(ctx, key, devices, s.ttl); err != nil {
		s.logger.Warn("cache write failed", "key", key, "err", err)
	}
	s.logger.Debug("devices synced", "count", len(devices))
	return devices, nil
}

// Get returns a device from the last synced snapshot.
func (s *DeviceService) Get(ctx context.Context, id string) (*model.Device, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrInvalidRequest)
	}
	return s.store.GetDevice(ctx, id)
}

// Known returns the stored snapshot, syncing once if nothing was stored yet.
func (s *DeviceService) Known(ctx context.Context) ([]*model.Device, error) {
	devices, err := s.store.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		return devices, nil
	}
	return s.List(ctx, false)
}

func (s *DeviceService) cacheKey() string {
	return "pushnotifier:devices:" + s.client.PackageName()
}
