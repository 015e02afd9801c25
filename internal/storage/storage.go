package storage

import (
	"context"

	"github.com/notifier-labs/pushnotifier-proxy/internal/model"
)

// Store abstracts device snapshot and notice log persistence.
type Store interface {
	// ReplaceDevices swaps the device snapshot for the one returned by the latest sync.
	ReplaceDevices(ctx context.Context, devices []*model.Device) error
	GetDevice(ctx context.Context, id string) (*model.Device, error)
	ListDevices(ctx context.Context) ([]*model.Device, error)
	AppendNoticeLog(ctx context.Context, log *model.NoticeLog) error
	ListNoticeLogs(ctx context.Context) ([]*model.NoticeLog, error)
	Close() error
}
