package service

import (
	"context"
	"errors"

	"github.com/notifier-labs/pushnotifier-proxy/internal/pushnotifier"
)

// Notifier is the part of the PushNotifier client the services depend on.
type Notifier interface {
	Login(ctx context.Context) (*pushnotifier.LoginResult, error)
	RefreshToken(ctx context.Context) (*pushnotifier.RefreshResult, error)
	ListDevices(ctx context.Context) ([]pushnotifier.Device, error)
	SendText(ctx context.Context, message, deviceID string, silent bool) (*pushnotifier.NotificationResult, error)
	SendURL(ctx context.Context, link, deviceID string, silent bool) (*pushnotifier.NotificationResult, error)
	SendNotification(ctx context.Context, message, link, deviceID string, silent bool) (*pushnotifier.NotificationResult, error)
	Session() pushnotifier.Session
	PackageName() string
}

var _ Notifier = (*pushnotifier.Client)(nil)

// ErrInvalidRequest marks caller input the services refuse before going upstream.
var ErrInvalidRequest = errors.New("invalid request")
