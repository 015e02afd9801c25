package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/notifier-labs/pushnotifier-proxy/internal/model"
	"github.com/notifier-labs/pushnotifier-proxy/internal/pushnotifier"
	"github.com/notifier-labs/pushnotifier-proxy/internal/storage"
)

// NoticeService forwards notifications to PushNotifier and records every attempt.
type NoticeService struct {
	client  Notifier
	store   storage.Store
	devices *DeviceService
	logger  *slog.Logger
}

// NewNoticeService builds NoticeService.
func NewNoticeService(client Notifier, store storage.Store, devices *DeviceService, logger *slog.Logger) *NoticeService {
	return &NoticeService{
		client:  client,
		store:   store,
		devices: devices,
		logger:  logger.With("component", "notices"),
	}
}

// SendOne sends a notification of the given kind to a single device.
// Upstream errors are returned unchanged so callers can match them.
func (s *NoticeService) SendOne(ctx context.Context, kind model.NoticeKind, req model.NoticeRequest, deviceID string) (*pushnotifier.NotificationResult, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrInvalidRequest)
	}
	if err := validateKind(kind, req); err != nil {
		return nil, err
	}
	batchID := uuid.NewString()
	res, err := s.dispatch(ctx, kind, req, deviceID)
	status, msg := outcome(deviceID, res, err)
	s.appendLog(ctx, batchID, kind, req, deviceID, status, msg)
	return res, err
}

// Broadcast sends one notification to every requested device, or to all known
// devices when none are named. The request kind follows from content and url.
func (s *NoticeService) Broadcast(ctx context.Context, req model.NoticeRequest) (model.NoticeSummary, []model.NoticeResult, error) {
	if strings.TrimSpace(req.Content) == "" && strings.TrimSpace(req.URL) == "" {
		return model.NoticeSummary{}, nil, fmt.Errorf("%w: content or url is required", ErrInvalidRequest)
	}
	kind := model.KindOf(req.Content, req.URL)

	targets, err := s.pickTargets(ctx, req.DeviceIDs)
	if err != nil {
		return model.NoticeSummary{}, nil, err
	}
	if len(targets) == 0 {
		return model.NoticeSummary{}, nil, fmt.Errorf("%w: no target devices resolved", ErrInvalidRequest)
	}

	summary := model.NoticeSummary{
		BatchID: uuid.NewString(),
		Kind:    kind,
		SendNum: len(targets),
	}
	results := make([]model.NoticeResult, len(targets))

	var wg sync.WaitGroup
	wg.Add(len(targets))
	for i, deviceID := range targets {
		go func() {
			defer wg.Done()
			res, err := s.dispatch(ctx, kind, req, deviceID)
			status, msg := outcome(deviceID, res, err)
			s.appendLog(ctx, summary.BatchID, kind, req, deviceID, status, msg)
			results[i] = model.NoticeResult{DeviceID: deviceID, Status: status, Message: msg}
		}()
	}
	wg.Wait()

	for _, r := range results {
		if r.Status == model.NoticeStatusSuccess {
			summary.SuccessNum++
		}
	}
	s.logger.Info("broadcast done", "batch", summary.BatchID, "kind", kind, "sent", summary.SendNum, "success", summary.SuccessNum)
	return summary, results, nil
}

func (s *NoticeService) dispatch(ctx context.Context, kind model.NoticeKind, req model.NoticeRequest, deviceID string) (*pushnotifier.NotificationResult, error) {
	switch kind {
	case model.NoticeURL:
		return s.client.SendURL(ctx, req.URL, deviceID, req.Silent)
	case model.NoticeNotification:
		return s.client.SendNotification(ctx, req.Content, req.URL, deviceID, req.Silent)
	default:
		return s.client.SendText(ctx, req.Content, deviceID, req.Silent)
	}
}

func (s *NoticeService) pickTargets(ctx context.Context, deviceIDs []string) ([]string, error) {
	var targets []string
	if len(deviceIDs) == 0 {
		devices, err := s.devices.Known(ctx)
		if err != nil {
			return nil, fmt.Errorf("list devices: %w", err)
		}
		for _, d := range devices {
			targets = append(targets, d.ID)
		}
		return targets, nil
	}
	for _, id := range deviceIDs {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(targets, id) {
			continue
		}
		targets = append(targets, id)
	}
	return targets, nil
}

func (s *NoticeService) appendLog(ctx context.Context, batchID string, kind model.NoticeKind, req model.NoticeRequest, deviceID, status, result string) {
	entry := &model.NoticeLog{
		BatchID:  batchID,
		DeviceID: deviceID,
		Kind:     kind,
		Content:  req.Content,
		URL:      req.URL,
		Silent:   req.Silent,
		Result:   result,
		Status:   status,
	}
	if kind == model.NoticeText {
		entry.URL = ""
	}
	if kind == model.NoticeURL {
		entry.Content = ""
	}
	if err := s.store.AppendNoticeLog(ctx, entry); err != nil {
		s.logger.Error("append notice log failed", "device", deviceID, "err", err)
	}
}

func validateKind(kind model.NoticeKind, req model.NoticeRequest) error {
	switch kind {
	case model.NoticeText:
		if strings.TrimSpace(req.Content) == "" {
			return fmt.Errorf("%w: content is required", ErrInvalidRequest)
		}
	case model.NoticeURL:
		if strings.TrimSpace(req.URL) == "" {
			return fmt.Errorf("%w: url is required", ErrInvalidRequest)
		}
	case model.NoticeNotification:
		if strings.TrimSpace(req.Content) == "" || strings.TrimSpace(req.URL) == "" {
			return fmt.Errorf("%w: content and url are required", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, kind)
	}
	return nil
}

// outcome reads a per-device status out of the upstream answer.
func outcome(deviceID string, res *pushnotifier.NotificationResult, err error) (string, string) {
	if err != nil {
		return model.NoticeStatusFailed, err.Error()
	}
	if res == nil || slices.Contains(res.Error, deviceID) {
		return model.NoticeStatusFailed, "device reported in error list"
	}
	return model.NoticeStatusSuccess, ""
}
