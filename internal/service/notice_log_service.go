package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/notifier-labs/pushnotifier-proxy/internal/model"
	"github.com/notifier-labs/pushnotifier-proxy/internal/storage"
)

// NoticeLogService provides filtering and statistics over sent notifications.
type NoticeLogService struct {
	store     storage.Store
	deviceSvc *DeviceService
}

// NewNoticeLogService builds the notice log service.
func NewNoticeLogService(store storage.Store, deviceSvc *DeviceService) *NoticeLogService {
	return &NoticeLogService{store: store, deviceSvc: deviceSvc}
}

// Query returns paginated logs, newest first.
func (s *NoticeLogService) Query(ctx context.Context, filter model.NoticeLogFilter) (*model.NoticeLogPage, error) {
	logs, err := s.filteredLogs(ctx, filter)
	if err != nil {
		return nil, err
	}

	total := len(logs)
	if filter.PageSize <= 0 {
		filter.PageSize = 10
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}

	return &model.NoticeLogPage{
		Data:     logs[start:end],
		Total:    total,
		Pages:    (total + filter.PageSize - 1) / filter.PageSize,
		PageNum:  filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// CountByDate aggregates logs per day/month/year.
func (s *NoticeLogService) CountByDate(ctx context.Context, dateType string, begin, end *time.Time) ([]map[string]any, error) {
	logs, err := s.filteredLogs(ctx, model.NoticeLogFilter{BeginTime: begin, EndTime: end})
	if err != nil {
		return nil, err
	}

	layout := "2006-01-02"
	switch strings.ToLower(dateType) {
	case "year":
		layout = "2006"
	case "month":
		layout = "2006-01"
	}

	counter := make(map[string]int)
	for _, log := range logs {
		counter[log.CreatedAt.Format(layout)]++
	}
	return mapToKV(counter, "date"), nil
}

// CountByStatus aggregates by log status.
func (s *NoticeLogService) CountByStatus(ctx context.Context, begin, end *time.Time) ([]map[string]any, error) {
	logs, err := s.filteredLogs(ctx, model.NoticeLogFilter{BeginTime: begin, EndTime: end})
	if err != nil {
		return nil, err
	}
	counter := make(map[string]int)
	for _, log := range logs {
		status := log.Status
		if status == "" {
			status = "UNKNOWN"
		}
		counter[status]++
	}
	return mapToKV(counter, "status"), nil
}

// CountByKind aggregates by notification kind (text, url, notification).
func (s *NoticeLogService) CountByKind(ctx context.Context, begin, end *time.Time) ([]map[string]any, error) {
	logs, err := s.filteredLogs(ctx, model.NoticeLogFilter{BeginTime: begin, EndTime: end})
	if err != nil {
		return nil, err
	}
	counter := make(map[string]int)
	for _, log := range logs {
		counter[string(log.Kind)]++
	}
	return mapToKV(counter, "kind"), nil
}

// CountByDevice aggregates using device titles when available.
func (s *NoticeLogService) CountByDevice(ctx context.Context, begin, end *time.Time) ([]map[string]any, error) {
	logs, err := s.filteredLogs(ctx, model.NoticeLogFilter{BeginTime: begin, EndTime: end})
	if err != nil {
		return nil, err
	}
	deviceName := make(map[string]string)
	if s.deviceSvc != nil {
		if devices, err := s.deviceSvc.store.ListDevices(ctx); err == nil {
			for _, d := range devices {
				if d.Title != "" {
					deviceName[d.ID] = d.Title
				}
			}
		}
	}
	counter := make(map[string]int)
	for _, log := range logs {
		name := deviceName[log.DeviceID]
		if name == "" {
			name = log.DeviceID
		}
		counter[name]++
	}
	return mapToKV(counter, "device"), nil
}

func (s *NoticeLogService) filteredLogs(ctx context.Context, filter model.NoticeLogFilter) ([]*model.NoticeLog, error) {
	all, err := s.store.ListNoticeLogs(ctx)
	if err != nil {
		return nil, err
	}
	matches := make([]*model.NoticeLog, 0, len(all))
	for _, log := range all {
		if filter.DeviceID != "" && log.DeviceID != filter.DeviceID {
			continue
		}
		if filter.BatchID != "" && log.BatchID != filter.BatchID {
			continue
		}
		if filter.Kind != "" && !strings.EqualFold(string(log.Kind), filter.Kind) {
			continue
		}
		if filter.Status != "" && !strings.EqualFold(log.Status, filter.Status) {
			continue
		}
		if filter.BeginTime != nil && log.CreatedAt.Before(filter.BeginTime.UTC()) {
			continue
		}
		if filter.EndTime != nil && log.CreatedAt.After(filter.EndTime.UTC()) {
			continue
		}
		matches = append(matches, log)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

func mapToKV(counter map[string]int, key string) []map[string]any {
	result := make([]map[string]any, 0, len(counter))
	for k, v := range counter {
		result = append(result, map[string]any{
			key:     k,
			"count": v,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i][key].(string) < result[j][key].(string)
	})
	return result
}
