package model

import "time"

// NoticeLog tracks each push attempt.
type NoticeLog struct {
	ID        uint64     `json:"id"`
	BatchID   string     `json:"batchId"`
	DeviceID  string     `json:"deviceId"`
	Kind      NoticeKind `json:"kind"`
	Content   string     `json:"content"`
	URL       string     `json:"url"`
	Silent    bool       `json:"silent"`
	Result    string     `json:"result"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// NoticeLogFilter describes query parameters for log searching.
type NoticeLogFilter struct {
	DeviceID  string
	BatchID   string
	Kind      string
	Status    string
	BeginTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
}
