package model

// NoticeKind selects the PushNotifier notification endpoint.
type NoticeKind string

const (
	NoticeText         NoticeKind = "TEXT"
	NoticeURL          NoticeKind = "URL"
	NoticeNotification NoticeKind = "NOTIFICATION"
)

// KindOf derives the endpoint from which fields are present.
func KindOf(content, url string) NoticeKind {
	switch {
	case content != "" && url != "":
		return NoticeNotification
	case url != "":
		return NoticeURL
	default:
		return NoticeText
	}
}

// NoticeRequest models the message clients send to the proxy.
type NoticeRequest struct {
	Content   string   `json:"content"`
	URL       string   `json:"url"`
	Silent    bool     `json:"silent"`
	DeviceIDs []string `json:"deviceIds"`
}

// NoticeResult summarises a push attempt for one device.
type NoticeResult struct {
	DeviceID string `json:"deviceId"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// NoticeSummary aggregates one fan-out.
type NoticeSummary struct {
	BatchID    string     `json:"batchId"`
	Kind       NoticeKind `json:"kind"`
	SendNum    int        `json:"sendNum"`
	SuccessNum int        `json:"successNum"`
}

const (
	NoticeStatusSuccess = "SUCCESS"
	NoticeStatusFailed  = "FAILED"
)
