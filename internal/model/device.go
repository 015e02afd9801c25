package model

import "time"

// Device is the local snapshot of a device paired with the PushNotifier package.
type Device struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Model       string    `json:"model"`
	Image       string    `json:"image"`
	PackageName string    `json:"packageName"`
	SyncedAt    time.Time `json:"syncedAt"`
}
