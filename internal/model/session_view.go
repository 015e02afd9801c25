package model

import "time"

// SessionView exposes the upstream session without leaking the app token.
type SessionView struct {
	LoggedIn    bool      `json:"loggedIn"`
	Username    string    `json:"username"`
	PackageName string    `json:"packageName"`
	AppToken    string    `json:"appToken"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
	Expired     bool      `json:"expired"`
}
