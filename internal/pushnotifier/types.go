package pushnotifier

import (
	"encoding/json"
	"time"
)

// LoginResult is returned by /v2/user/login.
type LoginResult struct {
	Username  string `json:"username"`
	AppToken  string `json:"app_token"`
	ExpiresAt int64  `json:"expires_at"`
	Success   bool   `json:"success"`
}

// Expires converts ExpiresAt to local wall-clock time.
func (r LoginResult) Expires() time.Time {
	return expiresTime(r.ExpiresAt)
}

// IsExpired reports whether the token lifetime has elapsed.
func (r LoginResult) IsExpired() bool {
	return isExpired(r.ExpiresAt, time.Now())
}

// RefreshResult is returned by /v2/user/refresh.
type RefreshResult struct {
	AppToken  string `json:"app_token"`
	ExpiresAt int64  `json:"expires_at"`
}

// Expires converts ExpiresAt to local wall-clock time.
func (r RefreshResult) Expires() time.Time {
	return expiresTime(r.ExpiresAt)
}

// IsExpired reports whether the token lifetime has elapsed.
func (r RefreshResult) IsExpired() bool {
	return isExpired(r.ExpiresAt, time.Now())
}

// Device is one device paired with the authenticated package.
type Device struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Model string `json:"model"`
	Image string `json:"image"`
}

// NotificationResult lists the device ids that did and did not receive a message.
type NotificationResult struct {
	Success []string `json:"success"`
	Error   []string `json:"error"`
}

// UnmarshalJSON accepts entries either as plain ids or as {"device_id": ...} objects.
// The server sends the success list in the object form.
func (r *NotificationResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Success []json.RawMessage `json:"success"`
		Error   []json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	success, err := deviceIDs(raw.Success)
	if err != nil {
		return err
	}
	failed, err := deviceIDs(raw.Error)
	if err != nil {
		return err
	}
	r.Success = success
	r.Error = failed
	return nil
}

// Session is a snapshot of the client's session state.
type Session struct {
	Username  string    `json:"username"`
	AppToken  string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	LoggedIn  bool      `json:"loggedIn"`
}

// ExpiresWithin reports whether the token expires before now+d.
func (s Session) ExpiresWithin(d time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !time.Now().Add(d).Before(s.ExpiresAt)
}

type deviceRef struct {
	DeviceID string `json:"device_id"`
}

func deviceIDs(entries []json.RawMessage) ([]string, error) {
	if entries == nil {
		return nil, nil
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		var id string
		if err := json.Unmarshal(entry, &id); err == nil {
			ids = append(ids, id)
			continue
		}
		var ref deviceRef
		if err := json.Unmarshal(entry, &ref); err != nil {
			return nil, err
		}
		ids = append(ids, ref.DeviceID)
	}
	return ids, nil
}

func expiresTime(epoch int64) time.Time {
	return time.Unix(epoch, 0).Local()
}

func isExpired(epoch int64, now time.Time) bool {
	return !now.Before(expiresTime(epoch))
}
