package pushnotifier

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongCredentials indicates the login was rejected for username/password.
	ErrWrongCredentials = errors.New("pushnotifier: wrong credentials")
	// ErrUnauthorized indicates the API key/package pair or the app token was rejected.
	ErrUnauthorized = errors.New("pushnotifier: unauthorized")
	// ErrNotAuthenticated is returned locally when an operation needs a session.
	ErrNotAuthenticated = errors.New("pushnotifier: not authenticated")
	// ErrBadRequest indicates the server refused a malformed notification.
	ErrBadRequest = errors.New("pushnotifier: bad request")
	// ErrDeviceNotFound indicates the target device id is unknown to the server.
	ErrDeviceNotFound = errors.New("pushnotifier: device not found")
	// ErrTransport wraps failures of the underlying HTTP exchange.
	ErrTransport = errors.New("pushnotifier: transport failure")
	// ErrUnexpectedStatus matches any *StatusError.
	ErrUnexpectedStatus = errors.New("pushnotifier: unexpected status")
)

// DeviceNotFoundError carries the device id the server did not recognise.
type DeviceNotFoundError struct {
	DeviceID string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("pushnotifier: the requested device id %s was not found", e.DeviceID)
}

// Is reports ErrDeviceNotFound as equivalent.
func (e *DeviceNotFoundError) Is(target error) bool {
	return target == ErrDeviceNotFound
}

// StatusError is returned for status codes the operation has no mapping for.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("pushnotifier: %s: unexpected http status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("pushnotifier: %s: unexpected http status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Is reports ErrUnexpectedStatus as equivalent.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}
