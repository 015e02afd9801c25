package pushnotifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the public PushNotifier API endpoint.
	DefaultBaseURL = "https://api.pushnotifier.de"
	// DefaultTimeout bounds a single round trip when no http.Client is supplied.
	DefaultTimeout = 10 * time.Second

	appTokenHeader = "X-AppToken"

	loginPath            = "/v2/user/login"
	refreshPath          = "/v2/user/refresh"
	devicesPath          = "/v2/devices"
	sendTextPath         = "/v2/notifications/text"
	sendURLPath          = "/v2/notifications/url"
	sendNotificationPath = "/v2/notifications/notification"

	maxErrorBody = 512
)

// Credentials identify the account and the calling application.
type Credentials struct {
	Username    string
	Password    string
	APIKey      string
	PackageName string
}

// Client talks to the PushNotifier v2 API and owns one login session.
// It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	creds   Credentials
	http    *http.Client
	logger  *slog.Logger

	mu        sync.RWMutex
	username  string
	appToken  string
	expiresAt int64
	loggedIn  bool
}

// Option customises a Client.
type Option func(*Client) error

// WithBaseURL points the client at another endpoint (tests, self-hosted mirrors).
func WithBaseURL(rawURL string) Option {
	return func(c *Client) error {
		parsed, err := parseBaseURL(rawURL)
		if err != nil {
			return err
		}
		c.baseURL = parsed
		return nil
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("http client is nil")
		}
		c.http = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of the underlying http.Client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
		return nil
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// New creates a PushNotifier API client. No network call is made.
func New(creds Credentials, opts ...Option) (*Client, error) {
	switch {
	case strings.TrimSpace(creds.Username) == "":
		return nil, fmt.Errorf("username is required")
	case creds.Password == "":
		return nil, fmt.Errorf("password is required")
	case strings.TrimSpace(creds.APIKey) == "":
		return nil, fmt.Errorf("api key is required")
	case strings.TrimSpace(creds.PackageName) == "":
		return nil, fmt.Errorf("package name is required")
	}
	base, err := parseBaseURL(DefaultBaseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: base,
		creds:   creds,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "pushnotifier", "package", creds.PackageName)
	return c, nil
}

// Login exchanges username and password for an app token and stores it.
func (c *Client) Login(ctx context.Context) (*LoginResult, error) {
	body := map[string]string{
		"username": c.creds.Username,
		"password": c.creds.Password,
	}
	resp, err := c.do(ctx, "login", http.MethodPost, loginPath, "", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: server received wrong credentials (404)", ErrWrongCredentials)
	case http.StatusForbidden:
		return nil, fmt.Errorf("%w: server received wrong credentials (403)", ErrWrongCredentials)
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: server received wrong api-key and package-name combination", ErrUnauthorized)
	case http.StatusOK:
	default:
		return nil, unexpectedStatus("login", resp)
	}

	var result LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	result.Success = true

	c.mu.Lock()
	c.username = result.Username
	c.appToken = result.AppToken
	c.expiresAt = result.ExpiresAt
	c.loggedIn = true
	c.mu.Unlock()

	c.logger.Info("logged in", "username", result.Username, "expires", result.Expires())
	return &result, nil
}

// RefreshToken requests a new app token and replaces the stored one.
func (c *Client) RefreshToken(ctx context.Context) (*RefreshResult, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, "refresh", http.MethodGet, refreshPath, token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: server received wrong app-token", ErrUnauthorized)
	case http.StatusOK:
	default:
		return nil, unexpectedStatus("refresh", resp)
	}

	var result RefreshResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}

	c.mu.Lock()
	// a concurrent Login may have replaced the token this refresh was issued for
	if c.appToken == token {
		c.appToken = result.AppToken
		c.expiresAt = result.ExpiresAt
	}
	c.mu.Unlock()

	c.logger.Info("app token refreshed", "expires", result.Expires())
	return &result, nil
}

// ListDevices returns the devices registered to the package, in server order.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, "devices", http.MethodGet, devicesPath, token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: server received wrong app-token", ErrUnauthorized)
	case http.StatusOK:
	default:
		return nil, unexpectedStatus("devices", resp)
	}

	var devices []Device
	if err := json.NewDecoder(resp.Body).Decode(&devices); err != nil {
		return nil, fmt.Errorf("decode devices response: %w", err)
	}
	return devices, nil
}

// SendText sends a text notification to one device.
func (c *Client) SendText(ctx context.Context, message, deviceID string, silent bool) (*NotificationResult, error) {
	return c.send(ctx, "send text", sendTextPath, deviceID, notificationBody{
		Devices: []string{deviceID},
		Content: message,
		Silent:  silent,
	})
}

// SendURL sends a URL notification to one device.
func (c *Client) SendURL(ctx context.Context, link, deviceID string, silent bool) (*NotificationResult, error) {
	return c.send(ctx, "send url", sendURLPath, deviceID, notificationBody{
		Devices: []string{deviceID},
		URL:     link,
		Silent:  silent,
	})
}

// SendNotification sends a notification carrying both a message and a URL.
func (c *Client) SendNotification(ctx context.Context, message, link, deviceID string, silent bool) (*NotificationResult, error) {
	return c.send(ctx, "send notification", sendNotificationPath, deviceID, notificationBody{
		Devices: []string{deviceID},
		Content: message,
		URL:     link,
		Silent:  silent,
	})
}

// Session returns a snapshot of the current session.
func (c *Client) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Session{
		Username: c.username,
		AppToken: c.appToken,
		LoggedIn: c.loggedIn,
	}
	if c.loggedIn {
		s.ExpiresAt = expiresTime(c.expiresAt)
	}
	return s
}

// IsLoggedIn reports whether a login has succeeded.
func (c *Client) IsLoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loggedIn
}

// PackageName returns the application package the client authenticates as.
func (c *Client) PackageName() string {
	return c.creds.PackageName
}

// BaseURL returns the configured endpoint without trailing slash.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.baseURL.String(), "/")
}

type notificationBody struct {
	Devices []string `json:"devices"`
	Content string   `json:"content,omitempty"`
	URL     string   `json:"url,omitempty"`
	Silent  bool     `json:"silent"`
}

func (c *Client) send(ctx context.Context, op, p, deviceID string, body notificationBody) (*NotificationResult, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, op, http.MethodPut, p, token, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: notification was not sent", ErrBadRequest)
	case http.StatusNotFound:
		return nil, &DeviceNotFoundError{DeviceID: deviceID}
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: server received wrong app-token", ErrUnauthorized)
	case http.StatusOK:
	default:
		return nil, unexpectedStatus(op, resp)
	}

	var result NotificationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", op, err)
	}
	return &result, nil
}

func (c *Client) token() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loggedIn {
		return "", ErrNotAuthenticated
	}
	return c.appToken, nil
}

func (c *Client) do(ctx context.Context, op, method, p, token string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(p), reader)
	if err != nil {
		return nil, err
	}
	c.decorate(req, token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "op", op, "method", method, "path", p, "err", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}
	c.logger.Debug("request done", "op", op, "method", method, "path", p, "status", resp.StatusCode)
	return resp, nil
}

func (c *Client) resolve(p string) string {
	u := *c.baseURL
	u.Path = path.Join(c.baseURL.Path, p)
	return u.String()
}

func (c *Client) decorate(req *http.Request, token string) {
	req.SetBasicAuth(c.creds.PackageName, c.creds.APIKey)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set(appTokenHeader, token)
	}
}

func parseBaseURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("base url must include scheme")
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return parsed, nil
}

func unexpectedStatus(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
