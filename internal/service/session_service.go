package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/notifier-labs/pushnotifier-proxy/internal/model"
	"github.com/notifier-labs/pushnotifier-proxy/internal/pushnotifier"
)

const keepTimeout = 30 * time.Second

// SessionService keeps the upstream PushNotifier session alive.
type SessionService struct {
	client Notifier
	spec   string
	margin time.Duration
	logger *slog.Logger

	// serialises login/refresh so the scheduler and API callers do not race
	mu   sync.Mutex
	cron *cron.Cron
}

// NewSessionService builds the session keeper. spec is a cron expression such as "@every 5m".
func NewSessionService(client Notifier, spec string, margin time.Duration, logger *slog.Logger) *SessionService {
	if strings.TrimSpace(spec) == "" {
		spec = "@every 5m"
	}
	return &SessionService{
		client: client,
		spec:   spec,
		margin: margin,
		logger: logger.With("component", "session"),
	}
}

// Login forces a new login.
func (s *SessionService) Login(ctx context.Context) (*pushnotifier.LoginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.Login(ctx)
}

// Refresh exchanges the current app token for a new one.
func (s *SessionService) Refresh(ctx context.Context) (*pushnotifier.RefreshResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.RefreshToken(ctx)
}

// EnsureSession logs in when no session exists yet.
func (s *SessionService) EnsureSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client.Session().LoggedIn {
		return nil
	}
	_, err := s.client.Login(ctx)
	return err
}

// Keep logs in when logged out and refreshes a token that expires within the margin.
// A rejected refresh falls back to a fresh login.
func (s *SessionService) Keep(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.client.Session()
	if !session.LoggedIn {
		_, err := s.client.Login(ctx)
		return err
	}
	if !session.ExpiresWithin(s.margin) {
		return nil
	}
	_, err := s.client.RefreshToken(ctx)
	if errors.Is(err, pushnotifier.ErrUnauthorized) {
		s.logger.Warn("refresh rejected, logging in again")
		_, err = s.client.Login(ctx)
	}
	return err
}

// View returns the session without exposing the full app token.
func (s *SessionService) View() model.SessionView {
	session := s.client.Session()
	view := model.SessionView{
		LoggedIn:    session.LoggedIn,
		Username:    session.Username,
		PackageName: s.client.PackageName(),
		AppToken:    maskValue(session.AppToken),
		ExpiresAt:   session.ExpiresAt,
	}
	if session.LoggedIn {
		view.Expired = !time.Now().Before(session.ExpiresAt)
	}
	return view
}

// Start schedules Keep on the configured cron spec.
func (s *SessionService) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.spec, s.tick); err != nil {
		return fmt.Errorf("schedule session refresh %q: %w", s.spec, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("session keeper started", "spec", s.spec, "margin", s.margin)
	return nil
}

// Stop halts the scheduler and waits for a running job.
func (s *SessionService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *SessionService) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), keepTimeout)
	defer cancel()
	if err := s.Keep(ctx); err != nil {
		s.logger.Error("keep session failed", "err", err)
	}
}

func maskValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:4]) + strings.Repeat("*", len(runes)-4)
}
