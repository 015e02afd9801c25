package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/notifier-labs/pushnotifier-proxy/internal/config"
	"github.com/notifier-labs/pushnotifier-proxy/internal/model"
	"github.com/notifier-labs/pushnotifier-proxy/internal/pushnotifier"
	"github.com/notifier-labs/pushnotifier-proxy/internal/service"
	"github.com/notifier-labs/pushnotifier-proxy/internal/storage"
)

// Server wires HTTP handlers.
type Server struct {
	app        *fiber.App
	sessionSvc *service.SessionService
	deviceSvc  *service.DeviceService
	noticeSvc  *service.NoticeService
	logSvc     *service.NoticeLogService
	authSvc    *service.AuthService
	store      storage.Store
	cfg        *config.Config
	logger     *slog.Logger
}

// Services groups what the handlers delegate to.
type Services struct {
	Session *service.SessionService
	Device  *service.DeviceService
	Notice  *service.NoticeService
	Log     *service.NoticeLogService
	Auth    *service.AuthService
}

// New builds a server instance.
func New(cfg *config.Config, store storage.Store, svcs Services, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		IdleTimeout:           cfg.HTTP.ReadTimeout,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		AppName:               "pushnotifier-proxy",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	s := &Server{
		app:        app,
		sessionSvc: svcs.Session,
		deviceSvc:  svcs.Device,
		noticeSvc:  svcs.Notice,
		logSvc:     svcs.Log,
		authSvc:    svcs.Auth,
		store:      store,
		cfg:        cfg,
		logger:     logger.With("component", "http"),
	}
	s.registerRoutes()
	return s
}

// App exposes the underlying fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens and serves HTTP traffic.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.cfg.HTTP.Addr)
	return s.app.Listen(s.cfg.HTTP.Addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.handleHealth)

	s.app.Post("/auth/login", s.handleLogin)
	s.app.Get("/auth/profile", s.handleProfile)

	api := s.app.Group("/api", s.requireAuth)

	api.Get("/session", s.handleSession)
	api.Post("/session/login", s.handleSessionLogin)
	api.Post("/session/refresh", s.handleSessionRefresh)

	api.Get("/devices", s.handleDeviceList)
	api.Get("/devices/:id", s.handleDeviceGet)

	api.Post("/notifications", s.handleBroadcast)
	api.Post("/notifications/:kind", s.handleSendOne)

	api.Get("/logs", s.handleLogList)
	api.Get("/logs/count/date", s.handleLogCountDate)
	api.Get("/logs/count/status", s.handleLogCountStatus)
	api.Get("/logs/count/kind", s.handleLogCountKind)
	api.Get("/logs/count/device", s.handleLogCountDevice)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	view := s.sessionSvc.View()
	resp := model.HealthRes{
		Status:   model.HealthUp,
		LoggedIn: view.LoggedIn,
		Expired:  view.Expired,
	}
	if !view.LoggedIn || view.Expired {
		resp.Status = model.HealthDegraded
	}
	if devices, err := s.store.ListDevices(c.UserContext()); err == nil {
		resp.DeviceNum = len(devices)
	} else {
		resp.Status = model.HealthDegraded
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.Error("malformed request body"))
	}
	if s.authSvc == nil || !s.authSvc.Enabled() {
		return c.JSON(model.Success("login not required", fiber.Map{
			"token":    "",
			"enabled":  false,
			"username": "guest",
		}))
	}
	token, err := s.authSvc.Authenticate(req.Username, req.Password)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("login ok", fiber.Map{
		"token":    token,
		"enabled":  true,
		"username": s.authSvc.Username(),
	}))
}

func (s *Server) handleProfile(c *fiber.Ctx) error {
	if s.authSvc == nil || !s.authSvc.Enabled() {
		return c.JSON(model.Success("ok", fiber.Map{
			"enabled":  false,
			"username": "guest",
		}))
	}
	token := extractBearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return c.Status(http.StatusUnauthorized).JSON(model.Error("not logged in"))
	}
	claims, err := s.authSvc.Validate(token)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(model.Error("session expired"))
	}
	return c.JSON(model.Success("ok", fiber.Map{
		"enabled":  true,
		"username": claims.Username,
	}))
}

func (s *Server) handleSession(c *fiber.Ctx) error {
	return c.JSON(model.Success("ok", s.sessionSvc.View()))
}

func (s *Server) handleSessionLogin(c *fiber.Ctx) error {
	if _, err := s.sessionSvc.Login(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("logged in", s.sessionSvc.View()))
}

func (s *Server) handleSessionRefresh(c *fiber.Ctx) error {
	if _, err := s.sessionSvc.Refresh(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("token refreshed", s.sessionSvc.View()))
}

func (s *Server) handleDeviceList(c *fiber.Ctx) error {
	devices, err := s.deviceSvc.List(c.UserContext(), c.QueryBool("refresh"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("ok", devices))
}

func (s *Server) handleDeviceGet(c *fiber.Ctx) error {
	device, err := s.deviceSvc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("ok", device))
}

func (s *Server) handleSendOne(c *fiber.Ctx) error {
	kind, ok := parseKind(c.Params("kind"))
	if !ok {
		return c.Status(http.StatusNotFound).JSON(model.Error("unknown notification kind"))
	}
	var req struct {
		model.NoticeRequest
		DeviceID string `json:"deviceId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.Error("malformed request body"))
	}
	res, err := s.noticeSvc.SendOne(c.UserContext(), kind, req.NoticeRequest, req.DeviceID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("sent", res))
}

func (s *Server) handleBroadcast(c *fiber.Ctx) error {
	var req model.NoticeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.Error("malformed request body"))
	}
	summary, results, err := s.noticeSvc.Broadcast(c.UserContext(), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("sent", fiber.Map{
		"summary": summary,
		"results": results,
	}))
}

func (s *Server) handleLogList(c *fiber.Ctx) error {
	page, err := s.logSvc.Query(c.UserContext(), parseLogFilter(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("ok", page))
}

func (s *Server) handleLogCountDate(c *fiber.Ctx) error {
	begin, end := parseTimeRange(c)
	data, err := s.logSvc.CountByDate(c.UserContext(), c.Query("dateType", "day"), begin, end)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("ok", data))
}

func (s *Server) handleLogCountStatus(c *fiber.Ctx) error {
	begin, end := parseTimeRange(c)
	data, err := s.logSvc.CountByStatus(c.UserContext(), begin, end)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("ok", data))
}

func (s *Server) handleLogCountKind(c *fiber.Ctx) error {
	begin, end := parseTimeRange(c)
	data, err := s.logSvc.CountByKind(c.UserContext(), begin, end)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("ok", data))
}

func (s *Server) handleLogCountDevice(c *fiber.Ctx) error {
	begin, end := parseTimeRange(c)
	data, err := s.logSvc.CountByDevice(c.UserContext(), begin, end)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("ok", data))
}

// fail maps service and upstream errors onto an HTTP status and envelope code.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status, code := http.StatusInternalServerError, model.ErrorCode
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status, code = http.StatusNotFound, model.CodeDeviceNotFound
	case errors.Is(err, pushnotifier.ErrNotAuthenticated):
		status, code = http.StatusServiceUnavailable, model.CodeNotAuthenticated
	case errors.Is(err, pushnotifier.ErrWrongCredentials):
		status, code = http.StatusBadGateway, model.CodeWrongCredentials
	case errors.Is(err, pushnotifier.ErrUnauthorized):
		status, code = http.StatusBadGateway, model.CodeUnauthorized
	case errors.Is(err, pushnotifier.ErrBadRequest):
		status, code = http.StatusBadRequest, model.CodeBadRequest
	case errors.Is(err, pushnotifier.ErrDeviceNotFound):
		status, code = http.StatusNotFound, model.CodeDeviceNotFound
	case errors.Is(err, pushnotifier.ErrTransport), errors.Is(err, pushnotifier.ErrUnexpectedStatus):
		status, code = http.StatusBadGateway, model.CodeUpstream
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "status", status, "err", err)
	}
	return c.Status(status).JSON(model.ErrorWithCode(code, err.Error()))
}

func parseKind(value string) (model.NoticeKind, bool) {
	switch strings.ToLower(value) {
	case "text":
		return model.NoticeText, true
	case "url":
		return model.NoticeURL, true
	case "notification":
		return model.NoticeNotification, true
	}
	return "", false
}

func parseLogFilter(c *fiber.Ctx) model.NoticeLogFilter {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize", "10"))
	begin, end := parseTimeRange(c)
	return model.NoticeLogFilter{
		DeviceID:  c.Query("deviceId"),
		BatchID:   c.Query("batchId"),
		Kind:      c.Query("kind"),
		Status:    c.Query("status"),
		BeginTime: begin,
		EndTime:   end,
		Page:      page,
		PageSize:  pageSize,
	}
}

func parseTimeRange(c *fiber.Ctx) (*time.Time, *time.Time) {
	begin := parseTime(c.Query("beginTime"))
	end := parseTime(c.Query("endTime"))
	return begin, end
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	if s.authSvc == nil || !s.authSvc.Enabled() {
		return c.Next()
	}
	token := extractBearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return c.Status(http.StatusUnauthorized).JSON(model.Error("not logged in"))
	}
	claims, err := s.authSvc.Validate(token)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(model.Error("session expired"))
	}
	c.Locals("username", claims.Username)
	return c.Next()
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
