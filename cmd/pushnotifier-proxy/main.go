package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/notifier-labs/pushnotifier-proxy/internal/cache"
	"github.com/notifier-labs/pushnotifier-proxy/internal/config"
	"github.com/notifier-labs/pushnotifier-proxy/internal/crypto"
	"github.com/notifier-labs/pushnotifier-proxy/internal/pushnotifier"
	"github.com/notifier-labs/pushnotifier-proxy/internal/server"
	"github.com/notifier-labs/pushnotifier-proxy/internal/service"
	"github.com/notifier-labs/pushnotifier-proxy/internal/storage/bolt"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	client, err := pushnotifier.New(pushnotifier.Credentials{
		Username:    cfg.PushNotifier.Username,
		Password:    cfg.PushNotifier.Password,
		APIKey:      cfg.PushNotifier.APIKey,
		PackageName: cfg.PushNotifier.PackageName,
	},
		pushnotifier.WithBaseURL(cfg.PushNotifier.BaseURL),
		pushnotifier.WithTimeout(cfg.PushNotifier.RequestTimeout),
		pushnotifier.WithLogger(logger),
	)
	if err != nil {
		logger.Error("init pushnotifier client", "err", err)
		os.Exit(1)
	}

	var storeOpts []bolt.Option
	if key := cfg.Storage.EncryptionKey; key != "" {
		sealer, err := crypto.NewSealer([]byte(key))
		if err != nil {
			logger.Error("init sealer", "err", err)
			os.Exit(1)
		}
		storeOpts = append(storeOpts, bolt.WithSealer(sealer))
	}
	store, err := bolt.New(cfg.Storage.Path, storeOpts...)
	if err != nil {
		logger.Error("open store", "path", cfg.Storage.Path, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	var deviceCache cache.Client = cache.Nop{}
	if cfg.Cache.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rc, err := cache.NewRedisClient(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, device cache disabled", "addr", cfg.Cache.Addr, "err", err)
		} else {
			defer rc.Close()
			deviceCache = rc
		}
	}

	authSvc, err := service.NewAuthService(cfg)
	if err != nil {
		logger.Error("init auth", "err", err)
		os.Exit(1)
	}
	if authSvc.Enabled() && cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret not set, tokens are invalidated on restart")
	}
	sessionSvc := service.NewSessionService(client, cfg.PushNotifier.RefreshSpec, cfg.PushNotifier.RefreshMargin, logger)
	deviceSvc := service.NewDeviceService(client, store, deviceCache, cfg.Cache.DeviceTTL, logger)
	noticeSvc := service.NewNoticeService(client, store, deviceSvc, logger)
	logSvc := service.NewNoticeLogService(store, deviceSvc)

	if cfg.PushNotifier.LoginOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.PushNotifier.RequestTimeout)
		if err := sessionSvc.EnsureSession(ctx); err != nil {
			logger.Error("initial login failed, the keeper will retry", "err", err)
		}
		cancel()
	}
	if err := sessionSvc.Start(); err != nil {
		logger.Error("start session keeper", "err", err)
		os.Exit(1)
	}
	defer sessionSvc.Stop()

	srv := server.New(cfg, store, server.Services{
		Session: sessionSvc,
		Device:  deviceSvc,
		Notice:  noticeSvc,
		Log:     logSvc,
		Auth:    authSvc,
	}, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server stopped", "err", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	waitForSignal()
	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if strings.EqualFold(cfg.Log.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
