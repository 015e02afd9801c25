package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration knobs for the proxy.
type Config struct {
	HTTP struct {
		Addr         string        `mapstructure:"addr"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"http"`
	PushNotifier struct {
		BaseURL        string        `mapstructure:"base_url"`
		Username       string        `mapstructure:"username"`
		Password       string        `mapstructure:"password"`
		APIKey         string        `mapstructure:"api_key"`
		PackageName    string        `mapstructure:"package_name"`
		RequestTimeout time.Duration `mapstructure:"request_timeout"`
		RefreshSpec    string        `mapstructure:"refresh_spec"`
		RefreshMargin  time.Duration `mapstructure:"refresh_margin"`
		LoginOnStart   bool          `mapstructure:"login_on_start"`
	} `mapstructure:"pushnotifier"`
	Storage struct {
		Path          string `mapstructure:"path"`
		EncryptionKey string `mapstructure:"encryption_key"`
	} `mapstructure:"storage"`
	Cache struct {
		Enabled   bool          `mapstructure:"enabled"`
		Addr      string        `mapstructure:"addr"`
		Password  string        `mapstructure:"password"`
		DB        int           `mapstructure:"db"`
		DeviceTTL time.Duration `mapstructure:"device_ttl"`
	} `mapstructure:"cache"`
	Auth struct {
		Enabled   bool   `mapstructure:"enabled"`
		Username  string `mapstructure:"username"`
		Password  string `mapstructure:"password"`
		JWTSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"auth"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// Load reads the configuration from disk/environment using Viper.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("pushnotifier_proxy")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		// SetConfigFile reports a missing file as *fs.PathError, SetConfigName as ConfigFileNotFoundError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the proxy cannot start without.
func (c *Config) Validate() error {
	pn := c.PushNotifier
	switch {
	case strings.TrimSpace(pn.Username) == "":
		return errors.New("config: pushnotifier.username must be set")
	case pn.Password == "":
		return errors.New("config: pushnotifier.password must be set")
	case strings.TrimSpace(pn.APIKey) == "":
		return errors.New("config: pushnotifier.api_key must be set")
	case strings.TrimSpace(pn.PackageName) == "":
		return errors.New("config: pushnotifier.package_name must be set")
	}
	if key := c.Storage.EncryptionKey; key != "" {
		if l := len(key); l != 16 && l != 24 && l != 32 {
			return errors.New("config: storage.encryption_key must be 16, 24 or 32 characters")
		}
	}
	if c.Cache.Enabled && strings.TrimSpace(c.Cache.Addr) == "" {
		return errors.New("config: cache.addr must be set when the cache is enabled")
	}
	return nil
}

// LogLevel maps log.level to a slog level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8090")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")

	v.SetDefault("pushnotifier.base_url", "https://api.pushnotifier.de")
	v.SetDefault("pushnotifier.request_timeout", "10s")
	v.SetDefault("pushnotifier.refresh_spec", "@every 5m")
	v.SetDefault("pushnotifier.refresh_margin", "30m")
	v.SetDefault("pushnotifier.login_on_start", true)

	v.SetDefault("storage.path", "./data/pushnotifier.db")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "127.0.0.1:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.device_ttl", "5m")

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.username", "admin")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// bindEnv registers keys without defaults so AutomaticEnv picks them up on Unmarshal.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"pushnotifier.username",
		"pushnotifier.password",
		"pushnotifier.api_key",
		"pushnotifier.package_name",
		"storage.encryption_key",
		"cache.password",
		"auth.password",
		"auth.jwt_secret",
	} {
		_ = v.BindEnv(key)
	}
}
