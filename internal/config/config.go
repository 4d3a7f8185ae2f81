// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package config loads and validates service configuration. Values come
// from three layers, later layers overriding earlier ones: built-in
// defaults, an optional YAML file, and command-line flags. Secrets
// (database URL, SMTP password) may also come from the environment.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the root configuration for the gatehouse service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Mail     MailConfig     `koanf:"mail"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig holds addresses the service binds or advertises.
type ServerConfig struct {
	// MetricsAddr is the listen address for metrics and health probes.
	// Empty disables the observability server.
	MetricsAddr string `koanf:"metrics_addr"`
	// BaseURL is the public address used when building links sent to
	// account holders.
	BaseURL string `koanf:"base_url"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is the connection string. The GATEHOUSE_DATABASE_URL or
	// DATABASE_URL environment variables override it.
	URL string `koanf:"url"`
}

// AuthConfig holds tuning knobs for the authentication flows.
type AuthConfig struct {
	// RateLimit is the number of failed logins allowed per client
	// identity inside Window.
	RateLimit int           `koanf:"rate_limit"`
	Window    time.Duration `koanf:"window"`
	// SessionTTL caps short-lived sessions; RememberTTL applies when
	// the caller asks to stay signed in.
	SessionTTL  time.Duration `koanf:"session_ttl"`
	RememberTTL time.Duration `koanf:"remember_ttl"`
	// ResetTokenTTL bounds the life of password reset tokens.
	ResetTokenTTL time.Duration `koanf:"reset_token_ttl"`
	// SweepInterval is how often expired sessions and reset tokens are
	// removed.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// MailConfig holds SMTP delivery settings for reset notifications.
type MailConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	// Password may come from the GATEHOUSE_MAIL_PASSWORD environment
	// variable instead of the file.
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json or text.
	Format string `koanf:"format"`
}

// Default values applied before any file or flag overrides.
const (
	DefaultMetricsAddr   = "127.0.0.1:9100"
	DefaultRateLimit     = 5
	DefaultWindow        = 300 * time.Second
	DefaultSessionTTL    = 24 * time.Hour
	DefaultRememberTTL   = 30 * 24 * time.Hour
	DefaultResetTokenTTL = time.Hour
	DefaultSweepInterval = time.Hour
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultMailPort      = 587
)

// Defaults returns a Config populated with built-in defaults.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			MetricsAddr: DefaultMetricsAddr,
			BaseURL:     "http://localhost:8080",
		},
		Auth: AuthConfig{
			RateLimit:     DefaultRateLimit,
			Window:        DefaultWindow,
			SessionTTL:    DefaultSessionTTL,
			RememberTTL:   DefaultRememberTTL,
			ResetTokenTTL: DefaultResetTokenTTL,
			SweepInterval: DefaultSweepInterval,
		},
		Mail: MailConfig{
			Port: DefaultMailPort,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, and an
// optional flag set, then applies environment secrets and validates.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Defaults()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays secrets taken from the environment. Environment
// values win over file and flag values so deployments never need
// credentials on disk.
func applyEnv(cfg *Config) {
	if v := os.Getenv("GATEHOUSE_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	} else if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("GATEHOUSE_MAIL_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}
}

// Validate checks cross-field constraints not expressible in types.
func (c *Config) Validate() error {
	if c.Auth.RateLimit <= 0 {
		return oops.Code("CONFIG_INVALID").With("field", "auth.rate_limit").
			Errorf("rate limit must be positive, got %d", c.Auth.RateLimit)
	}
	if c.Auth.Window <= 0 {
		return oops.Code("CONFIG_INVALID").With("field", "auth.window").
			Errorf("window must be positive, got %s", c.Auth.Window)
	}
	if c.Auth.SessionTTL <= 0 || c.Auth.RememberTTL <= 0 {
		return oops.Code("CONFIG_INVALID").With("field", "auth.session_ttl").
			Errorf("session TTLs must be positive")
	}
	if c.Auth.RememberTTL < c.Auth.SessionTTL {
		return oops.Code("CONFIG_INVALID").With("field", "auth.remember_ttl").
			Errorf("remember TTL %s must not be shorter than session TTL %s",
				c.Auth.RememberTTL, c.Auth.SessionTTL)
	}
	if c.Auth.ResetTokenTTL <= 0 {
		return oops.Code("CONFIG_INVALID").With("field", "auth.reset_token_ttl").
			Errorf("reset token TTL must be positive, got %s", c.Auth.ResetTokenTTL)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").With("field", "log.format").
			Errorf("log format must be json or text, got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").With("field", "log.level").
			Errorf("log level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}
