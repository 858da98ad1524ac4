// Package config loads service settings from GYM_* environment variables.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvProduction enables the strict checks in Validate.
const EnvProduction = "production"

// Config holds all configuration for the service.
type Config struct {
	Env             string        `mapstructure:"GYM_ENV"`
	Addr            string        `mapstructure:"GYM_ADDR"`
	DBPath          string        `mapstructure:"GYM_DB_PATH"`
	LogLevel        string        `mapstructure:"GYM_LOG_LEVEL"`
	GraceDays       int           `mapstructure:"GYM_GRACE_DAYS"`
	RenewalSchedule string        `mapstructure:"GYM_RENEWAL_SCHEDULE"`
	OutboxInterval  time.Duration `mapstructure:"GYM_OUTBOX_INTERVAL"`
	ResendKey       string        `mapstructure:"GYM_RESEND_KEY"`
	ResendFrom      string        `mapstructure:"GYM_RESEND_FROM"`
	ReplyTo         string        `mapstructure:"GYM_REPLY_TO"`
	CSRFKeyHex      string        `mapstructure:"GYM_CSRF_KEY"`
	SlowQueryMs     int           `mapstructure:"GYM_SLOW_QUERY_MS"`
	SlowRequestMs   int           `mapstructure:"GYM_SLOW_REQUEST_MS"`
	RateLimit       int           `mapstructure:"GYM_RATE_LIMIT"`
}

var keys = []string{
	"GYM_ENV", "GYM_ADDR", "GYM_DB_PATH", "GYM_LOG_LEVEL", "GYM_GRACE_DAYS",
	"GYM_RENEWAL_SCHEDULE", "GYM_OUTBOX_INTERVAL", "GYM_RESEND_KEY",
	"GYM_RESEND_FROM", "GYM_REPLY_TO", "GYM_CSRF_KEY", "GYM_SLOW_QUERY_MS",
	"GYM_SLOW_REQUEST_MS", "GYM_RATE_LIMIT",
}

// LoadConfig reads configuration from environment variables and validates it.
func LoadConfig() (*Config, error) {
	viper.SetDefault("GYM_ENV", "development")
	viper.SetDefault("GYM_ADDR", ":8080")
	viper.SetDefault("GYM_DB_PATH", "gymdesk.db")
	viper.SetDefault("GYM_LOG_LEVEL", "info")
	viper.SetDefault("GYM_GRACE_DAYS", 7)
	viper.SetDefault("GYM_RENEWAL_SCHEDULE", "0 2 * * *") // 02:00 daily
	viper.SetDefault("GYM_OUTBOX_INTERVAL", "30s")
	viper.SetDefault("GYM_RESEND_FROM", "Gym Desk <billing@localhost>")
	viper.SetDefault("GYM_SLOW_QUERY_MS", 50)
	viper.SetDefault("GYM_SLOW_REQUEST_MS", 500)
	viper.SetDefault("GYM_RATE_LIMIT", 10)
	viper.AutomaticEnv()

	// Bind explicitly so keys without defaults appear in Unmarshal.
	for _, k := range keys {
		_ = viper.BindEnv(k)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and production requirements.
// PRE: cfg has been decoded
// POST: Returns the first problem found, naming the offending variable
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("GYM_ADDR must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("GYM_DB_PATH must not be empty")
	}
	if c.GraceDays < 0 {
		return fmt.Errorf("GYM_GRACE_DAYS must be >= 0, got %d", c.GraceDays)
	}
	if _, err := cron.ParseStandard(c.RenewalSchedule); err != nil {
		return fmt.Errorf("GYM_RENEWAL_SCHEDULE %q: %w", c.RenewalSchedule, err)
	}
	if c.OutboxInterval < time.Second {
		return fmt.Errorf("GYM_OUTBOX_INTERVAL must be at least 1s, got %s", c.OutboxInterval)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("GYM_RATE_LIMIT must be > 0, got %d", c.RateLimit)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.CSRFKeyHex != "" {
		if _, err := decodeKey(c.CSRFKeyHex); err != nil {
			return err
		}
	} else if c.IsProduction() {
		return errors.New("GYM_CSRF_KEY is required in production")
	}
	return nil
}

// IsProduction reports whether GYM_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// SlogLevel maps GYM_LOG_LEVEL onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

// SlowQuery is the slow query threshold.
func (c *Config) SlowQuery() time.Duration {
	return time.Duration(c.SlowQueryMs) * time.Millisecond
}

// SlowRequest is the slow request threshold.
func (c *Config) SlowRequest() time.Duration {
	return time.Duration(c.SlowRequestMs) * time.Millisecond
}

// OutboxSchedule is the cron spec for the outbox processor.
func (c *Config) OutboxSchedule() string {
	return "@every " + c.OutboxInterval.String()
}

// CSRFKey returns the 32-byte CSRF secret. Outside production a random key is
// generated when none is configured, so tokens do not survive a restart.
func (c *Config) CSRFKey() ([]byte, error) {
	if c.CSRFKeyHex != "" {
		return decodeKey(c.CSRFKeyHex)
	}
	if c.IsProduction() {
		return nil, errors.New("GYM_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate CSRF key: %w", err)
	}
	slog.Warn("csrf_key_random", "hint", "set GYM_CSRF_KEY to keep tokens valid across restarts")
	return key, nil
}

func decodeKey(keyHex string) ([]byte, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != 32 {
		return nil, errors.New("GYM_CSRF_KEY must be 64 hex characters (32 bytes)")
	}
	return key, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("GYM_LOG_LEVEL %q is not one of debug, info, warn, error", s)
}
