// Package config reads server configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all configuration for the server.
type Config struct {
	Port           int
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseURL    string // file path for sqlite, DSN for postgres
	LogLevel       string
	Environment    string

	DueCheckCron    string
	DueCheckEnabled bool

	TelegramToken  string
	TelegramChatID int64

	DispatchAttempts uint

	EvidenceMaxDimension int
	EvidenceJPEGQuality  int
	EvidenceCacheSize    int

	CORSOrigins []string
}

// TelegramEnabled reports whether submissions and reminders go to Telegram.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// Load reads a .env file if present, then the process environment. Existing
// environment variables win over .env entries.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset keys.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	var err error

	if cfg.Port, err = intVar(getenv, "PORT", 8080); err != nil {
		return nil, err
	}

	cfg.DatabaseDriver = strings.ToLower(stringVar(getenv, "DATABASE_DRIVER", "sqlite"))
	switch cfg.DatabaseDriver {
	case "sqlite":
		cfg.DatabaseURL = stringVar(getenv, "DATABASE_URL", "timesheets.db")
	case "postgres":
		cfg.DatabaseURL = getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	default:
		return nil, fmt.Errorf("invalid DATABASE_DRIVER %q: want sqlite or postgres", cfg.DatabaseDriver)
	}

	cfg.LogLevel = strings.ToLower(stringVar(getenv, "LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(stringVar(getenv, "ENVIRONMENT", "development"))

	cfg.DueCheckCron = stringVar(getenv, "DUE_CHECK_CRON", "0 */12 * * *")
	if _, err := cron.ParseStandard(cfg.DueCheckCron); err != nil {
		return nil, fmt.Errorf("invalid DUE_CHECK_CRON %q: %w", cfg.DueCheckCron, err)
	}
	if cfg.DueCheckEnabled, err = boolVar(getenv, "DUE_CHECK_ENABLED", true); err != nil {
		return nil, err
	}

	cfg.TelegramToken = getenv("TELEGRAM_TOKEN")
	if raw := getenv("TELEGRAM_CHAT_ID"); raw != "" {
		if cfg.TelegramChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}

	attempts, err := intVar(getenv, "DISPATCH_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	if attempts < 1 {
		return nil, fmt.Errorf("DISPATCH_ATTEMPTS must be at least 1, got %d", attempts)
	}
	cfg.DispatchAttempts = uint(attempts)

	if cfg.EvidenceMaxDimension, err = intVar(getenv, "EVIDENCE_MAX_DIMENSION", 1024); err != nil {
		return nil, err
	}
	if cfg.EvidenceJPEGQuality, err = intVar(getenv, "EVIDENCE_JPEG_QUALITY", 60); err != nil {
		return nil, err
	}
	if cfg.EvidenceCacheSize, err = intVar(getenv, "EVIDENCE_CACHE_SIZE", 256); err != nil {
		return nil, err
	}

	cfg.CORSOrigins = []string{"*"}
	if raw := getenv("CORS_ORIGINS"); raw != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg, nil
}

func stringVar(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func intVar(getenv func(string) string, key string, def int) (int, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func boolVar(getenv func(string) string, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
