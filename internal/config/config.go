package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreDatabase = "database"
)

type Config struct {
	Env           string
	HTTPPort      string
	PublicBaseURL string
	LogLevel      string

	// APISecret gates token issuance only. Checkpoint traffic is
	// deliberately ungated so links work from a plain browser.
	APISecret string

	// VerifyWindow bounds both session lifetime and handshake freshness.
	VerifyWindow time.Duration

	Checkpoint1URL string
	Checkpoint2URL string

	DiscordWebhookURL string
	DiscordInviteURL  string
	ServerName        string

	SessionStore string
	DatabaseURL  string
	RedisAddr    string
	RedisPrefix  string

	IssueRateLimitPerMin int
	APIRateLimitPerMin   int
	CORSAllowedOrigins   []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		PublicBaseURL:        strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		APISecret:            strings.TrimSpace(os.Getenv("API_SECRET")),
		Checkpoint1URL:       os.Getenv("CHECKPOINT_1_URL"),
		Checkpoint2URL:       os.Getenv("CHECKPOINT_2_URL"),
		DiscordWebhookURL:    os.Getenv("DISCORD_WEBHOOK_URL"),
		DiscordInviteURL:     os.Getenv("DISCORD_INVITE_URL"),
		ServerName:           getEnv("SERVER_NAME", "Verification Gateway"),
		SessionStore:         strings.ToLower(getEnv("SESSION_STORE", StoreMemory)),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPrefix:          getEnv("REDIS_PREFIX", "verifygw"),
		IssueRateLimitPerMin: getEnvInt("ISSUE_RATE_LIMIT_PER_MIN", 30),
		APIRateLimitPerMin:   getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		CORSAllowedOrigins:   splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}

	window, err := time.ParseDuration(getEnv("VERIFY_WINDOW", "30m"))
	if err != nil {
		return nil, fmt.Errorf("parse VERIFY_WINDOW: %w", err)
	}
	cfg.VerifyWindow = window

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.APISecret == "" {
		errs = append(errs, "API_SECRET is required")
	}
	if c.Checkpoint1URL == "" {
		errs = append(errs, "CHECKPOINT_1_URL is required")
	}
	if c.Checkpoint2URL == "" {
		errs = append(errs, "CHECKPOINT_2_URL is required")
	}
	if c.VerifyWindow <= 0 || c.VerifyWindow > 24*time.Hour {
		errs = append(errs, "VERIFY_WINDOW must be between 1s and 24h")
	}
	switch c.SessionStore {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, "REDIS_ADDR is required when SESSION_STORE=redis")
		}
	case StoreDatabase:
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when SESSION_STORE=database")
		}
	default:
		errs = append(errs, "SESSION_STORE must be one of memory, redis, database")
	}
	if c.IssueRateLimitPerMin <= 0 {
		errs = append(errs, "ISSUE_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
