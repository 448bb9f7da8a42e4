// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr string

	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AdminKeyHash is the hex sha256 of the admin API key. The key itself
	// is never configured server-side.
	AdminKeyHash string

	PolicyBundlePath string

	MaxClockDrift time.Duration

	// RootCert optionally sets the root certificate fingerprint at
	// startup; persisted state takes precedence.
	RootCert string

	RateLimit  int
	RateWindow time.Duration
}

func FromEnv() (Config, error) {
	cfg := Config{
		ListenAddr:       envOr("ATTESTD_LISTEN_ADDR", ":8080"),
		PostgresDSN:      os.Getenv("ATTESTD_POSTGRES_DSN"),
		RedisAddr:        os.Getenv("ATTESTD_REDIS_ADDR"),
		RedisPassword:    os.Getenv("ATTESTD_REDIS_PASSWORD"),
		AdminKeyHash:     strings.ToLower(strings.TrimSpace(os.Getenv("ATTESTD_ADMIN_KEY_HASH"))),
		PolicyBundlePath: os.Getenv("ATTESTD_POLICY_BUNDLE"),
		RootCert:         strings.TrimSpace(os.Getenv("ATTESTD_ROOT_CERT")),
		MaxClockDrift:    time.Hour,
		RateLimit:        120,
		RateWindow:       time.Minute,
	}

	if v := os.Getenv("ATTESTD_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("ATTESTD_REDIS_DB: %w", err)
		}
		cfg.RedisDB = db
	}
	if v := os.Getenv("ATTESTD_MAX_CLOCK_DRIFT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("ATTESTD_MAX_CLOCK_DRIFT: invalid duration %q", v)
		}
		cfg.MaxClockDrift = d
	}
	if v := os.Getenv("ATTESTD_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("ATTESTD_RATE_LIMIT: invalid count %q", v)
		}
		cfg.RateLimit = n
	}
	if v := os.Getenv("ATTESTD_RATE_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("ATTESTD_RATE_WINDOW: invalid duration %q", v)
		}
		cfg.RateWindow = d
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
