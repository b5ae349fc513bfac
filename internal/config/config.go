// Package config loads engine configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	// HTTP
	Port string

	// Storage
	DatabaseURL string // empty → in-memory store
	RedisURL    string // empty → no cache layer
	CacheTTL    time.Duration

	// Scheduler trigger
	CronSecret string // empty → trigger endpoint is unauthenticated

	// Engine parameters
	InitialCapital decimal.Decimal
	RetentionDays  int
}

// Load reads configuration from environment variables (.env file honored,
// but not required). Validation errors are collected and reported together.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		CronSecret:     os.Getenv("CRON_SECRET"),
		InitialCapital: decimal.NewFromInt(100000),
		RetentionDays:  30,
		CacheTTL:       30 * time.Second,
	}

	var errs []string

	if raw := os.Getenv("INITIAL_CAPITAL"); raw != "" {
		capital, err := decimal.NewFromString(raw)
		if err != nil || capital.LessThanOrEqual(decimal.Zero) {
			errs = append(errs, fmt.Sprintf("INITIAL_CAPITAL must be a positive decimal, got %q", raw))
		} else {
			cfg.InitialCapital = capital
		}
	}

	if raw := os.Getenv("RETENTION_DAYS"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			errs = append(errs, fmt.Sprintf("RETENTION_DAYS must be a positive integer, got %q", raw))
		} else {
			cfg.RetentionDays = days
		}
	}

	if raw := os.Getenv("CACHE_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			errs = append(errs, fmt.Sprintf("CACHE_TTL must be a positive duration, got %q", raw))
		} else {
			cfg.CacheTTL = ttl
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// Retention converts the configured retention horizon to a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
