// Package config reads process settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DatabaseURL string
	SQLitePath  string

	ClerkSecretKey     string
	ClerkWebhookSecret string
	CatalogPath        string

	RedisURL                   string
	LeaderboardRefreshInterval time.Duration

	SupersedeActiveProgram bool

	FCMServiceAccountJSON string
	FCMCredentialsFile    string

	MetricsUser string
	MetricsPass string
	PprofSecret string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:                  withDefault(getenv("PORT"), "3333"),
		DatabaseURL:           getenv("DATABASE_URL"),
		SQLitePath:            getenv("SQLITE_PATH"),
		ClerkSecretKey:        getenv("CLERK_SECRET_KEY"),
		ClerkWebhookSecret:    getenv("CLERK_WEBHOOK_SECRET"),
		CatalogPath:           getenv("CATALOG_PATH"),
		RedisURL:              getenv("REDIS_URL"),
		FCMServiceAccountJSON: getenv("FCM_SERVICE_ACCOUNT_JSON"),
		FCMCredentialsFile:    getenv("FCM_CREDENTIALS_FILE"),
		MetricsUser:           getenv("METRICS_USER"),
		MetricsPass:           getenv("METRICS_PASS"),
		PprofSecret:           getenv("PPROF_SECRET"),
	}

	var err error
	if cfg.LeaderboardRefreshInterval, err = duration(getenv, "LEADERBOARD_REFRESH_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SupersedeActiveProgram, err = boolean(getenv, "SUPERSEDE_ACTIVE_PROGRAM", true); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = float(getenv, "RATE_LIMIT_RPS", 5); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = integer(getenv, "RATE_LIMIT_BURST", 30); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" && cfg.SQLitePath == "" {
		return nil, errors.New("either DATABASE_URL or SQLITE_PATH must be set")
	}
	if cfg.LeaderboardRefreshInterval <= 0 {
		return nil, errors.New("LEADERBOARD_REFRESH_INTERVAL must be positive")
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		return nil, errors.New("rate limit settings must be positive")
	}
	return cfg, nil
}

// UsePostgres reports whether DATABASE_URL selects the Postgres store.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func boolean(getenv func(string) string, key string, def bool) (bool, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func float(getenv func(string) string, key string, def float64) (float64, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func integer(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
