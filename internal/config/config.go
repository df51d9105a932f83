// Package config loads server settings from the environment, reading a
// local .env file first when one exists.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zone database

	"github.com/joho/godotenv"
)

// Storage backends, in selection order.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

type Config struct {
	// HTTP
	Port            string
	CORSAllowOrigin string
	APIKey          string
	ShutdownTimeout time.Duration

	// Storage
	DatabaseURL string
	DBMaxConns  int
	SQLitePath  string
	RedisURL    string
	CacheTTL    time.Duration

	// Images
	UploadDir      string
	MaxUploadBytes int64

	// Presentation
	Timezone string
	LogLevel string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            envStr("PORT", "8080"),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),
		APIKey:          envStr("API_KEY", ""),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 5*time.Second),

		DatabaseURL: envStr("DATABASE_URL", ""),
		DBMaxConns:  envInt("DB_MAX_CONNS", 10),
		SQLitePath:  envStr("SQLITE_PATH", ""),
		RedisURL:    envStr("REDIS_URL", ""),
		CacheTTL:    envDuration("CACHE_TTL", 30*time.Second),

		UploadDir:      envStr("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 10<<20)),

		Timezone: envStr("TIMEZONE", "UTC"),
		LogLevel: envStr("LOG_LEVEL", "info"),
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []string

	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("PORT must be numeric, got %q", c.Port))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, "CACHE_TTL must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, "MAX_UPLOAD_BYTES must be positive")
	}
	if c.DBMaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("TIMEZONE %q: %v", c.Timezone, err))
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL %q is not debug, info, warn or error", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Backend names the storage backend the settings select.
func (c *Config) Backend() string {
	switch {
	case c.DatabaseURL != "":
		return BackendPostgres
	case c.SQLitePath != "":
		return BackendSQLite
	default:
		return BackendMemory
	}
}

// Location returns the zone used for date windows and exports.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Level returns the slog level for LOG_LEVEL, defaulting to info.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go durations ("45s") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
