// Package config loads service configuration from the environment.
// Every knob has a TASKTRAIL_ prefixed variable and a sensible default;
// Validate catches the two settings that cannot be defaulted.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr        string
	DatabaseDSN string

	JWTSecret string
	TokenTTL  time.Duration

	RateLimitPerSecond int
	RateLimitBurst     int
	MaxBodyBytes       int64
	AllowedOrigins     []string

	GeminiAPIKey  string
	GeminiBaseURL string

	MigrationsDir string
	SeedsDir      string

	LogLevel string
}

const defaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent"

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Addr:               envOr("TASKTRAIL_ADDR", ":8080"),
		DatabaseDSN:        os.Getenv("TASKTRAIL_PG_DSN"),
		JWTSecret:          os.Getenv("TASKTRAIL_JWT_SECRET"),
		TokenTTL:           envDuration("TASKTRAIL_TOKEN_TTL", 24*time.Hour),
		RateLimitPerSecond: envInt("TASKTRAIL_RATE_LIMIT_RPS", 20),
		RateLimitBurst:     envInt("TASKTRAIL_RATE_LIMIT_BURST", 40),
		MaxBodyBytes:       int64(envInt("TASKTRAIL_MAX_BODY_BYTES", 1<<20)),
		AllowedOrigins:     envList("TASKTRAIL_ALLOWED_ORIGINS", []string{"http://localhost:4200"}),
		GeminiAPIKey:       os.Getenv("TASKTRAIL_GEMINI_API_KEY"),
		GeminiBaseURL:      envOr("TASKTRAIL_GEMINI_URL", defaultGeminiURL),
		MigrationsDir:      envOr("TASKTRAIL_MIGRATIONS_DIR", "ops/migrations/sql"),
		SeedsDir:           envOr("TASKTRAIL_SEEDS_DIR", "ops/migrations/seeds"),
		LogLevel:           envOr("TASKTRAIL_LOG_LEVEL", "info"),
	}
}

// Validate reports configuration the service cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: TASKTRAIL_JWT_SECRET is required")
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return errors.New("config: TASKTRAIL_PG_DSN is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: token ttl must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
