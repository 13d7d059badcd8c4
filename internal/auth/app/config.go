package app

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer   string // Required: issuer claim for tokens
	Audience string // Required: audience claim for tokens

	SigningKey         string // Required: current HS512 signing key (min 32 bytes)
	PreviousSigningKey string // Optional: previous key still accepted for verification

	AccessTokenTTL    time.Duration // Optional: access token lifetime (default: 30m)
	RefreshTokenTTL   time.Duration // Optional: refresh token lifetime (default: 720h / 30 days)
	MFATokenTTL       time.Duration // Optional: two-factor challenge token lifetime (default: 5m)
	SweepInterval     time.Duration // Optional: stale token sweep interval (default: 5m)
	CacheSlidingTTL   time.Duration // Optional: fingerprint cache sliding window (default: 24h)
	RoutePrefix       string        // Optional: mount point for token endpoints (default: /token)
	DatabaseFile      string        // Optional: path to SQLite database file (default: ./tokend.db)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:             getEnvOrDefault("AUTH_ISSUER", "tokend"),
		Audience:           getEnvOrDefault("AUTH_AUDIENCE", "tokend"),
		SigningKey:         os.Getenv("AUTH_SIGNING_KEY"),
		PreviousSigningKey: os.Getenv("AUTH_PREVIOUS_SIGNING_KEY"), // Optional: rotation window

		AccessTokenTTL:  getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTokenTTL: getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		MFATokenTTL:     getEnvDurationOrDefault("AUTH_MFA_TOKEN_TTL", 5*time.Minute),
		SweepInterval:   getEnvDurationOrDefault("AUTH_SWEEP_INTERVAL", 5*time.Minute),
		CacheSlidingTTL: getEnvDurationOrDefault("AUTH_CACHE_SLIDING_TTL", 24*time.Hour),
		RoutePrefix:     getEnvOrDefault("AUTH_ROUTE_PREFIX", "/token"),
		DatabaseFile:    getEnvOrDefault("AUTH_DATABASE_FILE", "tokend.db"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	return cfg
}

// Validate rejects configurations the codec would refuse anyway, so the
// failure happens at startup with a readable message.
func (cfg Config) Validate() error {
	if cfg.SigningKey == "" {
		return errors.New("AUTH_SIGNING_KEY is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
