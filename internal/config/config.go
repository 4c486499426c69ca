package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	JWTExpiry   time.Duration
	LogLevel    string

	// Presence cadence. Staleness should cover a few missed heartbeats
	// so one dropped write does not flap an account offline.
	HeartbeatInterval     time.Duration
	PresenceMaxStaleness  time.Duration
	PresenceSweepInterval time.Duration

	// RequireFriendship gates message sending on an existing friendship
	// edge. Off by default: historically any two accounts could message
	// each other.
	RequireFriendship bool
}

func LoadConfig() (*Config, error) {
	expiry, err := parseDuration("JWT_EXPIRY", "24h")
	if err != nil {
		return nil, err
	}
	heartbeat, err := parseDuration("HEARTBEAT_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}
	staleness, err := parseDuration("PRESENCE_MAX_STALENESS", "90s")
	if err != nil {
		return nil, err
	}
	sweep, err := parseDuration("PRESENCE_SWEEP_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}
	requireFriendship, err := strconv.ParseBool(getEnv("REQUIRE_FRIENDSHIP", "false"))
	if err != nil {
		return nil, errors.New("invalid REQUIRE_FRIENDSHIP format")
	}

	cfg := &Config{
		ServerPort:            getEnv("SERVER_PORT", "8080"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisURL:              os.Getenv("REDIS_URL"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		JWTExpiry:             expiry,
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		HeartbeatInterval:     heartbeat,
		PresenceMaxStaleness:  staleness,
		PresenceSweepInterval: sweep,
		RequireFriendship:     requireFriendship,
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	value, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s format", key)
	}
	return value, nil
}
