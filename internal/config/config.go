package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName       = "TallyVault"
	defaultAppEnv        = "development"
	defaultPort          = "8080"
	defaultLogLevel      = "info"
	defaultBackend       = BackendRedis
	defaultSnapshotKey   = "tallyvault:snapshot"
	defaultPollInterval  = 4 * time.Second
	defaultCacheTTL      = 5 * time.Second
	defaultShutdownDelay = 10 * time.Second
	defaultIdemTTL       = 24 * time.Hour
)

// Snapshot backend selectors.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	Backend        string
	SnapshotKey    string
	RedisURL       string
	DatabaseURL    string
	PollInterval   time.Duration
	CacheTTL       time.Duration
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		Backend:        strings.ToLower(getEnv("SNAPSHOT_BACKEND", defaultBackend)),
		SnapshotKey:    getEnv("SNAPSHOT_KEY", defaultSnapshotKey),
		RedisURL:       os.Getenv("REDIS_URL"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		PollInterval:   defaultPollInterval,
		CacheTTL:       defaultCacheTTL,
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdemTTL,
	}

	var err error
	if cfg.PollInterval, err = durationEnv("POLL_INTERVAL", "POLL_INTERVAL_SECONDS", cfg.PollInterval); err != nil {
		return Config{}, err
	}
	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", "CACHE_TTL_SECONDS", cfg.CacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", "SHUTDOWN_TIMEOUT_SECONDS", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", "IDEMPOTENCY_TTL_SECONDS", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}

	switch cfg.Backend {
	case BackendRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when SNAPSHOT_BACKEND=redis")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when SNAPSHOT_BACKEND=postgres")
		}
	case BackendMemory:
		// Dev/test only; state is lost on restart.
	default:
		return Config{}, fmt.Errorf("unknown SNAPSHOT_BACKEND %q", cfg.Backend)
	}

	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func durationEnv(durVar, secondsVar string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsVar, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durVar, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
