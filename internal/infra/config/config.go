package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const (
	defaultLogLevel             = "info"
	defaultEnvironment          = "development"
	defaultTransitionHour       = 19
	defaultCycleDuration        = 7
	defaultMarkerTTL            = 5 * time.Second
	defaultMarkerPollAttempts   = 5
	defaultMarkerPollDelay      = 200 * time.Millisecond
	defaultTransitionJobTimeout = 30 * time.Second
	defaultReconcileCronSpec    = "@every 10m"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string
	DatabaseURL     string
	AdminTelegramID int64
	LogLevel        string
	Environment     string

	RedisAddr     string // empty: in-process cache
	RedisPassword string
	RedisDB       int

	TransitionHour       int           // local hour at which cycles roll over
	DefaultCycleDuration int           // days, used when a region is created without one
	MarkerTTL            time.Duration // crash safety net for the in-transition marker
	MarkerPollAttempts   int           // reader waits for a held marker
	MarkerPollDelay      time.Duration
	TransitionJobTimeout time.Duration
	ReconcileCronSpec    string // cadence of the scheduling-gap sweep
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds the configuration from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (*AppConfig, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = get("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = get("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	adminIDStr := get("ADMIN_TELEGRAM_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
	}

	cfg.LogLevel = strings.ToLower(get("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	cfg.Environment = strings.ToLower(get("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = defaultEnvironment
	}

	cfg.RedisAddr = get("REDIS_ADDR")
	cfg.RedisPassword = get("REDIS_PASSWORD")
	if cfg.RedisDB, err = intVar(get, "REDIS_DB", 0); err != nil {
		return nil, err
	}

	if cfg.TransitionHour, err = intVar(get, "TRANSITION_HOUR", defaultTransitionHour); err != nil {
		return nil, err
	}
	if cfg.TransitionHour < 0 || cfg.TransitionHour > 23 {
		return nil, fmt.Errorf("invalid TRANSITION_HOUR: %d is not in 0..23", cfg.TransitionHour)
	}

	if cfg.DefaultCycleDuration, err = intVar(get, "DEFAULT_CYCLE_DURATION", defaultCycleDuration); err != nil {
		return nil, err
	}
	if cfg.DefaultCycleDuration < 1 || cfg.DefaultCycleDuration > 365 {
		return nil, fmt.Errorf("invalid DEFAULT_CYCLE_DURATION: %d is not in 1..365", cfg.DefaultCycleDuration)
	}

	if cfg.MarkerTTL, err = durationVar(get, "TRANSITION_MARKER_TTL", defaultMarkerTTL); err != nil {
		return nil, err
	}
	if cfg.MarkerPollAttempts, err = intVar(get, "MARKER_POLL_ATTEMPTS", defaultMarkerPollAttempts); err != nil {
		return nil, err
	}
	if cfg.MarkerPollAttempts < 0 {
		return nil, fmt.Errorf("invalid MARKER_POLL_ATTEMPTS: must not be negative")
	}
	if cfg.MarkerPollDelay, err = durationVar(get, "MARKER_POLL_DELAY", defaultMarkerPollDelay); err != nil {
		return nil, err
	}
	if cfg.TransitionJobTimeout, err = durationVar(get, "TRANSITION_JOB_TIMEOUT", defaultTransitionJobTimeout); err != nil {
		return nil, err
	}

	cfg.ReconcileCronSpec = get("RECONCILE_CRON_SPEC")
	if cfg.ReconcileCronSpec == "" {
		cfg.ReconcileCronSpec = defaultReconcileCronSpec
	}
	if _, err := cron.ParseStandard(cfg.ReconcileCronSpec); err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_CRON_SPEC %q: %w", cfg.ReconcileCronSpec, err)
	}

	return cfg, nil
}

func intVar(get func(string) string, key string, def int) (int, error) {
	raw := get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationVar(get func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := get(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return v, nil
}
