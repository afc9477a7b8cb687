// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"meetwith/internal/apperr"
)

// Defaults.
const (
	DefaultRegistryDSN    = "registry.json"
	DefaultNotifyStream   = "calendar:updates"
	DefaultRefetchMargin  = time.Hour
	DefaultBreakerTimeout = 30 * time.Second
)

type Config struct {
	LogLevel    string
	RegistryDSN string

	GoogleClientID     string
	GoogleClientSecret string

	MicrosoftClientID     string
	MicrosoftClientSecret string
	MicrosoftTenantID     string
	MicrosoftRedirectURL  string

	RedisURL     string
	NotifyStream string

	RefetchMargin  time.Duration
	BreakerTimeout time.Duration
}

// Load reads the configuration from the process environment. Call
// godotenv.Load first to pick up a .env file.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		LogLevel:              get("LOG_LEVEL", "info"),
		RegistryDSN:           get("REGISTRY_DSN", DefaultRegistryDSN),
		GoogleClientID:        get("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    get("GOOGLE_CLIENT_SECRET", ""),
		MicrosoftClientID:     get("MICROSOFT_CLIENT_ID", ""),
		MicrosoftClientSecret: get("MICROSOFT_CLIENT_SECRET", ""),
		MicrosoftTenantID:     get("MICROSOFT_TENANT_ID", "common"),
		MicrosoftRedirectURL:  get("MICROSOFT_REDIRECT_URL", "http://localhost"),
		RedisURL:              get("REDIS_URL", ""),
		NotifyStream:          get("NOTIFY_STREAM", DefaultNotifyStream),
	}

	var err error
	if cfg.RefetchMargin, err = duration(get("REFETCH_MARGIN", ""), DefaultRefetchMargin); err != nil {
		return nil, apperr.Config(fmt.Sprintf("invalid REFETCH_MARGIN: %v", err))
	}
	if cfg.BreakerTimeout, err = duration(get("BREAKER_TIMEOUT", ""), DefaultBreakerTimeout); err != nil {
		return nil, apperr.Config(fmt.Sprintf("invalid BREAKER_TIMEOUT: %v", err))
	}
	return cfg, nil
}

// duration parses v, falling back when it is empty. Zero and negative
// durations are rejected.
func duration(v string, fallback time.Duration) (time.Duration, error) {
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", v)
	}
	return d, nil
}
