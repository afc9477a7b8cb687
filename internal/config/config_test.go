package config

import (
	"testing"
	"time"

	"meetwith/internal/apperr"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "info" || cfg.RegistryDSN != DefaultRegistryDSN || cfg.NotifyStream != DefaultNotifyStream {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RefetchMargin != time.Hour || cfg.BreakerTimeout != 30*time.Second {
		t.Errorf("durations = %v, %v", cfg.RefetchMargin, cfg.BreakerTimeout)
	}
	if cfg.MicrosoftTenantID != "common" {
		t.Errorf("tenant = %q", cfg.MicrosoftTenantID)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(env(map[string]string{
		"LOG_LEVEL":        "debug",
		"REGISTRY_DSN":     "sqlite:/tmp/r.db",
		"GOOGLE_CLIENT_ID": " id ",
		"REDIS_URL":        "redis://localhost:6379/0",
		"REFETCH_MARGIN":   "90m",
		"BREAKER_TIMEOUT":  "5s",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.RegistryDSN != "sqlite:/tmp/r.db" || cfg.GoogleClientID != "id" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RefetchMargin != 90*time.Minute || cfg.BreakerTimeout != 5*time.Second {
		t.Errorf("durations = %v, %v", cfg.RefetchMargin, cfg.BreakerTimeout)
	}
}

func TestLoadRejectsBadDurations(t *testing.T) {
	tests := map[string]map[string]string{
		"garbage margin":   {"REFETCH_MARGIN": "soon"},
		"zero margin":      {"REFETCH_MARGIN": "0s"},
		"negative breaker": {"BREAKER_TIMEOUT": "-1s"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := load(env(vars))
			if !apperr.Is(err, apperr.KindConfig) {
				t.Errorf("err = %v, want config error", err)
			}
		})
	}
}
