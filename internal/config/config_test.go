package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"SAPTIVA_API_KEY", "SAPTIVA_BASE_URL", "TAVILY_API_KEY",
		"VECTOR_BACKEND", "MONGODB_URL", "ARTIFACTS_DIR", "ALETHEIA_MAX_WORKERS",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	if cfg.SaptivaBaseURL != "https://api.saptiva.com/v1" {
		t.Errorf("base URL = %q", cfg.SaptivaBaseURL)
	}
	if cfg.ConnectTimeout != 15*time.Second || cfg.ReadTimeout != 90*time.Second {
		t.Errorf("timeouts = %v / %v", cfg.ConnectTimeout, cfg.ReadTimeout)
	}
	if cfg.VectorBackend != "weaviate" || cfg.ArtifactsDir != "artifacts" {
		t.Errorf("backend = %q artifacts = %q", cfg.VectorBackend, cfg.ArtifactsDir)
	}
	if cfg.MaxWorkers != 5 || cfg.MaxSubQueries != 12 {
		t.Errorf("workers = %d subqueries = %d", cfg.MaxWorkers, cfg.MaxSubQueries)
	}
	if cfg.HasModelCredentials() || cfg.HasSearchCredentials() {
		t.Error("empty keys must not count as credentials")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SAPTIVA_API_KEY", "sk-real")
	t.Setenv("SAPTIVA_CONNECT_TIMEOUT", "5")
	t.Setenv("ALETHEIA_MAX_WORKERS", "9")

	cfg := FromEnv()
	if !cfg.HasModelCredentials() {
		t.Error("real key not recognised")
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("connect timeout = %v", cfg.ConnectTimeout)
	}
	if cfg.MaxWorkers != 9 {
		t.Errorf("workers = %d", cfg.MaxWorkers)
	}
}

func TestPlaceholderKeyIsAbsent(t *testing.T) {
	// The sample .env placeholder must not trigger live-provider wiring.
	t.Setenv("SAPTIVA_API_KEY", "pon_tu_api_key_aqui")
	t.Setenv("TAVILY_API_KEY", "pon_tu_api_key_aqui")

	cfg := FromEnv()
	if cfg.HasModelCredentials() || cfg.HasSearchCredentials() {
		t.Error("placeholder keys counted as credentials")
	}
}

func TestBadIntFallsBack(t *testing.T) {
	t.Setenv("ALETHEIA_MAX_WORKERS", "not-a-number")
	if cfg := FromEnv(); cfg.MaxWorkers != 5 {
		t.Errorf("workers = %d, want default 5", cfg.MaxWorkers)
	}
}
