package config

import "testing"

func TestApplyEnvOverrides_StoreURI(t *testing.T) {
	t.Setenv("PLATFORM_STORE_URI", "mongodb://override:27017")
	t.Setenv("PLATFORM_STORE_DATABASE", "override-db")

	cfg := defaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Store.URI != "mongodb://override:27017" {
		t.Fatalf("expected overridden store uri, got %q", cfg.Store.URI)
	}
	if cfg.Store.Database != "override-db" {
		t.Fatalf("expected overridden database, got %q", cfg.Store.Database)
	}
}

func TestApplyEnvOverrides_CircuitBreakerBool(t *testing.T) {
	t.Setenv("PLATFORM_CIRCUIT_BREAKER_ENABLED", "false")

	cfg := defaultConfig()
	cfg.applyEnvOverrides()

	if cfg.CircuitBreaker.Enabled {
		t.Fatal("expected circuit breaker to be disabled by env override")
	}
}

func TestApplyEnvOverrides_LeavesUnsetFieldsAlone(t *testing.T) {
	cfg := defaultConfig()
	original := cfg.Stripe.SecretKey
	cfg.applyEnvOverrides()

	if cfg.Stripe.SecretKey != original {
		t.Fatal("expected stripe secret key to be unchanged without env var")
	}
}
