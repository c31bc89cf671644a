package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected defaults to validate, got: %v", err)
	}
	if cfg.Store.Database != "platform" {
		t.Fatalf("expected default database 'platform', got %q", cfg.Store.Database)
	}
	if cfg.Cron.HeartbeatInterval.Duration >= cfg.Cron.LeaseDuration.Duration {
		t.Fatal("default heartbeat interval must be shorter than lease duration")
	}
}

func TestLoadConfig_InvalidCronTimings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(`
cron:
  poll_interval: 60s
  heartbeat_interval: 90s
  lease_duration: 60s
`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error when heartbeat_interval >= lease_duration")
	}
}

func TestLoadConfig_ParsesYAMLDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(`
store:
  database: entitlements
  uri: mongodb://localhost:27017
mutex:
  default_ttl: 15s
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mutex.DefaultTTL.Duration != 15*time.Second {
		t.Fatalf("expected 15s, got %v", cfg.Mutex.DefaultTTL.Duration)
	}
}

func TestLoadConfig_RequiresStoreDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(`
store:
  database: ""
`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for empty store.database")
	}
}

func TestLoadConfig_StripeWebhookSecretRequired(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(`
stripe:
  secret_key: sk_test_123
`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error when stripe secret key is set without webhook secret")
	}
}
