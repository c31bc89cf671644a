package config

import (
	"os"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration. All env
// vars use a PLATFORM_ prefix for namespace isolation.
func (c *Config) applyEnvOverrides() {
	setIfEnv(&c.Server.Address, "PLATFORM_SERVER_ADDRESS")
	setIfEnv(&c.Server.AdminMetricsAPIKey, "PLATFORM_ADMIN_METRICS_API_KEY")

	setIfEnv(&c.Logging.Level, "PLATFORM_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "PLATFORM_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "PLATFORM_ENVIRONMENT")

	setIfEnv(&c.Store.URI, "PLATFORM_STORE_URI")
	setIfEnv(&c.Store.Database, "PLATFORM_STORE_DATABASE")

	setIfEnv(&c.Bus.URL, "PLATFORM_BUS_URL")
	setIfEnv(&c.Bus.StreamName, "PLATFORM_BUS_STREAM")

	setIfEnv(&c.Mutex.URL, "PLATFORM_MUTEX_URL")

	setIfEnv(&c.RateLimit.URL, "PLATFORM_RATELIMIT_URL")

	setIfEnv(&c.Stripe.SecretKey, "PLATFORM_STRIPE_SECRET_KEY")
	setIfEnv(&c.Stripe.WebhookSecret, "PLATFORM_STRIPE_WEBHOOK_SECRET")

	setIfEnv(&c.Paypal.WebhookID, "PLATFORM_PAYPAL_WEBHOOK_ID")
	setIfEnv(&c.Paypal.ClientID, "PLATFORM_PAYPAL_CLIENT_ID")
	setIfEnv(&c.Paypal.ClientSecret, "PLATFORM_PAYPAL_CLIENT_SECRET")
	setIfEnv(&c.Paypal.AllowedCertHost, "PLATFORM_PAYPAL_ALLOWED_CERT_HOST")

	setBoolIfEnv(&c.CircuitBreaker.Enabled, "PLATFORM_CIRCUIT_BREAKER_ENABLED")
}

func setIfEnv(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

func setBoolIfEnv(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

func setDurationIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			*target = Duration{Duration: dur}
		}
	}
}
