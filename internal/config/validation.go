package config

import (
	"errors"
	"fmt"
	"strings"
)

// finalize applies defaults that depend on other fields and validates the
// configuration for internal consistency.
func (c *Config) finalize() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Environment == "" {
		c.Logging.Environment = "production"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Bus.EventSubject == "" {
		c.Bus.EventSubject = "events."
	}
	if c.Bus.FanoutSubject == "" {
		c.Bus.FanoutSubject = "api.v4.events"
	}
	if c.Paypal.AllowedCertHost == "" {
		c.Paypal.AllowedCertHost = "https://api.paypal.com/"
	}

	return c.validate()
}

// validate checks that required configuration fields are set correctly.
func (c *Config) validate() error {
	var problems []string

	if c.Store.Database == "" {
		problems = append(problems, "store.database is required")
	}
	if c.Store.URI == "" {
		problems = append(problems, "store.uri is required")
	}

	if c.Cron.PollInterval.Duration <= 0 {
		problems = append(problems, "cron.poll_interval must be positive")
	}
	if c.Cron.HeartbeatInterval.Duration <= 0 || c.Cron.LeaseDuration.Duration <= 0 {
		problems = append(problems, "cron.heartbeat_interval and cron.lease_duration must be positive")
	} else if c.Cron.HeartbeatInterval.Duration >= c.Cron.LeaseDuration.Duration {
		problems = append(problems, "cron.heartbeat_interval must be shorter than cron.lease_duration")
	}

	for name, bucket := range c.RateLimit.Resources {
		if bucket.Limit <= 0 || bucket.IntervalSeconds <= 0 {
			problems = append(problems, fmt.Sprintf("rate_limit.resources[%s] must have a positive limit and interval_seconds", name))
		}
	}

	if c.Stripe.SecretKey != "" && c.Stripe.WebhookSecret == "" {
		problems = append(problems, "stripe.webhook_secret is required when stripe.secret_key is set")
	}

	if c.Paypal.WebhookID != "" && !strings.HasPrefix(c.Paypal.APIBaseURL, "https://") {
		problems = append(problems, "paypal.api_base_url must be an https URL")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
