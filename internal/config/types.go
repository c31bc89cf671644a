package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Store          StoreConfig          `yaml:"store"`
	Bus            BusConfig            `yaml:"bus"`
	Mutex          MutexConfig          `yaml:"mutex"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Stripe         StripeConfig         `yaml:"stripe"`
	Paypal         PaypalConfig         `yaml:"paypal"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Cron           CronConfig           `yaml:"cron"`
	ImagePipeline  ImagePipelineConfig  `yaml:"image_pipeline"`
}

// ServerConfig holds the HTTP server configuration for the narrow surface
// this core owns directly: the two webhook endpoints, the redeem endpoint,
// the admin webhook-event listing, and health/metrics. Routing beyond that is
// an external collaborator's concern.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	ReadTimeout         Duration `yaml:"read_timeout"`
	WriteTimeout        Duration `yaml:"write_timeout"`
	IdleTimeout         Duration `yaml:"idle_timeout"`
	CORSAllowedOrigins  []string `yaml:"cors_allowed_origins"`
	AdminMetricsAPIKey  string   `yaml:"admin_metrics_api_key"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Environment string `yaml:"environment"`
}

// StoreConfig configures the document store gateway (C1).
type StoreConfig struct {
	URI             string   `yaml:"uri"`
	Database        string   `yaml:"database"`
	ConnectTimeout  Duration `yaml:"connect_timeout"`
	QueryTimeout    Duration `yaml:"query_timeout"`
	MaxPoolSize     uint64   `yaml:"max_pool_size"`
}

// BusConfig configures the durable message bus (C2 publication, C9 callbacks).
type BusConfig struct {
	URL             string   `yaml:"url"`
	StreamName      string   `yaml:"stream_name"`
	EventSubject    string   `yaml:"event_subject_prefix"`    // "events." per §6
	FanoutSubject   string   `yaml:"fanout_subject"`          // "api.v4.events" per §6
	CallbackPrefix  string   `yaml:"callback_subject_prefix"` // "<prefix>." for image callbacks
	AckWait         Duration `yaml:"ack_wait"`
	ReconnectWait   Duration `yaml:"reconnect_wait"`
	MaxReconnects   int      `yaml:"max_reconnects"`
}

// MutexConfig configures the distributed mutex (C3).
type MutexConfig struct {
	URL        string   `yaml:"url"`
	DefaultTTL Duration `yaml:"default_ttl"`
	RetryDelay Duration `yaml:"retry_delay"`
}

// RateLimitConfig configures the rate-limit core (C7): one bucket spec per
// named resource, plus the shared key-value store connection.
type RateLimitConfig struct {
	URL       string                   `yaml:"url"`
	Resources map[string]BucketConfig  `yaml:"resources"`
}

// BucketConfig is a single (resource) token bucket specification.
type BucketConfig struct {
	Limit            int64    `yaml:"limit"`
	IntervalSeconds  int64    `yaml:"interval_seconds"`
	OveruseThreshold int64    `yaml:"overuse_threshold"`
	PenaltyTTL       Duration `yaml:"penalty_ttl"`
}

// StripeConfig holds Stripe payment integration configuration.
type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	SuccessURL    string `yaml:"success_url"`
	CancelURL     string `yaml:"cancel_url"`
}

// PaypalConfig holds PayPal webhook verification configuration.
type PaypalConfig struct {
	WebhookID      string `yaml:"webhook_id"`
	AllowedCertHost string `yaml:"allowed_cert_host"` // must prefix paypal-cert-url, e.g. "https://api.paypal.com/"
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	APIBaseURL     string `yaml:"api_base_url"`
}

// CircuitBreakerConfig holds circuit breaker configuration for external services.
type CircuitBreakerConfig struct {
	Enabled bool                 `yaml:"enabled"`
	Stripe  BreakerServiceConfig `yaml:"stripe"`
	Paypal  BreakerServiceConfig `yaml:"paypal"`
	Image   BreakerServiceConfig `yaml:"image_processor"`
}

// BreakerServiceConfig configures a circuit breaker for a specific external service.
type BreakerServiceConfig struct {
	MaxRequests         uint32   `yaml:"max_requests"`
	Interval            Duration `yaml:"interval"`
	Timeout             Duration `yaml:"timeout"`
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"`
	FailureRatio        float64  `yaml:"failure_ratio"`
	MinRequests         uint32   `yaml:"min_requests"`
}

// CronConfig configures the cron leaser (C10).
type CronConfig struct {
	PollInterval      Duration `yaml:"poll_interval"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	LeaseDuration     Duration `yaml:"lease_duration"`
}

// ImagePipelineConfig configures the image pipeline sink (C9).
type ImagePipelineConfig struct {
	SubjectPrefix string `yaml:"subject_prefix"`
	DurableName   string `yaml:"durable_consumer_name"`
	MaxAckPending int    `yaml:"max_ack_pending"`
}
