package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cfg.parseFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  Duration{Duration: 15 * time.Second},
			WriteTimeout: Duration{Duration: 15 * time.Second},
			IdleTimeout:  Duration{Duration: 60 * time.Second},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Environment: "production",
		},
		Store: StoreConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "platform",
			ConnectTimeout: Duration{Duration: 10 * time.Second},
			QueryTimeout:   Duration{Duration: 10 * time.Second},
			MaxPoolSize:    100,
		},
		Bus: BusConfig{
			URL:            "nats://localhost:4222",
			StreamName:     "PLATFORM",
			EventSubject:   "events.",
			FanoutSubject:  "api.v4.events",
			CallbackPrefix: "image.",
			AckWait:        Duration{Duration: 30 * time.Second},
			ReconnectWait:  Duration{Duration: 1 * time.Second},
			MaxReconnects:  -1,
		},
		Mutex: MutexConfig{
			URL:        "redis://localhost:6379/0",
			DefaultTTL: Duration{Duration: 10 * time.Second},
			RetryDelay: Duration{Duration: 50 * time.Millisecond},
		},
		RateLimit: RateLimitConfig{
			URL: "redis://localhost:6379/1",
			Resources: map[string]BucketConfig{
				"webhook": {Limit: 600, IntervalSeconds: 60, OveruseThreshold: 3, PenaltyTTL: Duration{Duration: 5 * time.Minute}},
				"redeem":  {Limit: 10, IntervalSeconds: 60, OveruseThreshold: 3, PenaltyTTL: Duration{Duration: 10 * time.Minute}},
			},
		},
		Stripe: StripeConfig{},
		Paypal: PaypalConfig{
			AllowedCertHost: "https://api.paypal.com/",
			APIBaseURL:      "https://api.paypal.com",
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled: true,
			Stripe: BreakerServiceConfig{
				MaxRequests:         3,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 30 * time.Second},
				ConsecutiveFailures: 5,
				FailureRatio:        0.5,
				MinRequests:         10,
			},
			Paypal: BreakerServiceConfig{
				MaxRequests:         3,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 30 * time.Second},
				ConsecutiveFailures: 5,
				FailureRatio:        0.5,
				MinRequests:         10,
			},
			Image: BreakerServiceConfig{
				MaxRequests:         5,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 60 * time.Second},
				ConsecutiveFailures: 10,
				FailureRatio:        0.7,
				MinRequests:         20,
			},
		},
		Cron: CronConfig{
			PollInterval:      Duration{Duration: 60 * time.Second},
			HeartbeatInterval: Duration{Duration: 30 * time.Second},
			LeaseDuration:     Duration{Duration: 60 * time.Second},
		},
		ImagePipeline: ImagePipelineConfig{
			SubjectPrefix: "image.",
			DurableName:   "image-pipeline-sink",
			MaxAckPending: 256,
		},
	}
}

// parseFile reads and unmarshals a YAML configuration file.
func (c *Config) parseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}
