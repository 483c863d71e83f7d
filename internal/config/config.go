package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`
	WebhookURL  string `env:"WEBHOOK_URL,required=true"`

	// Providers is a comma-separated list of name:priority pairs seeded into
	// the registry on startup, e.g. "apprise:1,bark:2,gotify:3".
	Providers string `env:"PROVIDERS,default=apprise:1"`

	AnalyzeAPIURL string `env:"ANALYZE_API_URL"`
	AnalyzeAPIKey string `env:"ANALYZE_API_KEY"`
	AnalyzeModel  string `env:"ANALYZE_MODEL,default=gpt-4o-mini"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	RateLimitPerSec int `env:"RATE_LIMIT_PER_SEC,default=100"`

	DefaultMaxAttempts        int `env:"DEFAULT_MAX_ATTEMPTS,default=3"`
	DedupTTLSeconds           int `env:"DEDUP_TTL_SECONDS,default=600"`
	DispatchIntervalSeconds   int `env:"DISPATCH_INTERVAL_SECONDS,default=5"`
	DispatchBatchLimit        int `env:"DISPATCH_BATCH_LIMIT,default=100"`
	SenderTimeoutSeconds      int `env:"SENDER_TIMEOUT_SECONDS,default=10"`
	AnalyzeTimeoutSeconds     int `env:"ANALYZE_TIMEOUT_SECONDS,default=30"`
	StaleSendingSeconds       int `env:"STALE_SENDING_SECONDS,default=300"`
	RetryBaseDelaySeconds     int `env:"RETRY_BASE_DELAY_SECONDS,default=30"`
	RetryMaxDelaySeconds      int `env:"RETRY_MAX_DELAY_SECONDS,default=3600"`
	StateSweepIntervalSeconds int `env:"STATE_SWEEP_INTERVAL_SECONDS,default=3600"`
}

type ProviderSpec struct {
	Name     string
	Priority int
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// ProviderSpecs parses the Providers list. A pair without a priority gets a
// priority from its position in the list.
func (c *Config) ProviderSpecs() ([]ProviderSpec, error) {
	raw := strings.TrimSpace(c.Providers)
	if raw == "" {
		return nil, fmt.Errorf("at least one provider must be configured")
	}

	var specs []ProviderSpec
	seen := make(map[string]bool)
	for i, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name := part
		priority := i + 1
		if idx := strings.LastIndex(part, ":"); idx >= 0 {
			name = strings.TrimSpace(part[:idx])
			parsed, err := strconv.Atoi(strings.TrimSpace(part[idx+1:]))
			if err != nil {
				return nil, fmt.Errorf("invalid provider priority in %q: %w", part, err)
			}
			priority = parsed
		}

		name = strings.ToLower(name)
		if name == "" {
			return nil, fmt.Errorf("invalid provider entry %q: name is required", part)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate provider %q", name)
		}
		seen[name] = true

		specs = append(specs, ProviderSpec{Name: name, Priority: priority})
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one provider must be configured")
	}
	return specs, nil
}

func (c *Config) AnalyzerEnabled() bool {
	return strings.TrimSpace(c.AnalyzeAPIURL) != ""
}

func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLSeconds) * time.Second
}

func (c *Config) DispatchInterval() time.Duration {
	return time.Duration(c.DispatchIntervalSeconds) * time.Second
}

func (c *Config) SenderTimeout() time.Duration {
	return time.Duration(c.SenderTimeoutSeconds) * time.Second
}

func (c *Config) AnalyzeTimeout() time.Duration {
	return time.Duration(c.AnalyzeTimeoutSeconds) * time.Second
}

func (c *Config) StaleSendingAfter() time.Duration {
	return time.Duration(c.StaleSendingSeconds) * time.Second
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelaySeconds) * time.Second
}

func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelaySeconds) * time.Second
}

func (c *Config) StateSweepInterval() time.Duration {
	return time.Duration(c.StateSweepIntervalSeconds) * time.Second
}
