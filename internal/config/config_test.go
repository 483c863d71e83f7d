package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "host=localhost user=test password=test dbname=test port=5432 sslmode=disable")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("WEBHOOK_URL", "https://notify.example.com/push")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.RateLimitPerSec != 100 {
		t.Errorf("RateLimitPerSec = %d, want 100", cfg.RateLimitPerSec)
	}
	if cfg.DefaultMaxAttempts != 3 {
		t.Errorf("DefaultMaxAttempts = %d, want 3", cfg.DefaultMaxAttempts)
	}
	if got := cfg.DedupTTL(); got != 10*time.Minute {
		t.Errorf("DedupTTL() = %v, want 10m", got)
	}
	if got := cfg.DispatchInterval(); got != 5*time.Second {
		t.Errorf("DispatchInterval() = %v, want 5s", got)
	}
	if got := cfg.RetryBaseDelay(); got != 30*time.Second {
		t.Errorf("RetryBaseDelay() = %v, want 30s", got)
	}
	if got := cfg.RetryMaxDelay(); got != time.Hour {
		t.Errorf("RetryMaxDelay() = %v, want 1h", got)
	}
	if got := cfg.StaleSendingAfter(); got != 5*time.Minute {
		t.Errorf("StaleSendingAfter() = %v, want 5m", got)
	}
	if cfg.AnalyzerEnabled() {
		t.Error("analyzer should be disabled without ANALYZE_API_URL")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_PER_SEC", "250")
	t.Setenv("DEDUP_TTL_SECONDS", "120")
	t.Setenv("ANALYZE_API_URL", "https://api.openai.example.com/v1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.RateLimitPerSec != 250 {
		t.Errorf("RateLimitPerSec = %d, want 250", cfg.RateLimitPerSec)
	}
	if got := cfg.DedupTTL(); got != 2*time.Minute {
		t.Errorf("DedupTTL() = %v, want 2m", got)
	}
	if !cfg.AnalyzerEnabled() {
		t.Error("analyzer should be enabled with ANALYZE_API_URL set")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_DSN", "host=localhost")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
}

func TestProviderSpecs(t *testing.T) {
	setRequiredEnv(t)

	testCases := []struct {
		name      string
		providers string
		want      []ProviderSpec
		wantErr   bool
	}{
		{
			name:      "default single provider",
			providers: "apprise:1",
			want:      []ProviderSpec{{Name: "apprise", Priority: 1}},
		},
		{
			name:      "ranked list",
			providers: "apprise:1, bark:2 ,gotify:3",
			want: []ProviderSpec{
				{Name: "apprise", Priority: 1},
				{Name: "bark", Priority: 2},
				{Name: "gotify", Priority: 3},
			},
		},
		{
			name:      "positional priority without explicit rank",
			providers: "apprise,bark",
			want: []ProviderSpec{
				{Name: "apprise", Priority: 1},
				{Name: "bark", Priority: 2},
			},
		},
		{
			name:      "names normalized to lowercase",
			providers: "Apprise:1",
			want:      []ProviderSpec{{Name: "apprise", Priority: 1}},
		},
		{
			name:      "duplicate provider rejected",
			providers: "apprise:1,apprise:2",
			wantErr:   true,
		},
		{
			name:      "bad priority rejected",
			providers: "apprise:high",
			wantErr:   true,
		},
		{
			name:      "empty list rejected",
			providers: " , ",
			wantErr:   true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Providers: tc.providers}

			specs, err := cfg.ProviderSpecs()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(specs) != len(tc.want) {
				t.Fatalf("specs = %+v, want %+v", specs, tc.want)
			}
			for i := range specs {
				if specs[i] != tc.want[i] {
					t.Fatalf("spec[%d] = %+v, want %+v", i, specs[i], tc.want[i])
				}
			}
		})
	}
}
