package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/fleetkit/client"
	"github.com/kbukum/fleetkit/health"
)

func TestConfigApplyDefaults(t *testing.T) {
	t.Run("empty config gets development defaults", func(t *testing.T) {
		var cfg Config
		cfg.ApplyDefaults()
		if cfg.Name != "fleetkit" {
			t.Errorf("expected name 'fleetkit', got %q", cfg.Name)
		}
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.HTTP.Addr != ":8080" {
			t.Errorf("expected ':8080', got %q", cfg.HTTP.Addr)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug log level in development, got %q", cfg.Logging.Level)
		}
	})

	t.Run("production keeps debug false and info level", func(t *testing.T) {
		cfg := Config{Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected info log level, got %q", cfg.Logging.Level)
		}
	})

	t.Run("explicit log level survives debug mode", func(t *testing.T) {
		var cfg Config
		cfg.Logging.Level = "warn"
		cfg.ApplyDefaults()
		if cfg.Logging.Level != "warn" {
			t.Errorf("expected explicit 'warn' level to survive, got %q", cfg.Logging.Level)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		var cfg Config
		cfg.ApplyDefaults()
		return cfg
	}

	t.Run("defaulted config is valid", func(t *testing.T) {
		cfg := valid()
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("invalid environment", func(t *testing.T) {
		cfg := valid()
		cfg.Environment = "qa"
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "environment must be one of") {
			t.Errorf("expected environment error, got %v", err)
		}
	})

	t.Run("invalid logging section", func(t *testing.T) {
		cfg := valid()
		cfg.Logging.Level = "loud"
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "logging:") {
			t.Errorf("expected logging error, got %v", err)
		}
	})

	t.Run("duplicate client dependency", func(t *testing.T) {
		cfg := valid()
		cfg.Client.Dependencies = []client.Dependency{
			{Name: "billing", BaseURL: "http://a"},
			{Name: "billing", BaseURL: "http://b"},
		}
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "client:") {
			t.Errorf("expected client error, got %v", err)
		}
	})

	t.Run("health target without url", func(t *testing.T) {
		cfg := valid()
		cfg.Health.Targets = []health.Target{{Name: "billing"}}
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "health:") {
			t.Errorf("expected health error, got %v", err)
		}
	})
}

func TestLoadIntoWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	yamlContent := `
name: fleet-gateway
environment: staging
http:
  addr: ":9090"
client:
  dependencies:
    - name: billing
      base_url: http://billing.internal
  breaker:
    max_consecutive_failures: 2
    failure_ratio: 0.25
    min_requests: 20
    reset_timeout: 7s
    call_timeout: 2s
health:
  targets:
    - name: billing
      url: http://billing.internal/health
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatal(err)
	}

	var cfg Config
	if err := LoadInto("fleetkit", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}

	if cfg.Name != "fleet-gateway" {
		t.Errorf("expected name 'fleet-gateway', got %q", cfg.Name)
	}
	if cfg.Environment != "staging" {
		t.Errorf("expected 'staging', got %q", cfg.Environment)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("expected ':9090', got %q", cfg.HTTP.Addr)
	}
	if len(cfg.Client.Dependencies) != 1 || cfg.Client.Dependencies[0].Name != "billing" {
		t.Errorf("unexpected dependencies: %+v", cfg.Client.Dependencies)
	}
	if len(cfg.Health.Targets) != 1 || cfg.Health.Targets[0].URL != "http://billing.internal/health" {
		t.Errorf("unexpected targets: %+v", cfg.Health.Targets)
	}

	// Breaker thresholds must decode from their snake_case keys; a
	// silently ignored section would fall back to the default template.
	br := cfg.Client.Breaker
	if br.MaxConsecutiveFailures != 2 {
		t.Errorf("max_consecutive_failures not decoded: got %d, want 2", br.MaxConsecutiveFailures)
	}
	if br.FailureRatio != 0.25 {
		t.Errorf("failure_ratio not decoded: got %v, want 0.25", br.FailureRatio)
	}
	if br.MinRequests != 20 {
		t.Errorf("min_requests not decoded: got %d, want 20", br.MinRequests)
	}
	if br.ResetTimeout != 7*time.Second {
		t.Errorf("reset_timeout not decoded: got %v, want 7s", br.ResetTimeout)
	}
	if br.CallTimeout != 2*time.Second {
		t.Errorf("call_timeout not decoded: got %v, want 2s", br.CallTimeout)
	}

	cfg.ApplyDefaults()
	if cfg.Client.Breaker.MaxConsecutiveFailures != 2 {
		t.Errorf("defaults overwrote configured breaker thresholds: got %d, want 2",
			cfg.Client.Breaker.MaxConsecutiveFailures)
	}
}

func TestLoadIntoEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(configPath, []byte("environment: staging\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ENVIRONMENT", "production")

	var cfg Config
	if err := LoadInto("fleetkit", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}
	if cfg.Environment != "production" {
		t.Errorf("expected env var to win, got %q", cfg.Environment)
	}
}

func TestLoadIntoDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("HTTP_ADDR=:7070\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var cfg Config
	if err := LoadInto("fleetkit", &cfg, WithEnvFile(envPath)); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Errorf("expected ':7070', got %q", cfg.HTTP.Addr)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"ENVIRONMENT", "environment"},
		{"HTTP_ADDR", "http.addr"},
		{"LOGGING_NO_COLOR", "logging.no_color"},
		{"CLIENT_TIMEOUT", "client.timeout"},
	}
	for _, tc := range tests {
		variants := envKeyVariants(tc.key)
		found := false
		for _, v := range variants {
			if v == tc.want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("envKeyVariants(%q) = %v, missing %q", tc.key, variants, tc.want)
		}
	}
}
