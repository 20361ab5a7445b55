package client

import (
	"fmt"
	"time"

	"github.com/kbukum/fleetkit/breaker"
	"github.com/kbukum/fleetkit/validation"
)

// Dependency names a downstream service and where to reach it.
type Dependency struct {
	Name    string `yaml:"name" mapstructure:"name" validate:"required"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
}

// CredentialConfig configures the credential validation convenience
// operation and its degraded fallback path.
type CredentialConfig struct {
	// Dependency is the auth dependency used for remote introspection.
	Dependency string `yaml:"dependency" mapstructure:"dependency"`
	// Path is the introspection endpoint path.
	Path string `yaml:"path" mapstructure:"path"`
	// FallbackSecret is the HMAC secret for local token verification
	// while the auth dependency's circuit is open.
	FallbackSecret string `yaml:"fallback_secret" mapstructure:"fallback_secret"`
}

// Config configures a resilient client.
type Config struct {
	// Dependencies are the known downstream services.
	Dependencies []Dependency `yaml:"dependencies" mapstructure:"dependencies"`
	// Timeout is the transport-level timeout for a single invocation.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Breaker is the per-dependency breaker template. Name and the
	// transition hook are filled in per dependency.
	Breaker breaker.Config `yaml:"breaker" mapstructure:"breaker"`
	// Credential configures the credential validation operation.
	Credential CredentialConfig `yaml:"credential" mapstructure:"credential"`
}

// ApplyDefaults applies default values to client configuration.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Breaker.MaxConsecutiveFailures == 0 &&
		c.Breaker.FailureRatio == 0 &&
		c.Breaker.ResetTimeout == 0 {
		c.Breaker = breaker.DefaultConfig("")
	}
	if c.Credential.Dependency == "" {
		c.Credential.Dependency = "auth-service"
	}
	if c.Credential.Path == "" {
		c.Credential.Path = "/v1/tokens/introspect"
	}
}

// Validate validates client configuration.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Dependencies))
	for i, d := range c.Dependencies {
		if err := validation.Validate(&d); err != nil {
			return fmt.Errorf("client.dependencies[%d]: %w", i, err)
		}
		if seen[d.Name] {
			return fmt.Errorf("client.dependencies[%s]: duplicate name", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}
