package config

import (
	"fmt"

	"github.com/kbukum/fleetkit/client"
	"github.com/kbukum/fleetkit/health"
	"github.com/kbukum/fleetkit/logger"
)

// Config is the top-level service configuration.
type Config struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	HTTP        HTTPConfig    `yaml:"http" mapstructure:"http"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
	Client      client.Config `yaml:"client" mapstructure:"client"`
	Health      health.Config `yaml:"health" mapstructure:"health"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// ApplyDefaults applies default values to all configuration sections.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "fleetkit"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	c.Logging.ApplyDefaults()
	if c.Debug && c.Logging.Level == "info" {
		c.Logging.Level = "debug"
	}
	c.Client.ApplyDefaults()
	c.Health.ApplyDefaults()
}

// Validate validates all configuration sections.
func (c *Config) Validate() error {
	validEnvs := []string{"development", "staging", "production"}
	found := false
	for _, v := range validEnvs {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("environment must be one of [development, staging, production] (got: %s)", c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if err := c.Health.Validate(); err != nil {
		return fmt.Errorf("health: %w", err)
	}
	return nil
}

// Load loads configuration for the service, applies defaults, and validates.
func Load(opts ...LoaderOption) (*Config, error) {
	var cfg Config
	if err := LoadInto("fleetkit", &cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
