// Package config defines the bus's deployment configuration.
//
// Thresholds and window sizes are product defaults, not protocol constants:
// every deployment can override them via yaml or environment-specific files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the Signal Coordination Bus.
type Config struct {
	// Environment prefixes every persisted key and database name
	// ("prod", "staging", "test") so traffic never commingles.
	Environment string `yaml:"environment"`

	Throttle ThrottleConfig `yaml:"throttle"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Dispatch DispatchConfig `yaml:"dispatch"`

	// Redis holds breaker and throttle state. Leave Address empty for a
	// single-instance deployment using in-process state.
	Redis RedisConfig `yaml:"redis"`

	// Mongo holds the audit trail. Leave URI empty to keep audit entries
	// in process memory (tests and local development only).
	Mongo MongoConfig `yaml:"mongo"`

	Ops OpsConfig `yaml:"ops"`
}

// ThrottleConfig bounds per-tenant signal volume.
type ThrottleConfig struct {
	// Limit is the number of signals admitted per window per organization.
	Limit int64 `yaml:"limit"`

	// Window is the fixed window length.
	Window time.Duration `yaml:"window"`
}

// BreakerConfig tunes the per-tenant circuit breaker.
type BreakerConfig struct {
	// Threshold is the consecutive dispatch failures before opening.
	Threshold int `yaml:"threshold"`

	// CoolDown is how long an open breaker isolates a tenant before probing.
	CoolDown time.Duration `yaml:"cool_down"`
}

// DispatchConfig tunes subscriber fan-out.
type DispatchConfig struct {
	// HandlerTimeout bounds one subscriber's work per signal.
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
}

// RedisConfig locates the shared state store.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MongoConfig locates the audit store.
type MongoConfig struct {
	URI string `yaml:"uri"`
}

// OpsConfig configures the operational HTTP endpoint.
type OpsConfig struct {
	// Listen is the bind address for /metrics and state inspection,
	// e.g. ":9402". Empty disables the endpoint.
	Listen string `yaml:"listen"`
}

// Default returns the product default configuration.
func Default() *Config {
	return &Config{
		Environment: "dev",
		Throttle: ThrottleConfig{
			Limit:  100,
			Window: time.Minute,
		},
		Breaker: BreakerConfig{
			Threshold: 5,
			CoolDown:  time.Minute,
		},
		Dispatch: DispatchConfig{
			HandlerTimeout: 30 * time.Second,
		},
	}
}

// Load reads a yaml file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the bus cannot run with.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("config: environment must not be empty")
	}
	if c.Throttle.Limit <= 0 {
		return fmt.Errorf("config: throttle.limit must be positive, got %d", c.Throttle.Limit)
	}
	if c.Throttle.Window <= 0 {
		return fmt.Errorf("config: throttle.window must be positive, got %s", c.Throttle.Window)
	}
	if c.Breaker.Threshold <= 0 {
		return fmt.Errorf("config: breaker.threshold must be positive, got %d", c.Breaker.Threshold)
	}
	if c.Breaker.CoolDown <= 0 {
		return fmt.Errorf("config: breaker.cool_down must be positive, got %s", c.Breaker.CoolDown)
	}
	if c.Dispatch.HandlerTimeout <= 0 {
		return fmt.Errorf("config: dispatch.handler_timeout must be positive, got %s", c.Dispatch.HandlerTimeout)
	}
	return nil
}
