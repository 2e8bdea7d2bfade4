package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dronm/fedds"
)

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "5s" or "1m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return fmt.Errorf("duration value node is nil")
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// DatabaseConfig selects the backend provider and how to reach it.
type DatabaseConfig struct {
	Provider        string   `yaml:"provider"`
	DSN             string   `yaml:"dsn"`
	Driver          string   `yaml:"driver,omitempty"`
	MaxOpenConns    int      `yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int      `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime,omitempty"`
}

// FederationConfig describes the federation context of the handle.
type FederationConfig struct {
	Type         string `yaml:"type"`
	Name         string `yaml:"name,omitempty"`
	Distribution string `yaml:"distribution,omitempty"`
	Key          string `yaml:"key,omitempty"`
}

// RetryConfig configures the retry policy. Zero values fall back to the
// fixed 10 x 3s default.
type RetryConfig struct {
	Strategy    string   `yaml:"strategy,omitempty"`
	MaxAttempts int      `yaml:"max_attempts,omitempty"`
	Interval    Duration `yaml:"interval,omitempty"`
	MaxInterval Duration `yaml:"max_interval,omitempty"`
	Factor      float64  `yaml:"factor,omitempty"`
}

// LokiConfig configures optional Loki integration for logging.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Labels  map[string]string `yaml:"labels"`
}

// LoggingConfig encapsulates runtime logging options.
type LoggingConfig struct {
	Level  string     `yaml:"level"`
	Format string     `yaml:"format"`
	Loki   LokiConfig `yaml:"loki"`
}

// TelemetryConfig enables the Prometheus collectors. fedexec prints them
// after the run.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the root configuration structure.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Federation FederationConfig `yaml:"federation"`
	Retry      RetryConfig      `yaml:"retry"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// Load reads and decodes the configuration file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, rejecting unknown keys, and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Retry.Strategy == "" {
		c.Retry.Strategy = string(fedds.StrategyFixed)
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = fedds.DefaultMaxAttempts
	}
	if c.Retry.Interval.Duration == 0 {
		c.Retry.Interval.Duration = fedds.DefaultInterval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Provider) == "" {
		return errors.New("database.provider is required")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return errors.New("database pool sizes must not be negative")
	}
	if _, err := c.FederationTarget(); err != nil {
		return fmt.Errorf("federation: %w", err)
	}
	if _, err := fedds.NewRetryPolicy(c.RetryConfig()); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if c.Logging.Loki.Enabled && c.Logging.Loki.URL == "" {
		return errors.New("logging.loki.url is required when loki is enabled")
	}
	return nil
}

// FederationTarget converts the federation section. The key is passed
// through as written; the server converts the quoted literal to the
// distribution column type.
func (c *Config) FederationTarget() (fedds.FederationTarget, error) {
	ft, err := fedds.ParseFederationType(c.Federation.Type)
	if err != nil {
		return fedds.FederationTarget{}, err
	}
	target := fedds.FederationTarget{
		Type:         ft,
		Name:         c.Federation.Name,
		Distribution: c.Federation.Distribution,
	}
	if c.Federation.Key != "" {
		target.Key = c.Federation.Key
	}
	if err := target.Validate(); err != nil {
		return fedds.FederationTarget{}, err
	}
	return target, nil
}

// RetryConfig converts the retry section.
func (c *Config) RetryConfig() fedds.RetryConfig {
	return fedds.RetryConfig{
		Strategy:    fedds.Strategy(c.Retry.Strategy),
		MaxAttempts: c.Retry.MaxAttempts,
		Interval:    c.Retry.Interval.Duration,
		MaxInterval: c.Retry.MaxInterval.Duration,
		Factor:      c.Retry.Factor,
	}
}
