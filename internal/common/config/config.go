// internal/common/config/config.go
package config

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig             `mapstructure:"app"`
	Server        ServerConfig          `mapstructure:"server"`
	Callback      CallbackConfig        `mapstructure:"callback"`
	Checker       CheckerConfig         `mapstructure:"checker"`
	Plans         map[string]PlanConfig `mapstructure:"plans"`
	Redis         RedisConfig           `mapstructure:"redis"`
	Logging       LoggingConfig         `mapstructure:"logging"`
	Observability ObservabilityConfig   `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
}

// Address returns the listen address for the HTTP server.
func (s ServerConfig) Address() string {
	return ":" + strconv.Itoa(s.Port)
}

// CallbackConfig controls delivery of results to the external collector.
type CallbackConfig struct {
	URL        string `mapstructure:"url"`
	Timeout    int    `mapstructure:"timeout"` // seconds, per attempt
	MaxRetries int    `mapstructure:"max_retries"`
}

// TimeoutDuration returns the per-attempt timeout.
func (c CallbackConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// CheckerConfig selects and tunes the eligibility capability provider.
type CheckerConfig struct {
	Provider       string   `mapstructure:"provider"`
	MinDelay       int      `mapstructure:"min_delay"`  // milliseconds
	MaxDelay       int      `mapstructure:"max_delay"`  // milliseconds
	StepDelay      int      `mapstructure:"step_delay"` // milliseconds
	AlwaysEligible []string `mapstructure:"always_eligible"`
}

// PlanConfig holds the credential pair for a plan-specific checker.
type PlanConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Login    string `mapstructure:"login"`
	Password string `mapstructure:"password"`
}

type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	OverridesKey string `mapstructure:"overrides_key"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig toggles the OTel providers.
type ObservabilityConfig struct {
	MetricsEnabled bool    `mapstructure:"metrics_enabled"`
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// EnabledPlans returns the lower-cased names of enabled plans in sorted order.
func (c *Config) EnabledPlans() []string {
	names := make([]string, 0, len(c.Plans))
	for name, plan := range c.Plans {
		if plan.Enabled {
			names = append(names, strings.ToLower(name))
		}
	}
	sort.Strings(names)
	return names
}
