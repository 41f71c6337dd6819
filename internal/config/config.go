package config

import (
	"encoding/json"
	"time"

	"github.com/harun/toolengine/pkg/hooks"
)

// Config represents the toolengine configuration
type Config struct {
	// Engine
	Engine EngineConfig `json:"engine" mapstructure:"engine"`

	// Security
	Security SecurityConfig `json:"security" mapstructure:"security"`

	// Core tools
	CoreTools CoreToolsConfig `json:"core_tools" mapstructure:"core_tools"`

	// Composite plans directory
	PlansDir string `json:"plans_dir" mapstructure:"plans_dir"`

	// Hooks
	Hooks HooksConfig `json:"hooks" mapstructure:"hooks"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// EngineConfig holds execution pipeline defaults
type EngineConfig struct {
	DefaultTimeoutMs int `json:"default_timeout_ms" mapstructure:"default_timeout_ms"`
	DefaultRetries   int `json:"default_retries" mapstructure:"default_retries"`
	BackoffBaseMs    int `json:"backoff_base_ms" mapstructure:"backoff_base_ms"`
	BackoffMaxMs     int `json:"backoff_max_ms" mapstructure:"backoff_max_ms"`
}

// DefaultTimeout returns the timeout as a duration
func (e EngineConfig) DefaultTimeout() time.Duration {
	return time.Duration(e.DefaultTimeoutMs) * time.Millisecond
}

// BackoffBase returns the first retry delay
func (e EngineConfig) BackoffBase() time.Duration {
	return time.Duration(e.BackoffBaseMs) * time.Millisecond
}

// BackoffMax returns the retry delay cap
func (e EngineConfig) BackoffMax() time.Duration {
	return time.Duration(e.BackoffMaxMs) * time.Millisecond
}

// SecurityConfig configures the clearance authorizer
type SecurityConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// Revoked requester ids are denied regardless of clearance
	Revoked []string `json:"revoked" mapstructure:"revoked"`
	// Level granted to the CLI requester when running tools
	CLILevel string `json:"cli_level" mapstructure:"cli_level"`
}

// CoreToolsConfig configures the built-in tools
type CoreToolsConfig struct {
	WorkspaceRoot  string   `json:"workspace_root" mapstructure:"workspace_root"`
	HTTPTimeoutMs  int      `json:"http_timeout_ms" mapstructure:"http_timeout_ms"`
	MaxReadBytes   int64    `json:"max_read_bytes" mapstructure:"max_read_bytes"`
	FetchPerMinute int      `json:"fetch_per_minute" mapstructure:"fetch_per_minute"`
	DenyCategories []string `json:"deny_categories" mapstructure:"deny_categories"`
}

// HooksConfig holds lifecycle hook configuration
type HooksConfig struct {
	Enabled bool         `json:"enabled" mapstructure:"enabled"`
	Entries []hooks.Hook `json:"entries" mapstructure:"entries"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// MetricsConfig holds the prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			DefaultTimeoutMs: 30000,
			DefaultRetries:   0,
			BackoffBaseMs:    100,
			BackoffMaxMs:     5000,
		},
		Security: SecurityConfig{
			Enabled:  true,
			Revoked:  []string{},
			CLILevel: "LOW",
		},
		CoreTools: CoreToolsConfig{
			WorkspaceRoot:  "",
			HTTPTimeoutMs:  15000,
			MaxReadBytes:   200000,
			FetchPerMinute: 60,
			DenyCategories: []string{},
		},
		PlansDir: "",
		Hooks: HooksConfig{
			Enabled: false,
			Entries: []hooks.Hook{},
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "toolengine",
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return NewValidator().Validate(c)
}
