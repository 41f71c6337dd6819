package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/harun/toolengine/pkg/hooks"
	te "github.com/harun/toolengine/pkg/toolexecutor"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateSecurityLevel validates a clearance name
func (v *Validator) ValidateSecurityLevel(level string) error {
	if _, err := te.ParseSecurityLevel(level); err != nil {
		return fmt.Errorf("invalid security level: %s", level)
	}
	return nil
}

// ValidateAddr validates a host:port listen address
func (v *Validator) ValidateAddr(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	if cfg.Engine.DefaultTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("engine.default_timeout_ms must be > 0"))
	}
	if cfg.Engine.DefaultRetries < 0 {
		errs = append(errs, fmt.Errorf("engine.default_retries must be >= 0"))
	}
	if cfg.Engine.BackoffBaseMs < 0 {
		errs = append(errs, fmt.Errorf("engine.backoff_base_ms must be >= 0"))
	}
	if cfg.Engine.BackoffMaxMs < cfg.Engine.BackoffBaseMs {
		errs = append(errs, fmt.Errorf("engine.backoff_max_ms must be >= engine.backoff_base_ms"))
	}

	if cfg.Security.Enabled {
		if err := v.ValidateSecurityLevel(cfg.Security.CLILevel); err != nil {
			errs = append(errs, fmt.Errorf("security.cli_level: %w", err))
		}
	}

	if cfg.CoreTools.HTTPTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("core_tools.http_timeout_ms must be >= 0"))
	}
	if cfg.CoreTools.MaxReadBytes < 0 {
		errs = append(errs, fmt.Errorf("core_tools.max_read_bytes must be >= 0"))
	}
	if cfg.CoreTools.FetchPerMinute < 0 {
		errs = append(errs, fmt.Errorf("core_tools.fetch_per_minute must be >= 0"))
	}
	for _, name := range cfg.CoreTools.DenyCategories {
		if !te.IsValidCategory(name) {
			errs = append(errs, fmt.Errorf("core_tools.deny_categories: unknown category %q", name))
		}
	}

	if cfg.Hooks.Enabled {
		for i, hook := range cfg.Hooks.Entries {
			if !hook.Enabled {
				continue
			}
			if strings.TrimSpace(hook.Event) == "" {
				errs = append(errs, fmt.Errorf("hook %d: event is required", i))
			} else if !hooks.IsKnownEvent(hook.Event) {
				errs = append(errs, fmt.Errorf("hook %d: unknown event %q", i, hook.Event))
			}
			if strings.TrimSpace(hook.Script) == "" {
				errs = append(errs, fmt.Errorf("hook %d: script is required", i))
			}
		}
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if cfg.Logging.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("logging.max_size must be >= 0"))
	}

	if cfg.Metrics.Enabled {
		if err := v.ValidateAddr(cfg.Metrics.Addr); err != nil {
			errs = append(errs, fmt.Errorf("metrics.addr: %w", err))
		}
	}

	if cfg.Tracing.Enabled && strings.TrimSpace(cfg.Tracing.ServiceName) == "" {
		errs = append(errs, fmt.Errorf("tracing.service_name is required when tracing is enabled"))
	}

	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be within [0, 1]"))
	}

	return errs
}

// Validate returns every problem in cfg joined into one error
func (v *Validator) Validate(cfg *Config) error {
	return errors.Join(v.ValidateConfig(cfg)...)
}
