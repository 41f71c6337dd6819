// Package hooks runs operator-supplied shell scripts on engine lifecycle events.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Engine lifecycle events
const (
	EventToolRegistered    = "tool:registered"
	EventToolUnregistered  = "tool:unregistered"
	EventToolExecuted      = "tool:executed"
	EventToolFailed        = "tool:failed"
	EventCompositeFinished = "composite:finished"
)

var knownEvents = map[string]bool{
	EventToolRegistered:    true,
	EventToolUnregistered:  true,
	EventToolExecuted:      true,
	EventToolFailed:        true,
	EventCompositeFinished: true,
}

// IsKnownEvent reports whether event is one the engine emits
func IsKnownEvent(event string) bool {
	return knownEvents[strings.TrimSpace(event)]
}

const (
	defaultHookTimeout = 10 * time.Second
	envPrefix          = "TOOLENGINE_HOOK_"
)

// Hook binds a script to an event.
type Hook struct {
	ID      string        `json:"id" mapstructure:"id"`
	Event   string        `json:"event" mapstructure:"event"`
	Script  string        `json:"script" mapstructure:"script"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	Enabled bool          `json:"enabled" mapstructure:"enabled"`
}

func (h Hook) name() string {
	if id := strings.TrimSpace(h.ID); id != "" {
		return id
	}
	return h.Event
}

// Runner executes a script with the given environment and returns its combined output
type Runner func(ctx context.Context, script string, env []string) ([]byte, error)

// ShellRunner runs scripts through /bin/sh -c
func ShellRunner(ctx context.Context, script string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", script)
	cmd.Env = env
	return cmd.CombinedOutput()
}

// Config configures a hook Manager.
type Config struct {
	Enabled bool
	Hooks   []Hook
	Logger  zerolog.Logger
	Runner  Runner // defaults to ShellRunner
}

// Manager runs the hooks bound to an event, in the order they were added.
type Manager struct {
	enabled bool
	logger  zerolog.Logger
	run     Runner

	mu      sync.RWMutex
	byEvent map[string][]Hook
}

// NewManager builds a manager from cfg. Disabled hooks are skipped; a disabled
// manager ignores the hook list entirely.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{
		enabled: cfg.Enabled,
		logger:  cfg.Logger.With().Str("component", "hooks").Logger(),
		run:     cfg.Runner,
		byEvent: make(map[string][]Hook),
	}
	if m.run == nil {
		m.run = ShellRunner
	}
	if !m.enabled {
		return m, nil
	}

	for _, h := range cfg.Hooks {
		if !h.Enabled {
			continue
		}
		if err := m.Add(h); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add registers one hook
func (m *Manager) Add(h Hook) error {
	h.Event = strings.TrimSpace(h.Event)
	switch {
	case h.Event == "":
		return fmt.Errorf("hook event is required")
	case !knownEvents[h.Event]:
		return fmt.Errorf("unknown hook event %q", h.Event)
	case strings.TrimSpace(h.Script) == "":
		return fmt.Errorf("hook script is required for event %q", h.Event)
	}
	if h.Timeout <= 0 {
		h.Timeout = defaultHookTimeout
	}

	m.mu.Lock()
	m.byEvent[h.Event] = append(m.byEvent[h.Event], h)
	m.mu.Unlock()
	return nil
}

// Count returns the number of hooks bound to an event
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byEvent[event])
}

// Trigger runs every hook bound to event. All hooks run even when one fails;
// their errors are joined.
func (m *Manager) Trigger(ctx context.Context, event string, data map[string]interface{}) error {
	if m == nil || !m.enabled {
		return nil
	}
	event = strings.TrimSpace(event)
	if event == "" {
		return fmt.Errorf("event is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.RLock()
	bound := append([]Hook(nil), m.byEvent[event]...)
	m.mu.RUnlock()
	if len(bound) == 0 {
		return nil
	}

	env := hookEnv(event, data)
	var errs []error
	for _, h := range bound {
		if err := m.runHook(ctx, h, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) runHook(ctx context.Context, h Hook, env []string) error {
	runCtx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	start := time.Now()
	out, err := m.run(runCtx, h.Script, env)
	output := strings.TrimSpace(string(out))
	if err != nil {
		if output == "" {
			return fmt.Errorf("hook %s failed: %w", h.name(), err)
		}
		return fmt.Errorf("hook %s failed: %w: %s", h.name(), err, output)
	}

	m.logger.Debug().
		Str("event", h.Event).
		Str("hook_id", h.name()).
		Dur("duration", time.Since(start)).
		Str("output", output).
		Msg("Hook executed")
	return nil
}

// hookEnv is the process environment plus TOOLENGINE_HOOK_EVENT and one
// TOOLENGINE_HOOK_<KEY> variable per data entry, sorted by key.
func hookEnv(event string, data map[string]interface{}) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := os.Environ()
	env = append(env, envPrefix+"EVENT="+event)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s%s=%v", envPrefix, envKey(k), data[k]))
	}
	return env
}

func envKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "UNKNOWN"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, strings.ToUpper(key))
}
