package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/toolengine/internal/config"
	"github.com/harun/toolengine/internal/logger"
	"github.com/harun/toolengine/internal/observability"
	"github.com/harun/toolengine/internal/tracing"
	"github.com/harun/toolengine/pkg/composite"
	"github.com/harun/toolengine/pkg/coretools"
	"github.com/harun/toolengine/pkg/hooks"
	"github.com/harun/toolengine/pkg/security"
	te "github.com/harun/toolengine/pkg/toolexecutor"
)

// planToolPrefix namespaces plans registered from the plans directory
const planToolPrefix = "plan."

// Runtime is the wired engine behind every command
type Runtime struct {
	Config      *config.Config
	Logger      *logger.Logger
	Engine      *te.Engine
	Interpreter *composite.Interpreter
	Authorizer  *security.ClearanceAuthorizer
	Hooks       *hooks.Manager
	Plans       *composite.PlanStore
}

// loadConfig reads the config file named by --config and applies --log-level
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = strings.ToLower(logLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NewRuntime wires logging, tracing, audit, hooks, security, the engine, core
// tools, the composite interpreter and the plans directory from cfg.
func NewRuntime(cfg *config.Config) (*Runtime, error) {
	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	rt := &Runtime{Config: cfg, Logger: lg}

	if err := rt.init(); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) init() error {
	cfg := rt.Config

	if cfg.Tracing.Enabled {
		if err := tracing.Init(tracing.Options{
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
		}); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	hookManager, err := hooks.NewManager(hooks.Config{
		Enabled: cfg.Hooks.Enabled,
		Hooks:   cfg.Hooks.Entries,
		Logger:  rt.Logger.GetZerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to configure hooks: %w", err)
	}
	rt.Hooks = hookManager

	opts := te.Options{
		DefaultTimeout: cfg.Engine.DefaultTimeout(),
		DefaultRetries: cfg.Engine.DefaultRetries,
		Retry: te.RetryConfig{
			InitialBackoff: cfg.Engine.BackoffBase(),
			MaxBackoff:     cfg.Engine.BackoffMax(),
		},
		Hooks: hookManager,
	}
	if cfg.Security.Enabled {
		authorizer, err := security.NewClearanceAuthorizer(security.Options{
			RevocationPath: security.DefaultRevocationPath(cfg.DataDir),
			TokenPath:      security.DefaultTokenPath(cfg.DataDir),
			Revoked:        cfg.Security.Revoked,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize security: %w", err)
		}
		rt.Authorizer = authorizer
		opts.Authorizer = authorizer
	}
	rt.Engine = te.New(opts)

	if err := coretools.RegisterCoreTools(rt.Engine, coreToolOptions(cfg.CoreTools)); err != nil {
		return err
	}

	rt.Interpreter = composite.NewInterpreter(rt.Engine, nil)
	rt.Interpreter.SetHooks(hookManager)

	if cfg.PlansDir != "" {
		store, err := composite.NewPlanStore(composite.PlanStoreConfig{
			Dir:      cfg.PlansDir,
			OnChange: rt.syncPlanTool,
		})
		if err != nil {
			return err
		}
		rt.Plans = store
	}

	if err := rt.Engine.Validate(); err != nil {
		log.Warn().Err(err).Msg("Engine configuration incomplete")
	}
	return nil
}

func coreToolOptions(cfg config.CoreToolsConfig) coretools.Options {
	opts := coretools.Options{
		WorkspaceRoot: cfg.WorkspaceRoot,
		HTTPTimeout:   time.Duration(cfg.HTTPTimeoutMs) * time.Millisecond,
		MaxReadBytes:  cfg.MaxReadBytes,
	}
	if cfg.FetchPerMinute > 0 {
		opts.FetchRateLimit = &te.RateLimit{Requests: cfg.FetchPerMinute, Period: time.Minute}
	}
	for _, name := range cfg.DenyCategories {
		if category, err := te.ParseCategory(name); err == nil {
			opts.Policy.Deny = append(opts.Policy.Deny, category)
		}
	}
	return opts
}

// syncPlanTool keeps the "plan.<id>" tool in step with the plans directory
func (rt *Runtime) syncPlanTool(id string, plan *composite.Plan) {
	toolID := planToolPrefix + id
	rt.Engine.UnregisterTool(toolID)
	if plan == nil {
		return
	}

	name := plan.Name
	if name == "" {
		name = id
	}
	tool, err := composite.NewTool(te.ToolMetadata{
		ID:          toolID,
		Name:        name,
		Description: plan.Description,
		Version:     "1.0.0",
		Tags:        []string{"plan"},
	}, plan, rt.Interpreter, nil)
	if err != nil {
		log.Error().Err(err).Str("plan", id).Msg("Failed to build plan tool")
		return
	}
	if err := rt.Engine.RegisterTool(tool); err != nil {
		log.Error().Err(err).Str("plan", id).Msg("Failed to register plan tool")
	}
}

// Requester builds the identity used for CLI-initiated calls
func (rt *Runtime) Requester(id, level string) (*te.RequesterInfo, error) {
	if level == "" {
		level = rt.Config.Security.CLILevel
	}
	parsed, err := te.ParseSecurityLevel(level)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = "cli"
	}
	return &te.RequesterInfo{
		ID:          id,
		Credentials: &te.Credentials{SecurityLevel: parsed, Subject: id},
	}, nil
}

// RequesterForToken resolves a token minted by `security issue` into a requester
// named after the token's subject.
func (rt *Runtime) RequesterForToken(token string) (*te.RequesterInfo, error) {
	if rt.Authorizer == nil {
		return nil, fmt.Errorf("tokens require security.enabled")
	}
	creds, err := rt.Authorizer.Authenticate(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return &te.RequesterInfo{ID: creds.Subject, Credentials: creds}, nil
}

// Close releases files, watchers and the tracer provider
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Plans != nil {
		errs = append(errs, rt.Plans.Stop())
	}
	if rt.Config != nil && rt.Config.Tracing.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, tracing.Shutdown(ctx))
		cancel()
	}
	if rt.Config != nil && rt.Config.Logging.AuditFile != "" {
		errs = append(errs, observability.GetAuditLogger().Close())
	}
	if rt.Logger != nil {
		errs = append(errs, rt.Logger.Close())
	}
	return errors.Join(errs...)
}
