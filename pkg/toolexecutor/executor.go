package toolexecutor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harun/toolengine/internal/observability"
	"github.com/harun/toolengine/internal/tracing"
	"github.com/harun/toolengine/pkg/hooks"
)

// DefaultTimeout applies when neither the call nor the tool sets one
const DefaultTimeout = 30 * time.Second

// EventSink receives engine lifecycle events; *hooks.Manager implements it
type EventSink interface {
	Trigger(ctx context.Context, event string, data map[string]interface{}) error
}

// Options configures an Engine
type Options struct {
	Authorizer     Authorizer
	DefaultTimeout time.Duration
	DefaultRetries int
	Retry          RetryConfig
	Hooks          EventSink
	RateLimiter    *RateLimiter
}

// Engine registers tools and executes them through a single pipeline
type Engine struct {
	registry *Registry
	limiter  *RateLimiter

	mu             sync.RWMutex
	authorizer     Authorizer
	hooks          EventSink
	defaultTimeout time.Duration
	defaultRetries int
	retry          RetryConfig
}

// New creates an Engine
func New(opts Options) *Engine {
	observability.EnsureRegistered()

	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	if opts.DefaultRetries < 0 {
		opts.DefaultRetries = 0
	}
	if opts.Retry.InitialBackoff <= 0 || opts.Retry.MaxBackoff <= 0 {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.RateLimiter == nil {
		opts.RateLimiter = NewRateLimiter()
	}

	e := &Engine{
		registry:       NewRegistry(),
		limiter:        opts.RateLimiter,
		authorizer:     opts.Authorizer,
		hooks:          opts.Hooks,
		defaultTimeout: opts.DefaultTimeout,
		defaultRetries: opts.DefaultRetries,
		retry:          opts.Retry,
	}

	log.Info().
		Dur("default_timeout", e.defaultTimeout).
		Int("default_retries", e.defaultRetries).
		Bool("authorizer", e.authorizer != nil).
		Msg("Tool engine initialized")

	return e
}

// SetAuthorizer installs the authorization collaborator
func (e *Engine) SetAuthorizer(authorizer Authorizer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.authorizer = authorizer
}

// SetHooks installs the lifecycle event sink
func (e *Engine) SetHooks(sink EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = sink
}

// Registry exposes the tool registry
func (e *Engine) Registry() *Registry {
	return e.registry
}

// RateLimiter exposes the rate limiter
func (e *Engine) RateLimiter() *RateLimiter {
	return e.limiter
}

// Validate reports misconfiguration: auth-requiring tools without an authorizer
func (e *Engine) Validate() error {
	e.mu.RLock()
	authorizer := e.authorizer
	e.mu.RUnlock()

	if authorizer != nil {
		return nil
	}

	requiresAuth := true
	if tools := e.registry.Discover(&DiscoveryFilter{RequiresAuth: &requiresAuth}); len(tools) > 0 {
		return fmt.Errorf("%w: %d tool(s) require authorization, first is %s",
			ErrSecurityModuleNotConfigured, len(tools), tools[0].ID)
	}
	return nil
}

// RegisterTool registers a new tool
func (e *Engine) RegisterTool(tool *Tool) error {
	if err := e.registry.Register(tool); err != nil {
		return err
	}
	id := tool.Metadata.ID

	observability.SetRegisteredTools(e.registry.Count())
	observability.RecordRegistryAudit(context.Background(), "register", id)
	e.emit(context.Background(), hooks.EventToolRegistered, map[string]interface{}{
		"tool_id": id,
	})
	return nil
}

// UnregisterTool removes a tool and its rate-limit state
func (e *Engine) UnregisterTool(id string) bool {
	if !e.registry.Unregister(id) {
		return false
	}

	e.limiter.Reset(id)
	observability.SetRegisteredTools(e.registry.Count())
	observability.RecordRegistryAudit(context.Background(), "unregister", id)
	e.emit(context.Background(), hooks.EventToolUnregistered, map[string]interface{}{
		"tool_id": id,
	})
	return true
}

// GetTool returns a copy of a tool's metadata
func (e *Engine) GetTool(id string) (ToolMetadata, bool) {
	return e.registry.Get(id)
}

// DiscoverTools returns metadata for tools matching filter, in registration order
func (e *Engine) DiscoverTools(filter *DiscoveryFilter) []ToolMetadata {
	return e.registry.Discover(filter)
}

// DiscoverCapabilities returns capabilities whose tags intersect tags
func (e *Engine) DiscoverCapabilities(tags []string) []ToolCapability {
	return e.registry.DiscoverCapabilities(tags)
}

// Execute runs a registered tool by id
func (e *Engine) Execute(ctx context.Context, toolID string, params map[string]interface{}, opts *ExecuteOptions) ToolResult {
	reg, ok := e.registry.lookup(toolID)
	if !ok {
		toolCtx := newToolContext(opts)
		log.Error().Str("tool", toolID).Msg("Tool not found")
		result := Failure(CodeToolNotFound, fmt.Sprintf("tool not found: %s", toolID),
			map[string]interface{}{"tool_id": toolID}, toolCtx.ExecutionID, time.Since(toolCtx.StartTime))
		observability.RecordToolExecution(toolID, result.ExecutionTime, string(CodeToolNotFound))
		return result
	}
	return e.execute(ctx, reg, params, opts)
}

// ExecuteTool runs the pipeline for a tool value, registered or not
func (e *Engine) ExecuteTool(ctx context.Context, tool *Tool, params map[string]interface{}, opts *ExecuteOptions) ToolResult {
	if tool != nil {
		if reg, ok := e.registry.lookup(tool.Metadata.ID); ok && reg.tool == tool {
			return e.execute(ctx, reg, params, opts)
		}
	}

	reg, err := newRegistration(tool)
	if err != nil {
		toolCtx := newToolContext(opts)
		return Failure(CodeUnexpectedError, err.Error(), nil, toolCtx.ExecutionID, time.Since(toolCtx.StartTime))
	}
	return e.execute(ctx, reg, params, opts)
}

func newToolContext(opts *ExecuteOptions) *ToolContext {
	toolCtx := &ToolContext{
		ExecutionID: tracing.NewExecutionID(),
		StartTime:   time.Now(),
		Metadata:    map[string]interface{}{},
	}
	if opts == nil {
		return toolCtx
	}
	if opts.Requester != nil {
		toolCtx.RequesterID = opts.Requester.ID
		toolCtx.Credentials = opts.Requester.Credentials
	}
	toolCtx.ParentExecutionID = opts.ParentExecutionID
	toolCtx.Timeout = opts.Timeout
	if opts.Retries != nil {
		retries := *opts.Retries
		toolCtx.Retries = &retries
	}
	for k, v := range opts.Metadata {
		toolCtx.Metadata[k] = v
	}
	return toolCtx
}

// execute is the pipeline: rate limit, authorization, validation, lazy init,
// then timeout-bounded attempts with retry. It never panics.
func (e *Engine) execute(ctx context.Context, reg *registration, params map[string]interface{}, opts *ExecuteOptions) (result ToolResult) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		opts = &ExecuteOptions{}
	}

	meta, tool := reg.meta, reg.tool
	toolCtx := newToolContext(opts)

	ctx = tracing.WithExecutionID(ctx, toolCtx.ExecutionID)
	if toolCtx.ParentExecutionID != "" {
		ctx = tracing.WithParentExecutionID(ctx, toolCtx.ParentExecutionID)
	}
	if toolCtx.RequesterID != "" {
		ctx = tracing.WithRequesterID(ctx, toolCtx.RequesterID)
	}
	ctx, span := tracing.StartSpan(ctx, "tool.execute",
		attribute.String("tool.id", meta.ID),
		attribute.String("tool.protocol", string(meta.Protocol)),
		attribute.String("execution.id", toolCtx.ExecutionID),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("tool", meta.ID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Unexpected error in tool pipeline")
			result = Failure(CodeUnexpectedError, fmt.Sprintf("unexpected error: %v", r), nil,
				toolCtx.ExecutionID, time.Since(toolCtx.StartTime))
		}
		e.finish(ctx, span, meta, toolCtx, result)
	}()

	fail := func(code ErrorCode, message string, details map[string]interface{}) ToolResult {
		return Failure(code, message, details, toolCtx.ExecutionID, time.Since(toolCtx.StartTime))
	}

	if meta.RateLimit != nil && !e.limiter.Allow(meta.ID, *meta.RateLimit) {
		observability.RecordRateLimited(meta.ID)
		return fail(CodeRateLimitExceeded, fmt.Sprintf("rate limit exceeded for tool %s", meta.ID), map[string]interface{}{
			"tool_id":   meta.ID,
			"requests":  meta.RateLimit.Requests,
			"period_ms": meta.RateLimit.Period.Milliseconds(),
		})
	}

	e.mu.RLock()
	authorizer := e.authorizer
	e.mu.RUnlock()

	if authErr := checkAuthorization(ctx, authorizer, meta, toolCtx); authErr != nil {
		observability.RecordSecurityAudit(ctx, meta.ID, toolCtx.RequesterID, toolCtx.ExecutionID, "denied",
			map[string]interface{}{"code": string(authErr.Code)})
		return fail(authErr.Code, authErr.Message, authErr.Details)
	}
	if meta.RequiresAuth {
		observability.RecordSecurityAudit(ctx, meta.ID, toolCtx.RequesterID, toolCtx.ExecutionID, "granted", nil)
	}

	params = applyDefaults(meta, params)
	if err := validateParameters(reg.schema, params); err != nil {
		log.Warn().Str("tool", meta.ID).Err(err).Msg("Parameter validation failed")
		return fail(CodeInvalidParameters, fmt.Sprintf("parameter validation failed: %v", err), nil)
	}
	if tool.Validator != nil {
		if err := tool.Validator(params); err != nil {
			return fail(CodeInvalidParameters, fmt.Sprintf("parameter validation failed: %v", err), nil)
		}
	}

	if err := e.ensureInitialized(ctx, meta.ID, tool); err != nil {
		log.Error().Str("tool", meta.ID).Err(err).Msg("Tool initialization failed")
		return fail(CodeInitializationFailed, fmt.Sprintf("tool initialization failed: %v", err), nil)
	}

	timeout := e.effectiveTimeout(meta, opts)
	retries := e.defaultRetries
	if opts.Retries != nil {
		retries = *opts.Retries
	}
	if retries < 0 {
		retries = 0
	}

	bo := e.retry.newBackOff()
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= retries; attempt++ {
		attempts++
		data, err := e.invoke(ctx, tool, params, toolCtx, timeout)
		if err == nil {
			return ToolResult{
				Success:       true,
				Data:          data,
				ExecutionTime: time.Since(toolCtx.StartTime),
				ExecutionID:   toolCtx.ExecutionID,
			}
		}
		lastErr = err

		var pe *panicError
		if errors.As(err, &pe) {
			log.Error().
				Str("tool", meta.ID).
				Interface("panic", pe.value).
				Bytes("stack", pe.stack).
				Msg("Tool handler panicked")
			return fail(CodeUnexpectedError, err.Error(), map[string]interface{}{"attempts": attempts})
		}

		if ctx.Err() != nil || attempt == retries {
			break
		}

		wait := bo.NextBackOff()
		log.Warn().
			Str("tool", meta.ID).
			Int("attempt", attempts).
			Dur("backoff", wait).
			Err(err).
			Msg("Tool execution failed, retrying")
		observability.RecordToolRetry(meta.ID)

		if err := sleepContext(ctx, wait); err != nil {
			lastErr = fmt.Errorf("retry aborted: %w", err)
			break
		}
	}

	return fail(CodeExecutionFailed, lastErr.Error(), map[string]interface{}{
		"tool_id":  meta.ID,
		"attempts": attempts,
		"timeout":  errors.Is(lastErr, context.DeadlineExceeded),
	})
}

func (e *Engine) effectiveTimeout(meta ToolMetadata, opts *ExecuteOptions) time.Duration {
	if opts != nil && opts.Timeout > 0 {
		return opts.Timeout
	}
	if meta.Timeout > 0 {
		return meta.Timeout
	}
	return e.defaultTimeout
}

// ensureInitialized runs the tool's initializer once. A failed run leaves the
// tool uninitialized so the next call tries again.
func (e *Engine) ensureInitialized(ctx context.Context, id string, tool *Tool) error {
	if tool.Initializer == nil {
		return nil
	}

	tool.initMu.Lock()
	defer tool.initMu.Unlock()

	if tool.initialized {
		return nil
	}
	if err := tool.Initializer(ctx); err != nil {
		return err
	}
	tool.initialized = true

	log.Debug().Str("tool", id).Msg("Tool initialized")
	return nil
}

type panicError struct {
	value interface{}
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("tool handler panicked: %v", p.value)
}

// invoke runs one attempt. The handler gets a context cancelled at the deadline;
// a handler that ignores it is abandoned and its late result dropped.
func (e *Engine) invoke(ctx context.Context, tool *Tool, params map[string]interface{}, toolCtx *ToolContext, timeout time.Duration) (interface{}, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	attemptCtx = ContextWithToolContext(attemptCtx, toolCtx)

	type outcome struct {
		data interface{}
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &panicError{value: r, stack: debug.Stack()}}
			}
		}()
		data, err := tool.Handler(attemptCtx, params, toolCtx)
		done <- outcome{data: data, err: err}
	}()

	select {
	case out := <-done:
		var pe *panicError
		if out.err == nil || attemptCtx.Err() == nil || errors.As(out.err, &pe) {
			return out.data, out.err
		}
	case <-attemptCtx.Done():
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("tool execution cancelled: %w", ctx.Err())
	}
	return nil, fmt.Errorf("tool execution timeout after %v: %w", timeout, context.DeadlineExceeded)
}

// finish records metrics, span status, and lifecycle events for a result
func (e *Engine) finish(ctx context.Context, span trace.Span, meta ToolMetadata, toolCtx *ToolContext, result ToolResult) {
	defer span.End()

	code := ""
	event := hooks.EventToolExecuted
	data := map[string]interface{}{
		"tool_id":      meta.ID,
		"execution_id": toolCtx.ExecutionID,
		"duration_ms":  result.ExecutionTime.Milliseconds(),
	}

	logger := tracing.LoggerFromContext(ctx, log.Logger)
	if result.Success {
		span.SetStatus(codes.Ok, "")
		logger.Debug().
			Str("tool", meta.ID).
			Dur("duration", result.ExecutionTime).
			Msg("Tool execution completed")
	} else {
		code = string(result.Error.Code)
		event = hooks.EventToolFailed
		data["error_code"] = code
		span.SetStatus(codes.Error, result.Error.Message)
		span.SetAttributes(attribute.String("error.code", code))
		logger.Error().
			Str("tool", meta.ID).
			Str("code", code).
			Dur("duration", result.ExecutionTime).
			Msg(result.Error.Message)
	}

	observability.RecordToolExecution(meta.ID, result.ExecutionTime, code)
	e.emit(ctx, event, data)
}

// emit delivers an event without blocking the caller
func (e *Engine) emit(ctx context.Context, event string, data map[string]interface{}) {
	e.mu.RLock()
	sink := e.hooks
	e.mu.RUnlock()
	if sink == nil {
		return
	}

	go func() {
		if err := sink.Trigger(context.WithoutCancel(ctx), event, data); err != nil {
			log.Warn().Str("event", event).Err(err).Msg("Lifecycle hook failed")
		}
	}()
}
