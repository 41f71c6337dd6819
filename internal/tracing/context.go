package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// ExecutionIDKey is the context key for the current tool execution ID
	ExecutionIDKey ContextKey = "execution_id"
	// ParentExecutionIDKey is the context key for the enclosing execution ID
	ParentExecutionIDKey ContextKey = "parent_execution_id"
	// RequesterIDKey is the context key for the requesting agent or user
	RequesterIDKey ContextKey = "requester_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID           string
	ExecutionID       string
	ParentExecutionID string
	RequesterID       string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewExecutionID generates a new execution ID
func NewExecutionID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithExecutionID adds an execution ID to the context
func WithExecutionID(ctx context.Context, executionID string) context.Context {
	return context.WithValue(ctx, ExecutionIDKey, executionID)
}

// WithParentExecutionID adds the enclosing execution ID to the context
func WithParentExecutionID(ctx context.Context, parentID string) context.Context {
	return context.WithValue(ctx, ParentExecutionIDKey, parentID)
}

// WithRequesterID adds a requester ID to the context
func WithRequesterID(ctx context.Context, requesterID string) context.Context {
	return context.WithValue(ctx, RequesterIDKey, requesterID)
}

func getString(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	return getString(ctx, TraceIDKey)
}

// GetExecutionID retrieves the execution ID from the context
func GetExecutionID(ctx context.Context) string {
	return getString(ctx, ExecutionIDKey)
}

// GetParentExecutionID retrieves the parent execution ID from the context
func GetParentExecutionID(ctx context.Context) string {
	return getString(ctx, ParentExecutionIDKey)
}

// GetRequesterID retrieves the requester ID from the context
func GetRequesterID(ctx context.Context) string {
	return getString(ctx, RequesterIDKey)
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) TraceContext {
	return TraceContext{
		TraceID:           GetTraceID(ctx),
		ExecutionID:       GetExecutionID(ctx),
		ParentExecutionID: GetParentExecutionID(ctx),
		RequesterID:       GetRequesterID(ctx),
	}
}

// LoggerFromContext adds tracing fields from ctx to a zerolog logger
func LoggerFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	lc := logger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.ExecutionID != "" {
		lc = lc.Str("execution_id", tc.ExecutionID)
	}
	if tc.ParentExecutionID != "" {
		lc = lc.Str("parent_execution_id", tc.ParentExecutionID)
	}
	if tc.RequesterID != "" {
		lc = lc.Str("requester_id", tc.RequesterID)
	}

	return lc.Logger()
}
