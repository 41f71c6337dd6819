package toolexecutor

import "context"

type toolContextKey struct{}

// ContextWithToolContext attaches the tool context to a context.Context for tool handlers.
func ContextWithToolContext(ctx context.Context, toolCtx *ToolContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if toolCtx == nil {
		return ctx
	}
	return context.WithValue(ctx, toolContextKey{}, toolCtx)
}

// ToolContextFromContext extracts the tool context from a context.Context.
func ToolContextFromContext(ctx context.Context) *ToolContext {
	if ctx == nil {
		return nil
	}
	if v := ctx.Value(toolContextKey{}); v != nil {
		if toolCtx, ok := v.(*ToolContext); ok {
			return toolCtx
		}
	}
	return nil
}
