// Package toolexecutor registers tools and executes them under one contract.
//
// Every call passes the same gates, in order: rate limit, authorization,
// parameter validation, lazy initialization, then timeout-bounded attempts
// with exponential backoff between retries. Failures never escape as panics
// or errors; they come back as a failed ToolResult carrying an ErrorCode.
//
// Invariants:
// - Tool ids are unique; a duplicate registration leaves the original untouched.
// - A capability exists while at least one registered tool advertises it.
// - Discovery returns tools in registration order.
// - Every ToolResult has an execution id and an execution time.
//
// Usage:
//
//	engine := toolexecutor.New(toolexecutor.Options{})
//	_ = engine.RegisterTool(&toolexecutor.Tool{
//		Metadata: toolexecutor.ToolMetadata{
//			ID:         "echo",
//			Parameters: []toolexecutor.ToolParameter{{Name: "text", Type: "string", Required: true}},
//		},
//		Handler: func(ctx context.Context, params map[string]interface{}, _ *toolexecutor.ToolContext) (interface{}, error) {
//			return params["text"], nil
//		},
//	})
//	result := engine.Execute(ctx, "echo", map[string]interface{}{"text": "hi"}, nil)
package toolexecutor
