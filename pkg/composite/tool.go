package composite

import (
	"context"
	"fmt"

	te "github.com/harun/toolengine/pkg/toolexecutor"
)

// NewTool wraps a plan as an ordinary tool. inputMapping builds the plan's
// initial params from the tool's params; nil passes them through unchanged.
// The tool returns the plan's final results map.
func NewTool(meta te.ToolMetadata, plan *Plan, interpreter *Interpreter, inputMapping map[string]ParamMapping) (*te.Tool, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if interpreter == nil {
		return nil, fmt.Errorf("composite tool %s requires an interpreter", meta.ID)
	}
	for name, m := range inputMapping {
		if err := m.validate(); err != nil {
			return nil, fmt.Errorf("composite tool %s input %s: %w", meta.ID, name, err)
		}
	}

	if meta.ID == "" {
		meta.ID = plan.ID
	}
	if meta.Description == "" {
		meta.Description = plan.Description
	}
	meta.Protocol = te.ProtocolComposite
	if meta.Category == "" {
		meta.Category = te.CategoryComposite
	}
	if meta.Returns.Type == "" {
		meta.Returns = te.ReturnSpec{Type: "object", Description: "results map of the composite plan"}
	}

	return &te.Tool{
		Metadata: meta,
		Handler: func(ctx context.Context, params map[string]interface{}, toolCtx *te.ToolContext) (interface{}, error) {
			initial := params
			if len(inputMapping) > 0 {
				mapped, err := newResolver(params, interpreter.transforms).params(inputMapping)
				if err != nil {
					return nil, fmt.Errorf("failed to map composite inputs: %w", err)
				}
				initial = mapped
			}

			result := interpreter.run(ctx, plan, initial, optionsFromToolContext(toolCtx), toolCtx.ExecutionID)
			if !result.Success {
				return nil, result.Error
			}
			return result.Data, nil
		},
	}, nil
}

func optionsFromToolContext(toolCtx *te.ToolContext) *te.ExecuteOptions {
	if toolCtx == nil {
		return nil
	}
	opts := &te.ExecuteOptions{
		Timeout:  toolCtx.Timeout,
		Retries:  toolCtx.Retries,
		Metadata: toolCtx.Metadata,
	}
	if toolCtx.RequesterID != "" || toolCtx.Credentials != nil {
		opts.Requester = &te.RequesterInfo{ID: toolCtx.RequesterID, Credentials: toolCtx.Credentials}
	}
	return opts
}
