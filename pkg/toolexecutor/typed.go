package toolexecutor

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// TypedHandler is a handler over a concrete parameter struct
type TypedHandler[P any, R any] func(ctx context.Context, params P, toolCtx *ToolContext) (R, error)

// NewTypedTool wraps a typed handler as a Tool. Params are decoded into P using
// its `json` tags; numbers and strings are converted where unambiguous.
func NewTypedTool[P any, R any](meta ToolMetadata, handler TypedHandler[P, R]) *Tool {
	return &Tool{
		Metadata: meta,
		Handler: func(ctx context.Context, params map[string]interface{}, toolCtx *ToolContext) (interface{}, error) {
			p, err := DecodeParams[P](params)
			if err != nil {
				return nil, err
			}
			return handler(ctx, p, toolCtx)
		},
	}
}

// DecodeParams converts a raw parameter map into P
func DecodeParams[P any](params map[string]interface{}) (P, error) {
	var out P
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return out, fmt.Errorf("failed to build parameter decoder: %w", err)
	}
	if err := decoder.Decode(params); err != nil {
		return out, fmt.Errorf("failed to decode parameters: %w", err)
	}
	return out, nil
}
