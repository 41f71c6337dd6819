package toolexecutor

import (
	"context"
	"errors"
)

// ErrSecurityModuleNotConfigured means an auth-requiring tool exists without an Authorizer
var ErrSecurityModuleNotConfigured = errors.New("security module not configured")

// Authorizer decides whether credentials clear a tool's minimum security level.
// Token validation and freshness belong to the caller's authentication step.
type Authorizer interface {
	Authorize(ctx context.Context, creds *Credentials, required SecurityLevel) (bool, error)
}

// AuthorizerFunc adapts a function to Authorizer
type AuthorizerFunc func(ctx context.Context, creds *Credentials, required SecurityLevel) (bool, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, creds *Credentials, required SecurityLevel) (bool, error) {
	return f(ctx, creds, required)
}

// checkAuthorization returns a non-nil ToolError when the call must be rejected
func checkAuthorization(ctx context.Context, authorizer Authorizer, meta ToolMetadata, toolCtx *ToolContext) *ToolError {
	if !meta.RequiresAuth {
		return nil
	}

	if authorizer == nil {
		return &ToolError{
			Code:    CodeSecurityModuleNotConfigured,
			Message: "tool requires authorization but no security module is configured",
			Details: map[string]interface{}{"tool_id": meta.ID},
		}
	}

	if toolCtx.Credentials == nil {
		return &ToolError{
			Code:    CodeAuthenticationRequired,
			Message: "tool requires authenticated credentials",
			Details: map[string]interface{}{"tool_id": meta.ID},
		}
	}

	ok, err := authorizer.Authorize(ctx, toolCtx.Credentials, meta.MinSecurityLevel)
	if err != nil {
		return &ToolError{
			Code:    CodeAuthenticationRequired,
			Message: err.Error(),
			Details: map[string]interface{}{"tool_id": meta.ID},
		}
	}
	if !ok {
		return &ToolError{
			Code:    CodeInsufficientSecurityLevel,
			Message: "credentials do not meet the tool's minimum security level",
			Details: map[string]interface{}{
				"tool_id":  meta.ID,
				"required": meta.MinSecurityLevel.String(),
				"provided": toolCtx.Credentials.SecurityLevel.String(),
			},
		}
	}

	return nil
}
