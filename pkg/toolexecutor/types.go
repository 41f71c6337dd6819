package toolexecutor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// SecurityLevel is an ordered clearance tier gating tool access
type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota
	SecurityLow
	SecurityMedium
	SecurityHigh
	SecurityCritical
)

var securityLevelNames = map[SecurityLevel]string{
	SecurityPublic:   "PUBLIC",
	SecurityLow:      "LOW",
	SecurityMedium:   "MEDIUM",
	SecurityHigh:     "HIGH",
	SecurityCritical: "CRITICAL",
}

func (l SecurityLevel) String() string {
	if name, ok := securityLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("SecurityLevel(%d)", int(l))
}

// ParseSecurityLevel parses a level name (case-insensitive)
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for level, name := range securityLevelNames {
		if name == upper {
			return level, nil
		}
	}
	return SecurityPublic, fmt.Errorf("invalid security level: %q", s)
}

// MarshalJSON encodes the level by name
func (l SecurityLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts the level name
func (l *SecurityLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSecurityLevel(name)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Protocol is the declared execution protocol of a tool
type Protocol string

const (
	ProtocolInProcess  Protocol = "in_process"
	ProtocolHTTP       Protocol = "http"
	ProtocolShell      Protocol = "shell"
	ProtocolSubprocess Protocol = "subprocess"
	ProtocolPlugin     Protocol = "plugin"
	ProtocolComposite  Protocol = "composite"
)

// ToolParameter defines a parameter for a tool
type ToolParameter struct {
	Name        string        `json:"name" yaml:"name"`
	Type        string        `json:"type" yaml:"type"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool          `json:"required" yaml:"required"`
	Default     interface{}   `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []interface{} `json:"enum,omitempty" yaml:"enum,omitempty"`
	Minimum     *float64      `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *float64      `json:"maximum,omitempty" yaml:"maximum,omitempty"`
}

// ReturnSpec describes what a tool returns
type ReturnSpec struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// RateLimit bounds requests per rolling period
type RateLimit struct {
	Requests int           `json:"requests" yaml:"requests"`
	Period   time.Duration `json:"period" yaml:"period"`
}

// ToolMetadata is the immutable descriptor of a registered tool
type ToolMetadata struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Version          string          `json:"version"`
	Category         ToolCategory    `json:"category"`
	Tags             []string        `json:"tags,omitempty"`
	Parameters       []ToolParameter `json:"parameters"`
	Returns          ReturnSpec      `json:"returns"`
	Protocol         Protocol        `json:"protocol"`
	RequiresAuth     bool            `json:"requires_auth"`
	MinSecurityLevel SecurityLevel   `json:"min_security_level"`
	Timeout          time.Duration   `json:"timeout,omitempty"`
	RateLimit        *RateLimit      `json:"rate_limit,omitempty"`
	Capabilities     []string        `json:"capabilities,omitempty"`
}

// clone returns a deep copy so callers can never mutate registry state
func (m ToolMetadata) clone() ToolMetadata {
	out := m
	out.Tags = append([]string(nil), m.Tags...)
	out.Capabilities = append([]string(nil), m.Capabilities...)
	out.Parameters = make([]ToolParameter, len(m.Parameters))
	for i, p := range m.Parameters {
		p.Enum = append([]interface{}(nil), p.Enum...)
		out.Parameters[i] = p
	}
	if m.RateLimit != nil {
		rl := *m.RateLimit
		out.RateLimit = &rl
	}
	return out
}

// ToolHandler is the function signature for tool execution
type ToolHandler func(ctx context.Context, params map[string]interface{}, toolCtx *ToolContext) (interface{}, error)

// ParamValidator rejects parameter sets a tool cannot accept
type ParamValidator func(params map[string]interface{}) error

// Initializer runs once before a tool's first execution
type Initializer func(ctx context.Context) error

// Tool is a registered unit of capability
type Tool struct {
	Metadata    ToolMetadata
	Handler     ToolHandler
	Validator   ParamValidator
	Initializer Initializer

	initMu      sync.Mutex
	initialized bool
}

// Initialized reports whether the tool's initializer has completed
func (t *Tool) Initialized() bool {
	t.initMu.Lock()
	defer t.initMu.Unlock()
	return t.initialized
}

// ToolCapability is the derived view of a capability id advertised by tools
type ToolCapability struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	Returns     ReturnSpec      `json:"returns"`
	Tags        []string        `json:"tags,omitempty"`
}

// Credentials are resolved by the caller's authentication step
type Credentials struct {
	Token         string        `json:"-"`
	SecurityLevel SecurityLevel `json:"security_level"`
	Subject       string        `json:"subject,omitempty"`
	ExpiresAt     time.Time     `json:"expires_at,omitempty"`
}

// RequesterInfo identifies who is calling
type RequesterInfo struct {
	ID          string       `json:"id"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

// ExecuteOptions are per-call overrides
type ExecuteOptions struct {
	Timeout           time.Duration
	Retries           *int
	Requester         *RequesterInfo
	ParentExecutionID string
	Metadata          map[string]interface{}
}

// WithRetries returns a copy of the options with the retry count set
func (o *ExecuteOptions) WithRetries(n int) *ExecuteOptions {
	out := ExecuteOptions{}
	if o != nil {
		out = *o
	}
	out.Retries = &n
	return &out
}

// ToolContext provides runtime information for one tool execution
type ToolContext struct {
	ExecutionID       string
	RequesterID       string
	Credentials       *Credentials
	StartTime         time.Time
	ParentExecutionID string
	Metadata          map[string]interface{}

	// Timeout and Retries echo the caller's ExecuteOptions (zero/nil when unset)
	// so nested executions can inherit them.
	Timeout time.Duration
	Retries *int
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Success       bool          `json:"success"`
	Data          interface{}   `json:"data,omitempty"`
	Error         *ToolError    `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
	ExecutionID   string        `json:"execution_id"`
}

// ErrorCode classifies a failed ToolResult
type ErrorCode string

const (
	CodeToolNotFound                ErrorCode = "TOOL_NOT_FOUND"
	CodeCapabilityNotFound          ErrorCode = "CAPABILITY_NOT_FOUND"
	CodeRateLimitExceeded           ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeSecurityModuleNotConfigured ErrorCode = "SECURITY_MODULE_NOT_CONFIGURED"
	CodeAuthenticationRequired      ErrorCode = "AUTHENTICATION_REQUIRED"
	CodeInsufficientSecurityLevel   ErrorCode = "INSUFFICIENT_SECURITY_LEVEL"
	CodeInvalidParameters           ErrorCode = "INVALID_PARAMETERS"
	CodeInitializationFailed        ErrorCode = "INITIALIZATION_FAILED"
	CodeExecutionFailed             ErrorCode = "EXECUTION_FAILED"
	CodeUnexpectedError             ErrorCode = "UNEXPECTED_ERROR"
	CodeCompositeStepFailed         ErrorCode = "COMPOSITE_STEP_FAILED"
	CodeCompositeExecutionError     ErrorCode = "COMPOSITE_EXECUTION_ERROR"
)

// ToolError is the error carried by a failed ToolResult
type ToolError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Failure builds a failed result that is still complete
func Failure(code ErrorCode, message string, details map[string]interface{}, executionID string, elapsed time.Duration) ToolResult {
	return ToolResult{
		Success:       false,
		Error:         &ToolError{Code: code, Message: message, Details: details},
		ExecutionTime: elapsed,
		ExecutionID:   executionID,
	}
}

// Err returns the result's error as a Go error, or nil on success
func (r ToolResult) Err() error {
	if r.Success || r.Error == nil {
		return nil
	}
	return r.Error
}
