package coretools

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/harun/toolengine/pkg/toolexecutor"
)

// Options configures core tool registration.
type Options struct {
	WorkspaceRoot string
	HTTPClient    *http.Client
	HTTPTimeout   time.Duration
	MaxReadBytes  int64
	// FetchRateLimit bounds http.fetch; nil leaves it unlimited
	FetchRateLimit *toolexecutor.RateLimit
	// Policy drops whole categories before registration
	Policy toolexecutor.CategoryPolicy
}

const defaultMaxReadBytes = 200000

// RegisterCoreTools registers the text, filesystem and HTTP tools.
// Filesystem tools are skipped when no workspace root is configured.
func RegisterCoreTools(engine *toolexecutor.Engine, opts Options) error {
	if engine == nil {
		return errors.New("tool engine is required")
	}
	if opts.MaxReadBytes <= 0 {
		opts.MaxReadBytes = defaultMaxReadBytes
	}

	tools := TextTools()
	if strings.TrimSpace(opts.WorkspaceRoot) != "" {
		root, err := filepath.Abs(opts.WorkspaceRoot)
		if err != nil {
			return fmt.Errorf("invalid workspace root: %w", err)
		}
		opts.WorkspaceRoot = root
		tools = append(tools, readFileTool(opts), writeFileTool(opts))
	}
	tools = append(tools, fetchTool(opts))

	admitted := tools[:0]
	for _, tool := range tools {
		if opts.Policy.Admits(tool.Metadata.Category) {
			admitted = append(admitted, tool)
		}
	}
	return register(engine, admitted)
}

// RegisterTextTools registers only the pure text tools
func RegisterTextTools(engine *toolexecutor.Engine) error {
	if engine == nil {
		return errors.New("tool engine is required")
	}
	return register(engine, TextTools())
}

func register(engine *toolexecutor.Engine, tools []*toolexecutor.Tool) error {
	for _, tool := range tools {
		if err := engine.RegisterTool(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Metadata.ID, err)
		}
	}
	return nil
}
