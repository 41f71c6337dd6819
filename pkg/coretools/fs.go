package coretools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harun/toolengine/pkg/toolexecutor"
)

func readFileTool(opts Options) *toolexecutor.Tool {
	return &toolexecutor.Tool{
		Metadata: toolexecutor.ToolMetadata{
			ID:           "fs.read_file",
			Name:         "read_file",
			Description:  "Read a file from the workspace.",
			Version:      "1.0.0",
			Category:     toolexecutor.CategoryRead,
			Tags:         []string{"fs"},
			Capabilities: []string{"file.read"},
			Parameters: []toolexecutor.ToolParameter{
				{Name: "path", Type: "string", Description: "Relative file path", Required: true},
				{Name: "max_bytes", Type: "integer", Description: "Maximum bytes to read", Default: opts.MaxReadBytes},
			},
			Returns: toolexecutor.ReturnSpec{Type: "object", Description: "path, content, truncated, bytes"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}, toolCtx *toolexecutor.ToolContext) (interface{}, error) {
			pathValue, _ := params["path"].(string)
			target, err := resolvePathInWorkspace(opts.WorkspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}

			data, truncated, err := readFileWithLimit(target, toInt64(params["max_bytes"], opts.MaxReadBytes))
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"path":      pathValue,
				"content":   string(data),
				"truncated": truncated,
				"bytes":     len(data),
			}, nil
		},
	}
}

func writeFileTool(opts Options) *toolexecutor.Tool {
	return &toolexecutor.Tool{
		Metadata: toolexecutor.ToolMetadata{
			ID:               "fs.write_file",
			Name:             "write_file",
			Description:      "Write content to a file in the workspace.",
			Version:          "1.0.0",
			Category:         toolexecutor.CategoryWrite,
			Tags:             []string{"fs"},
			Capabilities:     []string{"file.write"},
			RequiresAuth:     true,
			MinSecurityLevel: toolexecutor.SecurityMedium,
			Parameters: []toolexecutor.ToolParameter{
				{Name: "path", Type: "string", Description: "Relative file path", Required: true},
				{Name: "content", Type: "string", Description: "File content", Required: true},
				{Name: "append", Type: "boolean", Description: "Append to file", Default: false},
			},
			Returns: toolexecutor.ReturnSpec{Type: "object", Description: "path and bytes written"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}, toolCtx *toolexecutor.ToolContext) (interface{}, error) {
			pathValue, _ := params["path"].(string)
			target, err := resolvePathInWorkspace(opts.WorkspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}
			content, _ := params["content"].(string)
			appendMode, _ := params["append"].(bool)

			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, err
			}

			flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
			if appendMode {
				flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
			}
			file, err := os.OpenFile(target, flags, 0644)
			if err != nil {
				return nil, err
			}
			defer file.Close()

			n, err := file.WriteString(content)
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"path":  pathValue,
				"bytes": n,
			}, nil
		},
	}
}

func resolvePathInWorkspace(workspaceRoot string, pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return "", fmt.Errorf("path is required")
	}
	if strings.Contains(pathValue, "://") {
		return "", fmt.Errorf("path must be a local file")
	}
	candidate := pathValue
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(workspaceRoot, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(workspaceRoot, candidate)
	if err != nil {
		return "", err
	}
	if rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..") {
		return candidate, nil
	}
	return "", fmt.Errorf("path %q is outside workspace root", pathValue)
}

func readFileWithLimit(path string, limit int64) ([]byte, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	return readWithLimit(file, limit)
}

func readWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	if limit <= 0 {
		limit = defaultMaxReadBytes
	}

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, limit); err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}

	extra := make([]byte, 1)
	n, _ := r.Read(extra)
	return buf.Bytes(), n > 0, nil
}

func toInt64(value interface{}, fallback int64) int64 {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return fallback
}
