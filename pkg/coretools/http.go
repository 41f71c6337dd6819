package coretools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/toolengine/pkg/toolexecutor"
)

const defaultHTTPTimeout = 15 * time.Second

func fetchTool(opts Options) *toolexecutor.Tool {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	return &toolexecutor.Tool{
		Metadata: toolexecutor.ToolMetadata{
			ID:           "http.fetch",
			Name:         "fetch",
			Description:  "Fetch a URL over HTTP(S).",
			Version:      "1.0.0",
			Category:     toolexecutor.CategoryWeb,
			Tags:         []string{"net", "http"},
			Capabilities: []string{"web.fetch"},
			Protocol:     toolexecutor.ProtocolHTTP,
			Timeout:      timeout,
			RateLimit:    opts.FetchRateLimit,
			Parameters: []toolexecutor.ToolParameter{
				{Name: "url", Type: "string", Description: "Absolute http or https URL", Required: true},
				{Name: "method", Type: "string", Description: "HTTP method", Default: http.MethodGet,
					Enum: []interface{}{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete}},
				{Name: "headers", Type: "object", Description: "Request headers"},
				{Name: "body", Type: "string", Description: "Request body"},
				{Name: "max_bytes", Type: "integer", Description: "Maximum response bytes to read", Default: opts.MaxReadBytes},
			},
			Returns: toolexecutor.ReturnSpec{Type: "object", Description: "status, headers, body, truncated"},
		},
		Validator: func(params map[string]interface{}) error {
			raw, _ := params["url"].(string)
			u, err := url.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid url: %w", err)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("url scheme must be http or https")
			}
			if u.Host == "" {
				return fmt.Errorf("url host is required")
			}
			return nil
		},
		Handler: func(ctx context.Context, params map[string]interface{}, toolCtx *toolexecutor.ToolContext) (interface{}, error) {
			rawURL, _ := params["url"].(string)
			method, _ := params["method"].(string)
			body, _ := params["body"].(string)

			var reqBody io.Reader
			if body != "" {
				reqBody = strings.NewReader(body)
			}

			req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
			if err != nil {
				return nil, fmt.Errorf("failed to build request: %w", err)
			}
			for key, value := range toStringMap(params["headers"]) {
				req.Header.Set(key, value)
			}
			if toolCtx != nil {
				req.Header.Set("X-Execution-ID", toolCtx.ExecutionID)
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			data, truncated, err := readWithLimit(resp.Body, toInt64(params["max_bytes"], opts.MaxReadBytes))
			if err != nil {
				return nil, fmt.Errorf("failed to read response: %w", err)
			}

			log.Debug().
				Str("url", rawURL).
				Int("status", resp.StatusCode).
				Int("bytes", len(data)).
				Msg("HTTP fetch completed")

			headers := make(map[string]interface{}, len(resp.Header))
			for key := range resp.Header {
				headers[key] = resp.Header.Get(key)
			}

			return map[string]interface{}{
				"status":    resp.StatusCode,
				"headers":   headers,
				"body":      string(data),
				"truncated": truncated,
			}, nil
		},
	}
}

func toStringMap(value interface{}) map[string]string {
	out := map[string]string{}
	switch v := value.(type) {
	case map[string]string:
		for key, val := range v {
			out[key] = val
		}
	case map[string]interface{}:
		for key, val := range v {
			out[key] = fmt.Sprint(val)
		}
	}
	return out
}
