// Package toolserver talks to an external tool server: catalog discovery
// over GET /tools and tool invocation over POST /tools/{name}:invoke.
//
// Invocation results are always JSON-compatible maps. Failures of any kind
// (transport, bad tool name, downstream error) are normalized in-band to
// {"error": message} so callers never need error handling at this boundary.
package toolserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/harborpoint/netchat/services/llm"
)

// Dispatcher is the narrow surface the agent loop and fallback responder
// depend on. It is passed in explicitly per request or per service instance;
// there is no package-level client registry.
type Dispatcher interface {
	// ListTools returns the available tool specs. Discovery failures degrade
	// to an empty catalog, never an error.
	ListTools(ctx context.Context) []llm.ToolSpec

	// Invoke executes one named tool call. The result is always non-nil;
	// failures carry an "error" key instead of a normal payload.
	Invoke(ctx context.Context, tool string, args map[string]any) map[string]any
}

// Client is an HTTP Dispatcher for one configured tool server.
type Client struct {
	name     string
	baseURL  string
	apiKey   string
	fallback []llm.ToolSpec
	http     *http.Client
}

// NewClient builds a client for a named tool server. The timeout is owned
// here; no retries are performed at this layer.
func NewClient(name, baseURL, apiKey string) *Client {
	return &Client{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithFallbackCatalog sets a static catalog served when discovery fails.
// Without it, discovery failures degrade to an empty catalog.
func (c *Client) WithFallbackCatalog(specs []llm.ToolSpec) *Client {
	c.fallback = specs
	return c
}

// Name returns the configured server name.
func (c *Client) Name() string { return c.name }

type catalogResponse struct {
	Tools []struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"input_schema"`
	} `json:"tools"`
}

// ListTools discovers the server's tool catalog. Idempotent and
// side-effect-free; on any failure it logs and degrades to the configured
// fallback catalog (empty by default), never an error.
func (c *Client) ListTools(ctx context.Context) []llm.ToolSpec {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tools", nil)
	if err != nil {
		slog.Error("failed to build tool discovery request", "server", c.name, "error", err)
		return c.fallback
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("tool discovery failed, degrading to fallback catalog", "server", c.name, "error", err)
		return c.fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("tool discovery returned non-200, degrading to fallback catalog",
			"server", c.name, "status", resp.StatusCode)
		return c.fallback
	}

	var catalog catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		slog.Warn("failed to decode tool catalog, degrading to fallback catalog", "server", c.name, "error", err)
		return c.fallback
	}

	specs := make([]llm.ToolSpec, 0, len(catalog.Tools))
	for _, t := range catalog.Tools {
		specs = append(specs, llm.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}
	slog.Debug("discovered tool catalog", "server", c.name, "tools", len(specs))
	return specs
}

// Invoke executes one tool call against the server. The backing service
// wraps payloads as {"result": ...}; that envelope is unwrapped exactly once.
func (c *Client) Invoke(ctx context.Context, tool string, args map[string]any) map[string]any {
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to encode arguments: %v", err))
	}

	url := fmt.Sprintf("%s/tools/%s:invoke", c.baseURL, tool)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errorResult(fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("tool invocation failed", "server", c.name, "tool", tool, "error", err)
		return errorResult(err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to read response: %v", err))
	}
	if resp.StatusCode != http.StatusOK {
		slog.Warn("tool invocation returned non-200",
			"server", c.name, "tool", tool, "status", resp.StatusCode)
		return errorResult(fmt.Sprintf("tool server returned status %d: %s", resp.StatusCode, truncate(string(raw), 200)))
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return errorResult(fmt.Sprintf("failed to decode response: %v", err))
	}
	return unwrapResult(decoded)
}

// unwrapResult strips the {"result": {...}} envelope once. Anything else
// passes through untouched, including in-band {"error": ...} values.
func unwrapResult(decoded map[string]any) map[string]any {
	inner, ok := decoded["result"]
	if !ok {
		return decoded
	}
	if m, ok := inner.(map[string]any); ok {
		return m
	}
	// Non-object payloads keep a uniform map shape for callers.
	return map[string]any{"result": inner}
}

func errorResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
