// Package llm abstracts the outbound chat-completion API.
//
// The contract is messages-in, and either free text or a batch of
// requested tool invocations out. Backends translate these neutral
// types to their own wire format; nothing above this package should
// import a vendor SDK.
package llm

import (
	"context"
	"encoding/json"
)

// Message roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in the completion request. Assistant messages may
// carry tool-call requests; tool messages carry the ToolCallID they answer.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a tool invocation requested by the model. Arguments is the
// raw JSON string exactly as the model produced it; callers are expected
// to tolerate malformed payloads.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSpec describes one callable function offered to the model.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Completion is the model's reply: either Content, or one or more
// ToolCalls the caller must execute and feed back.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// CompletionClient is the standard interface for any completion backend.
// Passing an empty tools slice disables function calling for that request.
type CompletionClient interface {
	Complete(ctx context.Context, messages []Message, tools []ToolSpec) (*Completion, error)
}
