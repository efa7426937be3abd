// Package datatypes provides the conversation data model for the chat
// service: turns, tool invocations, citations, and archives.
package datatypes

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ArchiveTitlePlaceholder is used when an archived conversation holds no
// user turn to derive a title from.
const ArchiveTitlePlaceholder = "Untitled conversation"

// archiveTitleMaxLen is the truncation point for derived archive titles.
const archiveTitleMaxLen = 50

// Turn is one message in a conversation. Turns are append-only and never
// mutated or reordered after creation. Citations are populated on assistant
// turns only.
type Turn struct {
	Role      string        `json:"role"`
	Text      string        `json:"text"`
	Citations []CitationRef `json:"citations,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// CitationRef is a provenance pointer embedded in an assistant Turn. It
// correlates 1:1 with a ToolInvocation holding the same (tool, args),
// except when the call failed; then Error is set and no invocation is
// guaranteed to exist.
type CitationRef struct {
	Tool  string         `json:"tool"`
	Args  map[string]any `json:"args"`
	Round int            `json:"round"`
	Error string         `json:"error,omitempty"`
}

// ToolInvocation is a durable record of one external tool call and its
// result, tagged with the round it ran in and its index within that round
// (both 1-based). Append-only.
type ToolInvocation struct {
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	Result    map[string]any `json:"result"`
	Timestamp time.Time      `json:"timestamp"`
	Round     int            `json:"round"`
	Index     int            `json:"index"`
}

// Succeeded reports whether the stored result is usable for memoized reuse.
func (inv *ToolInvocation) Succeeded() bool {
	if inv.Result == nil {
		return false
	}
	_, failed := inv.Result["error"]
	return !failed
}

// Conversation is the live document for one session: two append-only logs,
// messages and tool invocations. Exactly one live Conversation exists per
// session id.
type Conversation struct {
	SessionID string           `json:"session_id"`
	Messages  []Turn           `json:"messages"`
	Tools     []ToolInvocation `json:"tools"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewConversation returns an empty conversation for the session.
func NewConversation(sessionID string, now time.Time) *Conversation {
	return &Conversation{
		SessionID: sessionID,
		Messages:  []Turn{},
		Tools:     []ToolInvocation{},
		CreatedAt: now,
	}
}

// InvocationKey builds the memoization identity for a tool call. The
// "format" argument is excluded: the backing service ignores it and always
// returns raw JSON, so differently-formatted views of the same query share
// one stored result.
func InvocationKey(tool string, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		if k == "format" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	canonical := make(map[string]any, len(keys))
	for _, k := range keys {
		canonical[k] = args[k]
	}
	encoded, err := json.Marshal(canonical)
	if err != nil {
		encoded = []byte("{}")
	}
	return tool + ":" + string(encoded)
}

// FindInvocation returns the most recent successful invocation matching the
// memoization identity of (tool, args), or nil. Used to avoid redundant
// external calls within a session.
func (c *Conversation) FindInvocation(tool string, args map[string]any) *ToolInvocation {
	key := InvocationKey(tool, args)
	for i := len(c.Tools) - 1; i >= 0; i-- {
		inv := &c.Tools[i]
		if InvocationKey(inv.Tool, inv.Args) == key && inv.Succeeded() {
			return inv
		}
	}
	return nil
}

// Archive is a point-in-time snapshot of a conversation, created when a
// session is cleared or replaced. Immutable once written.
type Archive struct {
	ID           string           `json:"id"`
	SessionID    string           `json:"session_id"`
	ArchivedAt   time.Time        `json:"archived_at"`
	Messages     []Turn           `json:"messages"`
	Tools        []ToolInvocation `json:"tools"`
	Title        string           `json:"title"`
	MessageCount int              `json:"message_count"`
	FirstMessage string           `json:"first_message"`
}

// NewArchive snapshots the conversation's current state.
func NewArchive(c *Conversation, now time.Time) *Archive {
	firstMessage := ""
	for _, turn := range c.Messages {
		if turn.Role == RoleUser {
			firstMessage = turn.Text
			break
		}
	}
	return &Archive{
		ID:           uuid.NewString(),
		SessionID:    c.SessionID,
		ArchivedAt:   now,
		Messages:     c.Messages,
		Tools:        c.Tools,
		Title:        DeriveTitle(c.Messages),
		MessageCount: len(c.Messages),
		FirstMessage: firstMessage,
	}
}

// DeriveTitle returns the text of the first user turn, truncated to 50
// characters with a "..." suffix when longer, or a fixed placeholder when
// no user turn exists.
func DeriveTitle(turns []Turn) string {
	for _, turn := range turns {
		if turn.Role != RoleUser {
			continue
		}
		if len(turn.Text) > archiveTitleMaxLen {
			return turn.Text[:archiveTitleMaxLen] + "..."
		}
		return turn.Text
	}
	return ArchiveTitlePlaceholder
}
