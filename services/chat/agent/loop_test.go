package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborpoint/netchat/services/chat/datatypes"
	"github.com/harborpoint/netchat/services/llm"
)

// scriptedClient replays a fixed sequence of completions and records what
// it was asked.
type scriptedClient struct {
	script   []*llm.Completion
	err      error
	messages [][]llm.Message
	toolSets [][]llm.ToolSpec
}

func (c *scriptedClient) Complete(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (*llm.Completion, error) {
	c.messages = append(c.messages, messages)
	c.toolSets = append(c.toolSets, tools)
	if c.err != nil {
		return nil, c.err
	}
	if len(c.script) == 0 {
		return nil, errors.New("scripted client exhausted")
	}
	next := c.script[0]
	c.script = c.script[1:]
	return next, nil
}

type recordedCall struct {
	tool string
	args map[string]any
}

// fakeDispatcher serves canned results and records every real invocation.
type fakeDispatcher struct {
	specs   []llm.ToolSpec
	results map[string]map[string]any
	calls   []recordedCall
}

func (d *fakeDispatcher) ListTools(ctx context.Context) []llm.ToolSpec {
	return d.specs
}

func (d *fakeDispatcher) Invoke(ctx context.Context, tool string, args map[string]any) map[string]any {
	d.calls = append(d.calls, recordedCall{tool: tool, args: args})
	if result, ok := d.results[tool]; ok {
		return result
	}
	return map[string]any{"error": "unknown tool: " + tool}
}

func newTestAgent(client llm.CompletionClient, tools *fakeDispatcher) *Agent {
	a := New(client, tools)
	a.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }
	return a
}

func textCompletion(text string) *llm.Completion {
	return &llm.Completion{Content: text}
}

func toolCompletion(calls ...llm.ToolCall) *llm.Completion {
	return &llm.Completion{ToolCalls: calls}
}

func TestRespond_DirectAnswer(t *testing.T) {
	client := &scriptedClient{script: []*llm.Completion{textCompletion("OSPF is a link-state routing protocol.")}}
	tools := &fakeDispatcher{}
	conv := datatypes.NewConversation("session_1_1", time.Now())

	res := newTestAgent(client, tools).Respond(context.Background(), "What is OSPF?", conv)

	assert.Equal(t, "OSPF is a link-state routing protocol.", res.Answer)
	assert.Empty(t, res.Citations)
	assert.Empty(t, res.Invocations)
	assert.Nil(t, res.Data)
	assert.Empty(t, tools.calls)
}

func TestRespond_SingleToolRound(t *testing.T) {
	client := &scriptedClient{script: []*llm.Completion{
		toolCompletion(llm.ToolCall{
			ID:        "call_1",
			Name:      "get_prefixes_by_location",
			Arguments: `{"location_name":"Branch Office 3"}`,
		}),
		textCompletion("Found 3 prefixes at Branch Office 3."),
	}}
	tools := &fakeDispatcher{results: map[string]map[string]any{
		"get_prefixes_by_location": {"success": true, "count": 3},
	}}
	conv := datatypes.NewConversation("session_1_2", time.Now())

	res := newTestAgent(client, tools).Respond(context.Background(), "What prefixes are at Branch Office 3?", conv)

	assert.Equal(t, "Found 3 prefixes at Branch Office 3.", res.Answer)

	require.Len(t, res.Citations, 1)
	assert.Equal(t, "get_prefixes_by_location", res.Citations[0].Tool)
	assert.Equal(t, "Branch Office 3", res.Citations[0].Args["location_name"])
	assert.Equal(t, 1, res.Citations[0].Round)
	assert.Empty(t, res.Citations[0].Error)

	require.Len(t, res.Invocations, 1)
	assert.Equal(t, 1, res.Invocations[0].Round)
	assert.Equal(t, 1, res.Invocations[0].Index)
	assert.Equal(t, true, res.Invocations[0].Result["success"])

	// The result is fed back as a tool message keyed to the call id.
	require.Len(t, client.messages, 2)
	second := client.messages[1]
	last := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, `"success":true`)

	// Conversation sees the new invocation for later memoization.
	assert.Len(t, conv.Tools, 1)
}

func TestRespond_RoundBound(t *testing.T) {
	// The model asks for tools on every round; the loop must stop after
	// round 5 with one final tools-disabled completion.
	script := make([]*llm.Completion, 0, 7)
	for i := 0; i < 5; i++ {
		script = append(script, toolCompletion(llm.ToolCall{
			ID:        "call",
			Name:      "get_locations",
			Arguments: `{}`,
		}))
	}
	// The tools-disabled final call yields text; anything after it must
	// never be consumed.
	script = append(script, textCompletion("Here is what I found."))
	script = append(script, toolCompletion(llm.ToolCall{ID: "never", Name: "get_locations"}))
	client := &scriptedClient{script: script}
	tools := &fakeDispatcher{results: map[string]map[string]any{
		"get_locations": {"success": true, "count": 12},
	}}
	conv := datatypes.NewConversation("session_1_3", time.Now())

	res := newTestAgent(client, tools).Respond(context.Background(), "list everything", conv)

	assert.Equal(t, "Here is what I found.", res.Answer)
	assert.Len(t, client.script, 1, "loop must stop after the forced final call")

	// 5 tool rounds plus the forced final call.
	require.Len(t, client.toolSets, 6)
	assert.Empty(t, client.toolSets[5], "final completion must run with tools disabled")

	// First call dispatches; rounds 2-5 reuse the stored identical result.
	assert.Len(t, tools.calls, 1)
	require.Len(t, res.Citations, 5)
	for _, cite := range res.Citations {
		assert.Equal(t, 1, cite.Round)
	}
}

func TestRespond_MalformedArgumentsDegradeToEmpty(t *testing.T) {
	client := &scriptedClient{script: []*llm.Completion{
		toolCompletion(llm.ToolCall{ID: "call_1", Name: "get_locations", Arguments: `{not json`}),
		textCompletion("done"),
	}}
	tools := &fakeDispatcher{results: map[string]map[string]any{
		"get_locations": {"success": true},
	}}
	conv := datatypes.NewConversation("session_1_4", time.Now())

	res := newTestAgent(client, tools).Respond(context.Background(), "locations?", conv)

	require.Len(t, tools.calls, 1)
	assert.Empty(t, tools.calls[0].args)
	require.Len(t, res.Citations, 1)
	assert.Empty(t, res.Citations[0].Args)
	assert.Empty(t, res.Citations[0].Error)
	assert.Equal(t, "done", res.Answer)
}

func TestRespond_MemoizedReuse(t *testing.T) {
	now := time.Now()
	conv := datatypes.NewConversation("session_1_5", now)
	conv.Tools = []datatypes.ToolInvocation{{
		Tool:      "get_prefixes_by_location",
		Args:      map[string]any{"location_name": "Branch Office 3", "format": "json"},
		Result:    map[string]any{"success": true, "count": float64(3)},
		Timestamp: now,
		Round:     1,
		Index:     1,
	}}

	t.Run("different format reuses result without dispatching", func(t *testing.T) {
		client := &scriptedClient{script: []*llm.Completion{
			toolCompletion(llm.ToolCall{
				ID:        "call_1",
				Name:      "get_prefixes_by_location",
				Arguments: `{"location_name":"Branch Office 3","format":"table"}`,
			}),
			textCompletion("Here is the table."),
		}}
		tools := &fakeDispatcher{}
		res := newTestAgent(client, tools).Respond(context.Background(), "show that as a table", conv)

		assert.Empty(t, tools.calls, "stored result must be reused, not re-fetched")
		require.Len(t, res.Invocations, 1)
		assert.Equal(t, "table", res.Invocations[0].Args["format"])
		assert.Equal(t, float64(3), res.Invocations[0].Result["count"])
		require.Len(t, res.Citations, 1)
		assert.Equal(t, 1, res.Citations[0].Round)
	})

	t.Run("identical arguments cite the existing invocation", func(t *testing.T) {
		conv := datatypes.NewConversation("session_1_6", now)
		conv.Tools = []datatypes.ToolInvocation{{
			Tool:   "get_prefixes_by_location",
			Args:   map[string]any{"location_name": "Branch Office 3", "format": "json"},
			Result: map[string]any{"success": true, "count": float64(3)},
			Round:  2, Index: 1, Timestamp: now,
		}}
		client := &scriptedClient{script: []*llm.Completion{
			toolCompletion(llm.ToolCall{
				ID:        "call_1",
				Name:      "get_prefixes_by_location",
				Arguments: `{"location_name":"Branch Office 3","format":"json"}`,
			}),
			textCompletion("Same as before."),
		}}
		tools := &fakeDispatcher{}
		res := newTestAgent(client, tools).Respond(context.Background(), "ask again", conv)

		assert.Empty(t, tools.calls)
		assert.Empty(t, res.Invocations, "no duplicate invocation for identical args")
		assert.Len(t, conv.Tools, 1)
		require.Len(t, res.Citations, 1)
		assert.Equal(t, 2, res.Citations[0].Round, "citation points at the stored invocation's round")
	})
}

func TestRespond_DispatchErrorBecomesErrorCitation(t *testing.T) {
	client := &scriptedClient{script: []*llm.Completion{
		toolCompletion(llm.ToolCall{
			ID:        "call_1",
			Name:      "get_prefixes_by_location",
			Arguments: `{"location_name":"HQ-Dallas"}`,
		}),
		textCompletion("I couldn't fetch the prefixes because the lookup timed out."),
	}}
	tools := &fakeDispatcher{results: map[string]map[string]any{
		"get_prefixes_by_location": {"error": "timeout"},
	}}
	conv := datatypes.NewConversation("session_1_7", time.Now())

	res := newTestAgent(client, tools).Respond(context.Background(), "prefixes at HQ-Dallas?", conv)

	require.Len(t, res.Citations, 1)
	assert.Equal(t, "timeout", res.Citations[0].Error)
	assert.NotEmpty(t, res.Answer)

	// The failed result is recorded but excluded from memoized reuse.
	require.Len(t, conv.Tools, 1)
	assert.False(t, conv.Tools[0].Succeeded())
}

func TestRespond_CompletionFailure(t *testing.T) {
	client := &scriptedClient{err: errors.New("connection refused")}
	tools := &fakeDispatcher{}
	conv := datatypes.NewConversation("session_1_8", time.Now())

	res := newTestAgent(client, tools).Respond(context.Background(), "hello", conv)

	assert.Equal(t, "Error processing request: connection refused", res.Answer)
	assert.Empty(t, res.Citations)
	assert.Nil(t, res.Data)
}

func TestRespond_EmptyAnswerGetsApology(t *testing.T) {
	client := &scriptedClient{script: []*llm.Completion{textCompletion("")}}
	tools := &fakeDispatcher{}
	conv := datatypes.NewConversation("session_1_9", time.Now())

	res := newTestAgent(client, tools).Respond(context.Background(), "say nothing", conv)

	assert.Equal(t, emptyAnswerFallback, res.Answer)
}

func TestRespond_ResponseDataEnrichment(t *testing.T) {
	client := &scriptedClient{script: []*llm.Completion{
		toolCompletion(llm.ToolCall{
			ID:        "call_1",
			Name:      "get_prefixes_by_location",
			Arguments: `{"location_name":"Campus A","format":"table"}`,
		}),
		textCompletion("Here is the table for Campus A."),
	}}
	tools := &fakeDispatcher{results: map[string]map[string]any{
		"get_prefixes_by_location": {"success": true, "data": "| prefix | status |"},
	}}
	conv := datatypes.NewConversation("session_1_10", time.Now())

	res := newTestAgent(client, tools).Respond(context.Background(), "prefixes at Campus A as a table", conv)

	require.NotNil(t, res.Data)
	assert.Equal(t, "get_prefixes_by_location", res.Data.Tool)
	assert.Equal(t, "table", res.Data.Format)
	assert.Equal(t, "| prefix | status |", res.Data.Result["data"])
}
