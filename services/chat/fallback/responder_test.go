package fallback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborpoint/netchat/services/chat/datatypes"
	"github.com/harborpoint/netchat/services/llm"
)

type recordedCall struct {
	tool string
	args map[string]any
}

type fakeDispatcher struct {
	result map[string]any
	calls  []recordedCall
}

func (d *fakeDispatcher) ListTools(ctx context.Context) []llm.ToolSpec { return nil }

func (d *fakeDispatcher) Invoke(ctx context.Context, tool string, args map[string]any) map[string]any {
	d.calls = append(d.calls, recordedCall{tool: tool, args: args})
	return d.result
}

func prefixesResult(n int) map[string]any {
	data := make([]any, 0, n)
	for i := 0; i < n; i++ {
		data = append(data, map[string]any{"prefix": "10.0." + string(rune('0'+i)) + ".0/24"})
	}
	return map[string]any{"success": true, "count": float64(n), "data": data}
}

func TestRespond_GeneralConversation(t *testing.T) {
	tools := &fakeDispatcher{}
	r := New(tools, nil)
	conv := datatypes.NewConversation("session_3_1", time.Now())

	t.Run("greeting", func(t *testing.T) {
		res := r.Respond(context.Background(), "Hello there!", conv)
		assert.Contains(t, res.Answer, "Hello")
		assert.Empty(t, res.Citations)
		assert.Empty(t, tools.calls)
	})

	t.Run("thanks", func(t *testing.T) {
		res := r.Respond(context.Background(), "thanks, that was useful", conv)
		assert.Contains(t, res.Answer, "welcome")
		assert.Empty(t, res.Citations)
	})

	t.Run("unrelated message gets capability text", func(t *testing.T) {
		res := r.Respond(context.Background(), "tell me a story", conv)
		assert.Contains(t, res.Answer, "network infrastructure")
		assert.Empty(t, res.Citations)
	})
}

func TestRespond_DirectQuery(t *testing.T) {
	tools := &fakeDispatcher{result: prefixesResult(3)}
	r := New(tools, nil)
	conv := datatypes.NewConversation("session_3_2", time.Now())

	res := r.Respond(context.Background(), "What prefixes are at Branch Office 3?", conv)

	require.Len(t, tools.calls, 1)
	assert.Equal(t, "get_prefixes_by_location", tools.calls[0].tool)
	assert.Equal(t, "Branch Office 3", tools.calls[0].args["location_name"])
	assert.Equal(t, "json", tools.calls[0].args["format"])

	assert.True(t, len(res.Answer) > 0)
	assert.Contains(t, res.Answer, "Found 3 prefixes at Branch Office 3.")

	require.Len(t, res.Citations, 1)
	assert.Equal(t, "get_prefixes_by_location", res.Citations[0].Tool)
	assert.Equal(t, 1, res.Citations[0].Round)
	assert.Empty(t, res.Citations[0].Error)

	require.Len(t, res.Invocations, 1)
	assert.Equal(t, 1, res.Invocations[0].Round)
	assert.Equal(t, 1, res.Invocations[0].Index)

	assert.Nil(t, res.Data, "json format carries no auxiliary payload")
}

func TestRespond_FollowUpReusesHistory(t *testing.T) {
	now := time.Now()
	conv := datatypes.NewConversation("session_3_3", now)
	conv.Messages = []datatypes.Turn{
		{Role: datatypes.RoleUser, Text: "What prefixes are at Branch Office 3?", Timestamp: now},
		{Role: datatypes.RoleAssistant, Text: "Found 3 prefixes at Branch Office 3.", Timestamp: now},
	}
	conv.Tools = []datatypes.ToolInvocation{{
		Tool:      "get_prefixes_by_location",
		Args:      map[string]any{"location_name": "Branch Office 3", "format": "json"},
		Result:    prefixesResult(3),
		Timestamp: now,
		Round:     1,
		Index:     1,
	}}

	tools := &fakeDispatcher{}
	r := New(tools, nil)

	res := r.Respond(context.Background(), "show that as a table", conv)

	// Location comes from history, format from the current message, and
	// the stored result is reused without another dispatch.
	assert.Empty(t, tools.calls)
	require.Len(t, res.Citations, 1)
	assert.Equal(t, "Branch Office 3", res.Citations[0].Args["location_name"])
	assert.Equal(t, "table", res.Citations[0].Args["format"])

	require.Len(t, res.Invocations, 1)
	assert.Equal(t, "table", res.Invocations[0].Args["format"])

	require.NotNil(t, res.Data)
	assert.Equal(t, "table", res.Data.Format)
}

func TestRespond_FollowUpDispatchesWhenNothingStored(t *testing.T) {
	now := time.Now()
	conv := datatypes.NewConversation("session_3_4", now)
	conv.Messages = []datatypes.Turn{
		{Role: datatypes.RoleUser, Text: "Tell me about the network at Campus B", Timestamp: now},
		{Role: datatypes.RoleAssistant, Text: "Campus B hosts the lab network.", Timestamp: now},
	}

	tools := &fakeDispatcher{result: prefixesResult(2)}
	r := New(tools, nil)

	res := r.Respond(context.Background(), "show them as a table", conv)

	require.Len(t, tools.calls, 1)
	assert.Equal(t, "Campus B", tools.calls[0].args["location_name"])
	assert.Equal(t, "table", tools.calls[0].args["format"])
	require.Len(t, res.Citations, 1)
}

func TestRespond_DispatchErrorSurfacesInCitation(t *testing.T) {
	tools := &fakeDispatcher{result: map[string]any{"error": "timeout"}}
	r := New(tools, nil)
	conv := datatypes.NewConversation("session_3_5", time.Now())

	res := r.Respond(context.Background(), "What prefixes are at HQ-Dallas?", conv)

	require.Len(t, res.Citations, 1)
	assert.Equal(t, "timeout", res.Citations[0].Error)
	assert.Contains(t, res.Answer, "error")
	assert.Contains(t, res.Answer, "HQ-Dallas")
	assert.Nil(t, res.Data)
}

func TestRespond_HelpBranch(t *testing.T) {
	tools := &fakeDispatcher{}
	r := New(tools, nil)
	conv := datatypes.NewConversation("session_3_6", time.Now())

	// "help" alone has no domain keyword, so route through a domain word.
	res := r.Respond(context.Background(), "help, what can you do with network data?", conv)

	assert.Contains(t, res.Answer, "look up")
	assert.Empty(t, res.Citations)
	assert.Empty(t, tools.calls)
}

func TestRespond_Deterministic(t *testing.T) {
	message := "What prefixes are at Lab-Austin?"

	first := func() *datatypes.CitationRef {
		tools := &fakeDispatcher{result: prefixesResult(1)}
		conv := datatypes.NewConversation("session_3_7", time.Now())
		res := New(tools, nil).Respond(context.Background(), message, conv)
		require.Len(t, res.Citations, 1)
		return &res.Citations[0]
	}

	a, b := first(), first()
	assert.Equal(t, a.Tool, b.Tool)
	assert.Equal(t, a.Args, b.Args)
	assert.Equal(t, a.Round, b.Round)
}

func TestHeuristicExtractor(t *testing.T) {
	e := HeuristicExtractor{}

	t.Run("known location keeps original casing", func(t *testing.T) {
		loc, found := e.Extract("What prefixes are at Branch Office 3?")
		require.True(t, found)
		assert.Equal(t, "Branch Office 3", loc)
	})

	t.Run("known typo still matches", func(t *testing.T) {
		loc, found := e.Extract("prefixes at branch ofice 3 please")
		require.True(t, found)
		assert.Equal(t, "branch ofice 3", loc)
	})

	t.Run("pattern capture after preposition", func(t *testing.T) {
		loc, found := e.Extract("list subnets for Westgate-Annex")
		require.True(t, found)
		assert.Equal(t, "Westgate-Annex", loc)
	})

	t.Run("denylisted captures are rejected", func(t *testing.T) {
		_, found := e.Extract("show me the prefixes")
		assert.False(t, found)
	})

	t.Run("no reference found", func(t *testing.T) {
		_, found := e.Extract("hello")
		assert.False(t, found)
	})
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		followUp bool
		want     string
	}{
		{"default json", "What prefixes are at Campus A?", false, "json"},
		{"table keyword", "show prefixes as a table", false, "table"},
		{"csv keyword", "export prefixes to csv", false, "csv"},
		{"dataframe keyword", "analyze the prefixes", false, "dataframe"},
		{"imperative follow-up defaults to table", "give me those prefixes", true, "table"},
		{"imperative non-follow-up stays json", "give me prefixes at Campus A", false, "json"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolveFormat(tc.message, tc.followUp))
		})
	}
}
