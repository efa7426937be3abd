package agent

import (
	"encoding/json"
	"fmt"

	"github.com/harborpoint/netchat/services/chat/datatypes"
	"github.com/harborpoint/netchat/services/llm"
)

// systemInstruction is the single fixed system prompt for every turn.
const systemInstruction = "You are a helpful assistant in a corporate network operations environment. " +
	"You can call tools to look up network inventory data (prefixes, devices, circuits, locations, providers) when that helps. " +
	"Use tools only when needed; otherwise answer from your own knowledge. " +
	"Maintain conversation context and respond clearly and concisely."

// contextWindow is how many prior turns are forwarded to the model.
const contextWindow = 5

// buildContext assembles the ordered message list for a completion call:
// the system instruction, the last contextWindow prior turns, then the new
// user message.
//
// User turns pass through verbatim. An assistant turn that carried exactly
// one successful citation is re-expanded into an assistant-with-tool-call
// message, a synthetic tool-result message replaying the stored invocation,
// and the assistant's text, so the model sees the outcome of its earlier
// tool use. Assistant turns with zero or multiple citations pass through as
// plain text.
func buildContext(conv *datatypes.Conversation, message string) []llm.Message {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemInstruction}}

	turns := conv.Messages
	if len(turns) > contextWindow {
		turns = turns[len(turns)-contextWindow:]
	}

	replaySeq := 0
	for _, turn := range turns {
		if turn.Role == datatypes.RoleUser {
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: turn.Text})
			continue
		}
		if len(turn.Citations) == 1 && turn.Citations[0].Error == "" {
			if replay, ok := replayCitation(conv, turn, &replaySeq); ok {
				messages = append(messages, replay...)
				continue
			}
		}
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: turn.Text})
	}

	return append(messages, llm.Message{Role: llm.RoleUser, Content: message})
}

// replayCitation rebuilds the tool-call exchange behind a single-citation
// assistant turn. It reports false when the cited invocation is no longer
// in the conversation, in which case the turn falls back to plain text.
func replayCitation(conv *datatypes.Conversation, turn datatypes.Turn, seq *int) ([]llm.Message, bool) {
	cite := turn.Citations[0]
	inv := conv.FindInvocation(cite.Tool, cite.Args)
	if inv == nil {
		return nil, false
	}

	args, err := json.Marshal(cite.Args)
	if err != nil {
		return nil, false
	}
	result, err := json.Marshal(inv.Result)
	if err != nil {
		return nil, false
	}

	*seq++
	callID := fmt.Sprintf("replay_%d", *seq)
	return []llm.Message{
		{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{{
				ID:        callID,
				Name:      cite.Tool,
				Arguments: string(args),
			}},
		},
		{Role: llm.RoleTool, ToolCallID: callID, Content: string(result)},
		{Role: llm.RoleAssistant, Content: turn.Text},
	}, true
}
