// Package agent drives one chat turn: it builds model context from the
// conversation, lets the completion API decide between answering and
// requesting tool calls, executes requested calls through the dispatcher,
// and loops until the model answers or the round bound is hit.
package agent

import (
	"context"

	"github.com/harborpoint/netchat/services/chat/datatypes"
)

// Result is everything one chat turn produced. Callers append the turn and
// the new invocations to the conversation and persist.
type Result struct {
	// Answer is the assistant's final text. Never empty.
	Answer string

	// Citations record every tool call executed or reused for this turn,
	// in execution order.
	Citations []datatypes.CitationRef

	// Invocations are the new durable tool records created this turn.
	// Reused calls with byte-identical arguments create none.
	Invocations []datatypes.ToolInvocation

	// Data carries an auxiliary payload when a citation requested a
	// non-default representation (table, csv, dataframe). Nil otherwise.
	Data *datatypes.ResponseData
}

// Responder produces an assistant reply for one user message against the
// live conversation. Implementations never return an error: every failure
// mode is folded into the Result's answer text.
type Responder interface {
	Respond(ctx context.Context, message string, conv *datatypes.Conversation) *Result
}
