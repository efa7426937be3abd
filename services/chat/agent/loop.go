package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/harborpoint/netchat/services/chat/datatypes"
	"github.com/harborpoint/netchat/services/chat/observability"
	"github.com/harborpoint/netchat/services/llm"
	"github.com/harborpoint/netchat/services/toolserver"
)

// maxRounds bounds the propose-execute-reconsult cycle within one turn.
// At the bound, one final tools-disabled completion forces an answer.
const maxRounds = 5

// errorAnswerPrefix prefixes the assistant text when a turn fails outright.
const errorAnswerPrefix = "Error processing request: "

// emptyAnswerFallback replaces an empty final answer; an empty assistant
// turn is never persisted.
const emptyAnswerFallback = "I'm sorry, I couldn't come up with an answer for that. Please try rephrasing your question."

// enrichedFormats are the representations that trigger the auxiliary
// response-data payload.
var enrichedFormats = map[string]bool{"table": true, "csv": true, "dataframe": true}

// Agent is the LLM-backed Responder. It holds no per-turn state; the
// conversation passed to Respond carries everything.
type Agent struct {
	client llm.CompletionClient
	tools  toolserver.Dispatcher
	tracer trace.Tracer
	now    func() time.Time
}

// New builds an agent over a completion backend and a tool dispatcher.
func New(client llm.CompletionClient, tools toolserver.Dispatcher) *Agent {
	return &Agent{
		client: client,
		tools:  tools,
		tracer: otel.Tracer("netchat/agent"),
		now:    time.Now,
	}
}

// Respond implements Responder. It mutates conv.Tools in place as calls
// execute so that later rounds (and the memoization lookup) see results
// from earlier ones; the caller persists the arrays afterwards.
func (a *Agent) Respond(ctx context.Context, message string, conv *datatypes.Conversation) *Result {
	ctx, span := a.tracer.Start(ctx, "agent.respond")
	defer span.End()

	res := &Result{
		Citations:   []datatypes.CitationRef{},
		Invocations: []datatypes.ToolInvocation{},
	}

	catalog := a.tools.ListTools(ctx)
	messages := buildContext(conv, message)

	var answer string
	rounds := 0
	for round := 1; round <= maxRounds; round++ {
		rounds = round

		completion, err := a.client.Complete(ctx, messages, catalog)
		if err != nil {
			slog.Error("completion call failed", "round", round, "error", err)
			return a.failure(res, err)
		}
		if len(completion.ToolCalls) == 0 {
			answer = completion.Content
			break
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})

		appendIdx := 0
		for _, call := range completion.ToolCalls {
			result := a.executeCall(ctx, conv, res, call, round, &appendIdx)
			encoded, err := json.Marshal(result)
			if err != nil {
				encoded = []byte(`{"error":"unencodable tool result"}`)
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    string(encoded),
			})
		}

		if round == maxRounds {
			slog.Warn("round bound reached, forcing final answer", "rounds", maxRounds)
			final, err := a.client.Complete(ctx, messages, nil)
			if err != nil {
				slog.Error("final tools-disabled completion failed", "error", err)
				return a.failure(res, err)
			}
			answer = final.Content
			break
		}
	}

	if answer == "" {
		answer = emptyAnswerFallback
	}
	res.Answer = answer
	res.Data = buildResponseData(conv, res.Citations)

	span.SetAttributes(
		attribute.Int("agent.rounds", rounds),
		attribute.Int("agent.tool_calls", len(res.Citations)),
	)
	observability.AgentRounds.Observe(float64(rounds))
	return res
}

// executeCall runs one requested tool call: parse arguments, serve from a
// memoized prior result when possible, otherwise dispatch, then record the
// invocation and its citation. Returns the result fed back to the model.
func (a *Agent) executeCall(ctx context.Context, conv *datatypes.Conversation, res *Result, call llm.ToolCall, round int, appendIdx *int) map[string]any {
	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			slog.Warn("malformed tool arguments, degrading to empty args",
				"tool", call.Name, "error", err)
			args = map[string]any{}
		}
	}

	if prior := conv.FindInvocation(call.Name, args); prior != nil {
		observability.ToolCalls.WithLabelValues(call.Name, "memoized").Inc()
		slog.Debug("reusing stored tool result", "tool", call.Name, "prior_round", prior.Round)

		if reflect.DeepEqual(prior.Args, args) {
			// Byte-identical repeat: cite the existing invocation rather
			// than duplicating it.
			res.Citations = append(res.Citations, datatypes.CitationRef{
				Tool: call.Name, Args: args, Round: prior.Round,
			})
			return prior.Result
		}
		// Same query, different format: record a new invocation carrying
		// the stored result without re-dispatching.
		a.record(conv, res, call.Name, args, prior.Result, round, appendIdx)
		return prior.Result
	}

	result := a.tools.Invoke(ctx, call.Name, args)
	a.record(conv, res, call.Name, args, result, round, appendIdx)
	return result
}

func (a *Agent) record(conv *datatypes.Conversation, res *Result, tool string, args, result map[string]any, round int, appendIdx *int) {
	*appendIdx++
	inv := datatypes.ToolInvocation{
		Tool:      tool,
		Args:      args,
		Result:    result,
		Timestamp: a.now(),
		Round:     round,
		Index:     *appendIdx,
	}
	conv.Tools = append(conv.Tools, inv)
	res.Invocations = append(res.Invocations, inv)

	cite := datatypes.CitationRef{Tool: tool, Args: args, Round: round}
	status := "ok"
	if msg, failed := result["error"].(string); failed {
		cite.Error = msg
		status = "error"
	}
	res.Citations = append(res.Citations, cite)
	observability.ToolCalls.WithLabelValues(tool, status).Inc()
}

// failure folds a completion error into a regular assistant answer. Tool
// invocations that already executed stay recorded; citations are dropped
// because the turn produced no answer grounded in them.
func (a *Agent) failure(res *Result, err error) *Result {
	res.Answer = errorAnswerPrefix + err.Error()
	res.Citations = []datatypes.CitationRef{}
	res.Data = nil
	return res
}

// buildResponseData derives the auxiliary payload for the first citation
// that requested a non-default representation, from the already-stored
// result. Never re-invokes a tool.
func buildResponseData(conv *datatypes.Conversation, citations []datatypes.CitationRef) *datatypes.ResponseData {
	for _, cite := range citations {
		if cite.Error != "" {
			continue
		}
		format, _ := cite.Args["format"].(string)
		if !enrichedFormats[format] {
			continue
		}
		if inv := conv.FindInvocation(cite.Tool, cite.Args); inv != nil {
			return &datatypes.ResponseData{
				Tool:   cite.Tool,
				Format: format,
				Result: inv.Result,
			}
		}
	}
	return nil
}
