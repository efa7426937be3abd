// Package fallback is the deterministic substitute for the LLM agent,
// used when no completion backend is configured. It is a fixed decision
// tree over the lower-cased message plus conversation history: same
// message and history always yield the same branch, tool, and arguments.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/harborpoint/netchat/services/chat/agent"
	"github.com/harborpoint/netchat/services/chat/datatypes"
	"github.com/harborpoint/netchat/services/chat/observability"
	"github.com/harborpoint/netchat/services/toolserver"
)

// prefixesTool is the single tool the heuristic branches invoke.
const prefixesTool = "get_prefixes_by_location"

// domainKeywords gate the tree: a message with none of these is general
// conversation, no tools.
var domainKeywords = []string{
	"prefix", "network", "subnet", "ip",
	"location", "branch", "office", "hq", "dallas", "austin",
}

// followUpIndicators mark referential phrasing that leans on history.
var followUpIndicators = []string{
	"it", "them", "those", "this", "that", "the",
	"show", "give", "get", "as", "in",
	"can you", "please", "format", "put", "make", "provide",
}

var dataNouns = []string{"prefix", "network", "subnet", "ip"}

var locationWords = []string{"location", "branch", "office", "hq", "dallas", "austin"}

// Responder implements agent.Responder without a model.
type Responder struct {
	tools     toolserver.Dispatcher
	extractor LocationExtractor
	now       func() time.Time
}

// New builds the heuristic responder. A nil extractor gets the standard
// heuristic one.
func New(tools toolserver.Dispatcher, extractor LocationExtractor) *Responder {
	if extractor == nil {
		extractor = HeuristicExtractor{}
	}
	return &Responder{tools: tools, extractor: extractor, now: time.Now}
}

// Respond implements agent.Responder. Branches are evaluated in fixed
// priority order; at most one tool call is made per turn.
func (r *Responder) Respond(ctx context.Context, message string, conv *datatypes.Conversation) *agent.Result {
	lower := strings.ToLower(message)
	res := &agent.Result{
		Citations:   []datatypes.CitationRef{},
		Invocations: []datatypes.ToolInvocation{},
	}

	// Follow-ups like "show that as a table" carry no domain keyword of
	// their own; they pass the gate on the strength of the history.
	isFollowUp := len(conv.Messages) > 0 &&
		containsAny(lower, followUpIndicators...) &&
		historyMentionsDomain(conv)

	if !containsAny(lower, domainKeywords...) && !isFollowUp {
		res.Answer = generalReply(lower)
		return res
	}

	if isFollowUp {
		location := r.locationFromHistory(conv)
		format := resolveFormat(message, true)
		slog.Debug("fallback follow-up branch", "location", location, "format", format)
		r.queryPrefixes(ctx, conv, res, location, format)
		return res
	}

	if containsAny(lower, dataNouns...) && containsAny(lower, locationWords...) {
		location, found := r.extractor.Extract(message)
		if !found {
			location = DefaultLocation
		}
		format := resolveFormat(message, false)
		slog.Debug("fallback direct-query branch", "location", location, "format", format)
		r.queryPrefixes(ctx, conv, res, location, format)
		return res
	}

	if containsAny(lower, "help", "what can you do", "capabilities") {
		res.Answer = helpReply
		return res
	}

	res.Answer = generalReply(lower)
	return res
}

// historyMentionsDomain reports whether any prior turn talked about the
// network data this responder can query.
func historyMentionsDomain(conv *datatypes.Conversation) bool {
	var sb strings.Builder
	for _, turn := range conv.Messages {
		sb.WriteString(turn.Text)
		sb.WriteString(" ")
	}
	history := strings.ToLower(sb.String())
	return containsAny(history, "prefix", "network", "branch office")
}

// locationFromHistory scans prior user turns newest-first for an
// extractable location reference.
func (r *Responder) locationFromHistory(conv *datatypes.Conversation) string {
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		turn := conv.Messages[i]
		if turn.Role != datatypes.RoleUser {
			continue
		}
		if location, found := r.extractor.Extract(turn.Text); found {
			return location
		}
	}
	return DefaultLocation
}

// queryPrefixes performs the single tool call shared by the follow-up and
// direct-query branches, reusing a stored result when the same query
// already succeeded this session.
func (r *Responder) queryPrefixes(ctx context.Context, conv *datatypes.Conversation, res *agent.Result, location, format string) {
	args := map[string]any{"location_name": location, "format": format}

	var result map[string]any
	invoked := false
	if prior := conv.FindInvocation(prefixesTool, args); prior != nil {
		observability.ToolCalls.WithLabelValues(prefixesTool, "memoized").Inc()
		result = prior.Result
		if reflect.DeepEqual(prior.Args, args) {
			res.Citations = append(res.Citations, datatypes.CitationRef{
				Tool: prefixesTool, Args: args, Round: prior.Round,
			})
			res.Answer = renderAnswer(location, format, result)
			res.Data = responseData(format, result)
			return
		}
	} else {
		result = r.tools.Invoke(ctx, prefixesTool, args)
		invoked = true
	}

	inv := datatypes.ToolInvocation{
		Tool:      prefixesTool,
		Args:      args,
		Result:    result,
		Timestamp: r.now(),
		Round:     1,
		Index:     1,
	}
	conv.Tools = append(conv.Tools, inv)
	res.Invocations = append(res.Invocations, inv)

	cite := datatypes.CitationRef{Tool: prefixesTool, Args: args, Round: 1}
	status := "ok"
	if msg, failed := result["error"].(string); failed {
		cite.Error = msg
		status = "error"
	}
	res.Citations = append(res.Citations, cite)
	if invoked {
		observability.ToolCalls.WithLabelValues(prefixesTool, status).Inc()
	}

	res.Answer = renderAnswer(location, format, result)
	res.Data = responseData(format, result)
}

// renderAnswer turns a tool result into user-facing text for the chosen
// format.
func renderAnswer(location, format string, result map[string]any) string {
	if msg, failed := result["error"].(string); failed {
		return fmt.Sprintf("Sorry, I ran into an error while looking up prefixes for %s: %s", location, msg)
	}

	success, _ := result["success"].(bool)
	if !success || result["data"] == nil {
		if msg, ok := result["message"].(string); ok && msg != "" {
			return msg
		}
		return fmt.Sprintf("No prefixes found at %s.", location)
	}

	switch format {
	case "table":
		text, _ := result["data"].(string)
		return fmt.Sprintf("Prefixes at %s:\n\n%s", location, text)
	case "csv":
		return fmt.Sprintf("CSV export generated for %s (%d prefixes). Columns: prefix, network, subnet, status, description.",
			location, resultCount(result))
	case "dataframe":
		return fmt.Sprintf("Analysis complete for %s: %d prefixes with summary statistics attached.",
			location, resultCount(result))
	default:
		return renderJSONAnswer(location, result)
	}
}

func renderJSONAnswer(location string, result map[string]any) string {
	items, _ := result["data"].([]any)
	names := make([]string, 0, 5)
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if p, ok := entry["prefix"].(string); ok {
			names = append(names, p)
		}
		if len(names) == 5 {
			break
		}
	}

	answer := fmt.Sprintf("Found %d prefixes at %s.", len(items), location)
	switch {
	case len(items) == 0:
		return answer
	case len(items) <= 5:
		return fmt.Sprintf("%s All prefixes: %s", answer, strings.Join(names, ", "))
	default:
		return fmt.Sprintf("%s First 5 prefixes: %s (and %d more)",
			answer, strings.Join(names, ", "), len(items)-5)
	}
}

func resultCount(result map[string]any) int {
	if n, ok := result["count"].(float64); ok {
		return int(n)
	}
	if items, ok := result["data"].([]any); ok {
		return len(items)
	}
	return 0
}

func responseData(format string, result map[string]any) *datatypes.ResponseData {
	if format == "json" {
		return nil
	}
	if _, failed := result["error"]; failed {
		return nil
	}
	return &datatypes.ResponseData{Tool: prefixesTool, Format: format, Result: result}
}

const helpReply = `I can look up network inventory data for you. Try:

- "What prefixes are at Branch Office 3?" (JSON listing)
- "Show me prefixes at HQ-Dallas as a table"
- "Export prefixes from Campus A to CSV"
- "Analyze prefixes at Lab-Austin"

I keep conversation context, so follow-ups like "show that as a table" work too.`

const capabilityReply = `I'm an assistant for network infrastructure data. I can look up prefixes by location, render them as tables or CSV exports, and run summary analysis. Ask me about a specific location to get started.`

// generalReply covers the no-tools branch: greetings, thanks, farewells,
// and a capability description for everything else.
func generalReply(lower string) string {
	switch {
	case containsAny(lower, "hello", "hi", "hey", "greetings"):
		return "Hello! I can help you explore network inventory data: prefixes, devices, and circuits by location. What would you like to look at?"
	case containsAny(lower, "how are you", "how do you do"):
		return "Doing well, thanks. Ready when you are; ask me about prefixes at any location."
	case containsAny(lower, "thanks", "thank you", "appreciate"):
		return "You're welcome! Anything else you'd like to look up?"
	case containsAny(lower, "bye", "goodbye", "see you", "later"):
		return "Goodbye! Come back any time you need network data."
	default:
		return capabilityReply
	}
}
