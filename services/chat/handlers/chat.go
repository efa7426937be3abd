// Package handlers holds the gin handlers for the chat service. Handlers
// are constructors: dependencies come in as arguments and a gin.HandlerFunc
// comes out.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harborpoint/netchat/services/chat/agent"
	"github.com/harborpoint/netchat/services/chat/datatypes"
	"github.com/harborpoint/netchat/services/chat/middleware"
	"github.com/harborpoint/netchat/services/chat/observability"
	"github.com/harborpoint/netchat/services/chat/store"
)

// HandleChat processes one chat turn. The first entry of selected_servers
// picks the responder; the rest are ignored.
//
// Persistence failures after the answer is produced are logged and
// swallowed: the user still gets the turn even when the store is down.
func HandleChat(conversations store.ConversationStore, responders map[string]agent.Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		server := req.SelectedServers[0]
		responder, ok := responders[server]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tool server: " + server})
			return
		}

		sessionID := middleware.SessionID(c)
		conv, err := conversations.GetOrCreate(c.Request.Context(), sessionID)
		if err != nil {
			slog.Error("failed to load conversation", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
			return
		}

		// The responder sees only prior turns; both new turns are appended
		// after it answers.
		result := responder.Respond(c.Request.Context(), req.Message, conv)

		now := time.Now()
		conv.Messages = append(conv.Messages,
			datatypes.Turn{Role: datatypes.RoleUser, Text: req.Message, Timestamp: now},
			datatypes.Turn{
				Role:      datatypes.RoleAssistant,
				Text:      result.Answer,
				Citations: result.Citations,
				Timestamp: now,
			},
		)

		if err := conversations.PutTurns(c.Request.Context(), sessionID, conv.Messages); err != nil {
			slog.Error("failed to persist turns, returning unsaved answer",
				"session_id", sessionID, "error", err)
		}
		if err := conversations.PutInvocations(c.Request.Context(), sessionID, conv.Tools); err != nil {
			slog.Error("failed to persist tool invocations",
				"session_id", sessionID, "error", err)
		}

		elapsed := time.Since(start)
		observability.TurnDuration.Observe(elapsed.Seconds())
		observability.ChatTurns.WithLabelValues(server, "ok").Inc()
		slog.Info("chat turn completed",
			"session_id", sessionID,
			"server", server,
			"citations", len(result.Citations),
			"duration_ms", elapsed.Milliseconds())

		c.JSON(http.StatusOK, datatypes.ChatResponse{
			Success:     true,
			Response:    result.Answer,
			Citations:   result.Citations,
			Data:        result.Data,
			ChatHistory: conv.Messages,
			Timing: &datatypes.Timing{
				StartedAt:  start.UnixMilli(),
				DurationMs: elapsed.Milliseconds(),
			},
		})
	}
}
