package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborpoint/netchat/services/chat/exporters"
	"github.com/harborpoint/netchat/services/chat/middleware"
	"github.com/harborpoint/netchat/services/chat/store"
)

// HandleExport writes the live conversation's transcript to disk in the
// requested format (json or markdown) and reports the file path.
func HandleExport(conversations store.ConversationStore, exporter *exporters.Exporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := middleware.SessionID(c)
		format := c.Param("format")

		conv, err := conversations.GetOrCreate(c.Request.Context(), sessionID)
		if err != nil {
			slog.Error("failed to load conversation", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
			return
		}
		if len(conv.Messages) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to export"})
			return
		}

		path, err := exporter.Export(format, conv.Messages)
		if errors.Is(err, exporters.ErrUnknownFormat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json or markdown"})
			return
		}
		if err != nil {
			slog.Error("transcript export failed", "session_id", sessionID, "format", format, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}

		slog.Info("transcript exported", "session_id", sessionID, "format", format, "path", path)
		c.JSON(http.StatusOK, gin.H{"status": "success", "format": format, "path": path})
	}
}
