package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/harborpoint/netchat/services/chat/datatypes"
	"github.com/harborpoint/netchat/services/chat/middleware"
	"github.com/harborpoint/netchat/services/chat/observability"
	"github.com/harborpoint/netchat/services/chat/store"
)

// defaultArchiveLimit caps an unqualified archive listing.
const defaultArchiveLimit = 20

// HandleClear archives the live conversation and resets it. Clearing an
// empty conversation is a no-op that still reports success.
func HandleClear(conversations store.ConversationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := middleware.SessionID(c)

		archive, err := conversations.ArchiveAndReset(c.Request.Context(), sessionID)
		if err != nil {
			slog.Error("failed to archive conversation", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear conversation"})
			return
		}

		response := gin.H{"status": "success", "archived": archive != nil}
		if archive != nil {
			observability.ArchiveOps.WithLabelValues("create").Inc()
			response["archive_id"] = archive.ID
			response["title"] = archive.Title
		}
		c.JSON(http.StatusOK, response)
	}
}

// HandleHistory returns the live conversation's turns.
func HandleHistory(conversations store.ConversationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := middleware.SessionID(c)

		conv, err := conversations.GetOrCreate(c.Request.Context(), sessionID)
		if err != nil {
			slog.Error("failed to load conversation", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionID,
			"messages":   conv.Messages,
		})
	}
}

// archiveSummary is the listing shape: metadata without the full turn
// and invocation logs.
type archiveSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ArchivedAt   string `json:"archived_at"`
	MessageCount int    `json:"message_count"`
	FirstMessage string `json:"first_message"`
}

func summarize(a datatypes.Archive) archiveSummary {
	return archiveSummary{
		ID:           a.ID,
		Title:        a.Title,
		ArchivedAt:   a.ArchivedAt.Format("2006-01-02T15:04:05Z07:00"),
		MessageCount: a.MessageCount,
		FirstMessage: a.FirstMessage,
	}
}

// HandleListArchives lists the session's archives, newest first.
func HandleListArchives(conversations store.ConversationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := middleware.SessionID(c)

		limit := defaultArchiveLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}

		archives, err := conversations.ListArchives(c.Request.Context(), sessionID, limit)
		if err != nil {
			slog.Error("failed to list archives", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list archives"})
			return
		}

		summaries := make([]archiveSummary, 0, len(archives))
		for _, a := range archives {
			summaries = append(summaries, summarize(a))
		}
		c.JSON(http.StatusOK, gin.H{"archives": summaries})
	}
}

// HandleGetArchive returns one full archive. Foreign-session ids come back
// as 404, indistinguishable from missing ones.
func HandleGetArchive(conversations store.ConversationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := middleware.SessionID(c)
		archiveID := c.Param("id")

		archive, err := conversations.GetArchive(c.Request.Context(), sessionID, archiveID)
		if errors.Is(err, store.ErrArchiveNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "archive not found"})
			return
		}
		if err != nil {
			slog.Error("failed to load archive", "archive_id", archiveID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load archive"})
			return
		}

		c.JSON(http.StatusOK, archive)
	}
}

// HandleDeleteArchive removes one of the session's archives.
func HandleDeleteArchive(conversations store.ConversationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := middleware.SessionID(c)
		archiveID := c.Param("id")

		err := conversations.DeleteArchive(c.Request.Context(), sessionID, archiveID)
		if errors.Is(err, store.ErrArchiveNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "archive not found"})
			return
		}
		if err != nil {
			slog.Error("failed to delete archive", "archive_id", archiveID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete archive"})
			return
		}

		observability.ArchiveOps.WithLabelValues("delete").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_archive_id": archiveID})
	}
}
