// Package routes wires the chat service's HTTP surface.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harborpoint/netchat/services/chat/agent"
	"github.com/harborpoint/netchat/services/chat/exporters"
	"github.com/harborpoint/netchat/services/chat/handlers"
	"github.com/harborpoint/netchat/services/chat/middleware"
	"github.com/harborpoint/netchat/services/chat/store"
)

// Deps carries everything the routes need.
type Deps struct {
	Conversations store.ConversationStore
	Responders    map[string]agent.Responder
	Exporter      *exporters.Exporter
}

// SetupRoutes registers the full HTTP surface on the router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(middleware.Session())
	{
		api.POST("/chat", handlers.HandleChat(deps.Conversations, deps.Responders))
		api.POST("/chat/clear", handlers.HandleClear(deps.Conversations))
		api.GET("/history", handlers.HandleHistory(deps.Conversations))
		api.GET("/export/:format", handlers.HandleExport(deps.Conversations, deps.Exporter))

		archives := api.Group("/archives")
		{
			archives.GET("", handlers.HandleListArchives(deps.Conversations))
			archives.GET("/:id", handlers.HandleGetArchive(deps.Conversations))
			archives.DELETE("/:id", handlers.HandleDeleteArchive(deps.Conversations))
		}
	}
}
