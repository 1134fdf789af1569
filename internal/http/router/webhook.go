package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/ingest/internal/http/handler"
	"basegraph.app/ingest/internal/http/handler/webhook"
	"basegraph.app/ingest/internal/http/middleware"
)

func WebhookRouter(rg *gin.RouterGroup, h *webhook.WebhookHandler, events *handler.EventHandler, adminAPIKey string) {
	rg.POST("/:platform", h.HandleEvent)
	rg.GET("/events", middleware.RequireAdminAPIKey(adminAPIKey), events.List)
}
