package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/ingest/internal/http/handler"
	"basegraph.app/ingest/internal/http/handler/webhook"
	"basegraph.app/ingest/internal/service"
)

type RouterConfig struct {
	AdminAPIKey  string
	MaxBodyBytes int64
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	webhookHandler := webhook.NewWebhookHandler(services.Ingest(), cfg.MaxBodyBytes)
	eventHandler := handler.NewEventHandler(services.Events())
	WebhookRouter(router.Group("/webhooks"), webhookHandler, eventHandler, cfg.AdminAPIKey)
}
