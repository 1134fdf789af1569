package webhook

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/ingest/internal/http/dto"
	"basegraph.app/ingest/internal/service"
)

// WebhookHandler serves POST /webhooks/:platform for every registered platform.
type WebhookHandler struct {
	ingest       service.IngestService
	maxBodyBytes int64
}

func NewWebhookHandler(ingest service.IngestService, maxBodyBytes int64) *WebhookHandler {
	return &WebhookHandler{
		ingest:       ingest,
		maxBodyBytes: maxBodyBytes,
	}
}

func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()
	platform := c.Param("platform")

	body := c.Request.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	result, err := h.ingest.Ingest(ctx, service.IngestRequest{
		Platform: platform,
		Header:   c.Request.Header,
		Query:    c.Request.URL.Query(),
		Body:     body,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPlatform):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform"})
		case errors.Is(err, service.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		case errors.Is(err, service.ErrPayloadTooLarge):
			c.JSON(http.StatusBadRequest, gin.H{"error": "payload too large"})
		case errors.Is(err, service.ErrMalformedPayload):
			slog.WarnContext(ctx, "malformed webhook payload", "platform", platform, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		default:
			slog.ErrorContext(ctx, "failed to ingest webhook", "platform", platform, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process webhook"})
		}
		return
	}

	switch result.Outcome {
	case service.IngestOutcomeChallenge:
		c.JSON(http.StatusOK, dto.ChallengeResponse{Challenge: result.Challenge})
	case service.IngestOutcomeIgnored:
		c.JSON(http.StatusOK, dto.WebhookIgnoredResponse{
			Status:  "ignored",
			Message: "Event type not tracked",
		})
	default:
		c.JSON(http.StatusAccepted, dto.WebhookAcceptedResponse{
			Status:    "accepted",
			EventID:   result.Event.EventID,
			Platform:  string(result.Event.Platform),
			EventType: string(result.Event.EventType),
		})
	}
}
