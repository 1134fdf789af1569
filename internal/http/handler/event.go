package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/ingest/internal/http/dto"
	"basegraph.app/ingest/internal/service"
)

type EventHandler struct {
	events service.EventQueryService
}

func NewEventHandler(events service.EventQueryService) *EventHandler {
	return &EventHandler{events: events}
}

func (h *EventHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ListEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	events, err := h.events.Recent(ctx, req.Platform, req.Limit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPlatform):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform"})
		case errors.Is(err, service.ErrInvalidLimit):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			slog.ErrorContext(ctx, "failed to list events", "error", err, "platform", req.Platform)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		}
		return
	}

	resp := dto.ListEventsResponse{
		Events: make([]dto.EventResponse, 0, len(events)),
		Count:  len(events),
	}
	for _, e := range events {
		resp.Events = append(resp.Events, dto.ToEventResponse(e))
	}

	c.JSON(http.StatusOK, resp)
}
