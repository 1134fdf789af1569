package dto

import (
	"time"

	"basegraph.app/ingest/internal/model"
)

type ListEventsRequest struct {
	Platform string `form:"platform"`
	Limit    int    `form:"limit"`
}

type EventResponse struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	EventType string    `json:"event_type"`
	Title     *string   `json:"title"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
}

type ListEventsResponse struct {
	Events []EventResponse `json:"events"`
	Count  int             `json:"count"`
}

func ToEventResponse(e model.IngestionEvent) EventResponse {
	return EventResponse{
		ID:        e.EventID,
		Platform:  string(e.Platform),
		EventType: string(e.EventType),
		Title:     e.Title,
		Status:    string(e.Status),
		Timestamp: e.Timestamp,
		Author:    e.AuthorName(),
	}
}
