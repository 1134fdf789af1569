// Package inference asks an external collaborator whether an ingested event
// records a technical decision.
package inference

import (
	"context"
	"fmt"
	"time"

	"basegraph.app/ingest/common/llm"
	"basegraph.app/ingest/core/config"
	"basegraph.app/ingest/internal/model"
)

// Client returns the decision found in the event, or nil when there is none.
// Retries and model selection are the implementation's concern.
type Client interface {
	Infer(ctx context.Context, summary Summary) (*Decision, error)
}

// Summary is the slice of an event handed to inference.
type Summary struct {
	EventID    string    `json:"event_id"`
	Platform   string    `json:"platform"`
	EventType  string    `json:"event_type"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	AuthorName string    `json:"author_name"`
	Repository string    `json:"repository"`
	Timestamp  time.Time `json:"timestamp"`
	URL        string    `json:"url,omitempty"`
}

func SummaryFromEvent(event *model.IngestionEvent) Summary {
	s := Summary{
		EventID:    event.EventID,
		Platform:   string(event.Platform),
		EventType:  string(event.EventType),
		Content:    event.Summary(),
		AuthorName: event.AuthorName(),
		Repository: event.Context.Locator(),
		Timestamp:  event.Timestamp,
		URL:        event.Context.URL,
	}
	if event.Title != nil {
		s.Title = *event.Title
	}
	return s
}

type Decision struct {
	Title                  string   `json:"title"`
	Description            string   `json:"description"`
	Rationale              string   `json:"rationale"`
	AlternativesConsidered []string `json:"alternatives_considered"`
	Tags                   []string `json:"tags"`
	ConfidenceScore        float64  `json:"confidence_score"`
	Participants           []string `json:"participants"`
}

// normalize clamps the confidence into [0, 1] and fills the title.
func (d *Decision) normalize() {
	switch {
	case d.ConfidenceScore < 0:
		d.ConfidenceScore = 0
	case d.ConfidenceScore > 1:
		d.ConfidenceScore = 1
	}
	if d.Title == "" {
		d.Title = "Untitled Decision"
	}
}

// Disabled never finds a decision.
type Disabled struct{}

func (Disabled) Infer(context.Context, Summary) (*Decision, error) {
	return nil, nil
}

func NewFromConfig(cfg config.InferenceConfig) (Client, error) {
	switch cfg.Provider {
	case "":
		return Disabled{}, nil
	case "openai":
		client, err := llm.New(llm.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("creating llm client: %w", err)
		}
		return NewLLM(client, cfg.MaxTokens), nil
	case "http":
		return NewHTTP(HTTPConfig{
			URL:     cfg.URL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Provider)
	}
}
