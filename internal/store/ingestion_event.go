package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"basegraph.app/ingest/core/db/sqlc"
	"basegraph.app/ingest/internal/model"
)

type ingestionEventStore struct {
	queries *sqlc.Queries
}

func newIngestionEventStore(queries *sqlc.Queries) IngestionEventStore {
	return &ingestionEventStore{queries: queries}
}

func (s *ingestionEventStore) Save(ctx context.Context, event *model.IngestionEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	contextJSON, err := json.Marshal(event.Context)
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}

	var authorJSON []byte
	if event.Author != nil {
		if authorJSON, err = json.Marshal(event.Author); err != nil {
			return fmt.Errorf("encoding author: %w", err)
		}
	}

	tags := event.Tags
	if tags == nil {
		tags = []string{}
	}

	raw := event.RawPayload
	if raw == nil {
		raw = []byte{}
	}

	err = s.queries.CreateIngestionEvent(ctx, sqlc.CreateIngestionEventParams{
		ID:          event.EventID,
		Platform:    string(event.Platform),
		EventType:   string(event.EventType),
		Status:      string(event.Status),
		Title:       event.Title,
		Description: event.Description,
		Content:     event.Content,
		Context:     contextJSON,
		Author:      authorJSON,
		Tags:        tags,
		RawPayload:  raw,
		CreatedAt:   event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("inserting event %s: %w", event.EventID, err)
	}
	return nil
}

func (s *ingestionEventStore) GetByID(ctx context.Context, id string) (*model.IngestionEvent, error) {
	row, err := s.queries.GetIngestionEvent(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toIngestionEventModel(row)
}

func (s *ingestionEventStore) UpdateStatus(ctx context.Context, id string, status model.EventStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: status %q", model.ErrInvalidEvent, status)
	}

	affected, err := s.queries.UpdateIngestionEventStatus(ctx, sqlc.UpdateIngestionEventStatusParams{
		ID:     id,
		Status: string(status),
	})
	if err != nil {
		return fmt.Errorf("updating status of event %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ingestionEventStore) TransitionStatus(ctx context.Context, id string, from, to model.EventStatus) (bool, error) {
	if !from.Valid() || !to.Valid() {
		return false, fmt.Errorf("%w: transition %q -> %q", model.ErrInvalidEvent, from, to)
	}

	affected, err := s.queries.TransitionIngestionEventStatus(ctx, sqlc.TransitionIngestionEventStatusParams{
		ToStatus:   string(to),
		ID:         id,
		FromStatus: string(from),
	})
	if err != nil {
		return false, fmt.Errorf("moving event %s from %s to %s: %w", id, from, to, err)
	}
	return affected > 0, nil
}

func (s *ingestionEventStore) ListByPlatform(ctx context.Context, platform model.Platform, limit int) ([]model.IngestionEvent, error) {
	rows, err := s.queries.ListIngestionEventsByPlatform(ctx, sqlc.ListIngestionEventsByPlatformParams{
		Platform: string(platform),
		Limit:    int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s events: %w", platform, err)
	}
	return toIngestionEventModels(rows)
}

func (s *ingestionEventStore) ListByStatus(ctx context.Context, status model.EventStatus, olderThan time.Time, limit int) ([]model.IngestionEvent, error) {
	rows, err := s.queries.ListIngestionEventsByStatus(ctx, sqlc.ListIngestionEventsByStatusParams{
		Status:    string(status),
		OlderThan: olderThan,
		RowLimit:  int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s events: %w", status, err)
	}
	return toIngestionEventModels(rows)
}

func toIngestionEventModels(rows []sqlc.IngestionEvent) ([]model.IngestionEvent, error) {
	result := make([]model.IngestionEvent, 0, len(rows))
	for _, row := range rows {
		event, err := toIngestionEventModel(row)
		if err != nil {
			return nil, err
		}
		result = append(result, *event)
	}
	return result, nil
}

func toIngestionEventModel(row sqlc.IngestionEvent) (*model.IngestionEvent, error) {
	event := &model.IngestionEvent{
		EventID:     row.ID,
		Platform:    model.Platform(row.Platform),
		EventType:   model.EventType(row.EventType),
		Status:      model.EventStatus(row.Status),
		Title:       row.Title,
		Description: row.Description,
		Content:     row.Content,
		Tags:        row.Tags,
		RawPayload:  row.RawPayload,
		Timestamp:   row.CreatedAt.UTC(),
	}
	if len(row.Context) > 0 {
		if err := json.Unmarshal(row.Context, &event.Context); err != nil {
			return nil, fmt.Errorf("decoding context of event %s: %w", row.ID, err)
		}
	}
	if len(row.Author) > 0 {
		event.Author = &model.EventAuthor{}
		if err := json.Unmarshal(row.Author, event.Author); err != nil {
			return nil, fmt.Errorf("decoding author of event %s: %w", row.ID, err)
		}
	}
	return event, nil
}
