package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"basegraph.app/ingest/internal/model"
	"basegraph.app/ingest/internal/store"
)

const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 200
	minPerPlatform     = 5
)

var ErrInvalidLimit = errors.New("invalid limit")

type EventQueryService interface {
	// Recent returns stored events newest first. An empty platform merges
	// all platforms.
	Recent(ctx context.Context, platform string, limit int) ([]model.IngestionEvent, error)
}

type eventQueryService struct {
	events store.IngestionEventStore
}

func NewEventQueryService(events store.IngestionEventStore) EventQueryService {
	return &eventQueryService{events: events}
}

func (s *eventQueryService) Recent(ctx context.Context, platform string, limit int) ([]model.IngestionEvent, error) {
	if limit == 0 {
		limit = DefaultRecentLimit
	}
	if limit < 0 || limit > MaxRecentLimit {
		return nil, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidLimit, MaxRecentLimit)
	}

	if platform != "" {
		p := model.Platform(platform)
		if !p.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
		}
		events, err := s.events.ListByPlatform(ctx, p, limit)
		if err != nil {
			return nil, fmt.Errorf("listing %s events: %w", platform, err)
		}
		return events, nil
	}

	perPlatform := max(limit/len(model.Platforms), minPerPlatform)

	var merged []model.IngestionEvent
	for _, p := range model.Platforms {
		events, err := s.events.ListByPlatform(ctx, p, perPlatform)
		if err != nil {
			return nil, fmt.Errorf("listing %s events: %w", p, err)
		}
		merged = append(merged, events...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}
