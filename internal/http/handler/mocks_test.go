package handler_test

import (
	"context"

	"basegraph.app/ingest/internal/model"
)

type mockEventQueryService struct {
	recentFn func(ctx context.Context, platform string, limit int) ([]model.IngestionEvent, error)
}

func (m *mockEventQueryService) Recent(ctx context.Context, platform string, limit int) ([]model.IngestionEvent, error) {
	if m.recentFn != nil {
		return m.recentFn(ctx, platform, limit)
	}
	return nil, nil
}
