package store

import (
	"context"
	"errors"
	"time"

	"basegraph.app/ingest/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// IngestionEventStore is the durable home of normalized events. Status
// updates are last-writer-wins; there is no compare-and-swap.
type IngestionEventStore interface {
	Save(ctx context.Context, event *model.IngestionEvent) error
	GetByID(ctx context.Context, id string) (*model.IngestionEvent, error)
	UpdateStatus(ctx context.Context, id string, status model.EventStatus) error
	// TransitionStatus moves the event to `to` only while it is still at
	// `from`, and reports whether it did.
	TransitionStatus(ctx context.Context, id string, from, to model.EventStatus) (bool, error)
	// ListByPlatform returns the newest events first.
	ListByPlatform(ctx context.Context, platform model.Platform, limit int) ([]model.IngestionEvent, error)
	// ListByStatus returns events created before olderThan, oldest first.
	ListByStatus(ctx context.Context, status model.EventStatus, olderThan time.Time, limit int) ([]model.IngestionEvent, error)
}
