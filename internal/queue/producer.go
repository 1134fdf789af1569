package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/ingest/internal/model"
)

// EventMessage is the stream entry announcing a stored event. Consumers load
// the full event from the store by id.
type EventMessage struct {
	EventID   string
	Platform  string
	EventType string
	Timestamp time.Time
	TraceID   *string
	Attempt   int
}

func NewEventMessage(event *model.IngestionEvent) EventMessage {
	return EventMessage{
		EventID:   event.EventID,
		Platform:  string(event.Platform),
		EventType: string(event.EventType),
		Timestamp: event.Timestamp,
	}
}

type Producer interface {
	Enqueue(ctx context.Context, msg EventMessage) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *slog.Logger
}

// NewRedisProducer publishes to stream, trimming it to roughly maxLen entries
// (0 disables trimming). XADD creates the stream on first use.
func NewRedisProducer(client *redis.Client, stream string, maxLen int64, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg EventMessage) error {
	attempt := msg.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	fields := map[string]any{
		"event_id":   msg.EventID,
		"platform":   msg.Platform,
		"event_type": msg.EventType,
		"timestamp":  msg.Timestamp.UTC().Format(time.RFC3339Nano),
		"attempt":    strconv.Itoa(attempt),
	}

	if msg.TraceID != nil && *msg.TraceID != "" {
		fields["trace_id"] = *msg.TraceID
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("enqueue event %s: %w", msg.EventID, err)
	}

	p.logger.InfoContext(ctx, "enqueued ingestion event",
		"event_id", msg.EventID,
		"platform", msg.Platform,
		"event_type", msg.EventType,
		"stream_id", id,
		"attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
