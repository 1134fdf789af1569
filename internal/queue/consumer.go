package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/ingest/common/logger"
)

type ConsumerConfig struct {
	Stream    string        // Redis stream name
	Group     string        // Redis consumer group name
	Consumer  string        // Redis consumer name
	BatchSize int64         // Number of messages to read per call
	Block     time.Duration // How long to block/poll for new messages
	// FromStart makes a newly created group replay the whole stream
	// instead of only new entries.
	FromStart bool
}

type Message struct {
	ID        string
	EventID   string
	Platform  string
	EventType string
	Timestamp time.Time
	Attempt   int
	TraceID   string
	Raw       redis.XMessage
}

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	consumer := &RedisConsumer{
		client: client,
		cfg:    cfg,
	}

	if err := consumer.ensureGroup(ctx); err != nil {
		return nil, err
	}

	return consumer, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	start := "$"
	if c.cfg.FromStart {
		start = "0"
	}
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, start).Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "ingest.queue.consumer",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// ">" = entries never delivered to this group
		Streams: []string{c.cfg.Stream, ">"},
		Count:   c.cfg.BatchSize,
		Block:   c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			parsed, parseErr := ParseMessage(msg)
			if parseErr != nil {
				slog.ErrorContext(ctx, "failed to parse message",
					"error", parseErr,
					"raw_message_id", msg.ID,
					"stream", c.cfg.Stream)
				_ = c.Ack(ctx, Message{ID: msg.ID, Raw: msg})
				continue
			}
			messages = append(messages, parsed)
		}
	}

	if len(messages) > 0 {
		slog.DebugContext(ctx, "read messages from stream",
			"count", len(messages),
			"stream", c.cfg.Stream,
			"consumer", c.cfg.Consumer)
	}

	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

func ParseMessage(msg redis.XMessage) (Message, error) {
	eventID, err := parseString(msg.Values, "event_id")
	if err != nil {
		return Message{}, err
	}
	platform, err := parseString(msg.Values, "platform")
	if err != nil {
		return Message{}, err
	}
	eventType, err := parseString(msg.Values, "event_type")
	if err != nil {
		return Message{}, err
	}

	out := Message{
		ID:        msg.ID,
		EventID:   eventID,
		Platform:  platform,
		EventType: eventType,
		Attempt:   1,
		Raw:       msg,
	}

	if raw, ok := msg.Values["timestamp"]; ok {
		ts, err := time.Parse(time.RFC3339Nano, fmt.Sprint(raw))
		if err != nil {
			return Message{}, fmt.Errorf("parsing timestamp: %w", err)
		}
		out.Timestamp = ts
	}
	if raw, ok := msg.Values["attempt"]; ok {
		attempt, err := strconv.Atoi(fmt.Sprint(raw))
		if err != nil {
			return Message{}, fmt.Errorf("parsing attempt: %w", err)
		}
		out.Attempt = attempt
	}
	if raw, ok := msg.Values["trace_id"]; ok {
		out.TraceID = fmt.Sprint(raw)
	}

	return out, nil
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	s := fmt.Sprint(raw)
	if s == "" {
		return "", fmt.Errorf("empty %s", key)
	}
	return s, nil
}
