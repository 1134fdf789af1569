package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace"

	"basegraph.app/ingest/common/logger"
	"basegraph.app/ingest/internal/dispatch"
	"basegraph.app/ingest/internal/mapper"
	"basegraph.app/ingest/internal/model"
	"basegraph.app/ingest/internal/queue"
	"basegraph.app/ingest/internal/store"
)

var (
	ErrUnknownPlatform  = errors.New("unknown platform")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrPayloadTooLarge  = errors.New("payload too large")
)

type IngestRequest struct {
	Platform string
	Header   http.Header
	Query    url.Values
	Body     io.Reader
}

type IngestOutcome string

const (
	IngestOutcomeAccepted  IngestOutcome = "accepted"
	IngestOutcomeIgnored   IngestOutcome = "ignored"
	IngestOutcomeChallenge IngestOutcome = "challenge"
)

type IngestResult struct {
	Outcome   IngestOutcome
	Event     *model.IngestionEvent
	Challenge string
	// Queued is false when the publish failed and the event was left at received.
	Queued bool
	// Dispatched is false when the inference pool was full or shut down.
	Dispatched bool
}

// Dispatcher runs background work detached from the request.
type Dispatcher interface {
	Submit(ctx context.Context, name string, task dispatch.Task) bool
}

type IngestService interface {
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
}

type IngestConfig struct {
	MaxBodyBytes   int64
	PublishTimeout time.Duration
}

type ingestService struct {
	registry   *mapper.Registry
	events     store.IngestionEventStore
	producer   queue.Producer
	dispatcher Dispatcher
	runner     *DecisionRunner
	cfg        IngestConfig
}

func NewIngestService(
	registry *mapper.Registry,
	events store.IngestionEventStore,
	producer queue.Producer,
	dispatcher Dispatcher,
	runner *DecisionRunner,
	cfg IngestConfig,
) IngestService {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 5 << 20
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	return &ingestService{
		registry:   registry,
		events:     events,
		producer:   producer,
		dispatcher: dispatcher,
		runner:     runner,
		cfg:        cfg,
	}
}

func (s *ingestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	eventMapper, ok := s.registry.Lookup(req.Platform)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, req.Platform)
	}

	platform := string(eventMapper.Platform())
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Platform:  &platform,
		Component: "ingest.service.coordinator",
	})

	sc := logger.StartSpan(ctx, "service.ingest", trace.WithSpanKind(trace.SpanKindInternal))
	defer sc.End()
	ctx = sc.Context()

	body, err := s.readBody(req.Body)
	if err != nil {
		return nil, err
	}

	if responder, ok := eventMapper.(mapper.ChallengeResponder); ok {
		if challenge, ok := responder.Challenge(body); ok {
			slog.InfoContext(ctx, "answered endpoint verification challenge")
			return &IngestResult{Outcome: IngestOutcomeChallenge, Challenge: challenge}, nil
		}
	}

	delivery := mapper.Delivery{Header: req.Header, Query: req.Query, Body: body}
	if delivery.Header == nil {
		delivery.Header = http.Header{}
	}

	if !eventMapper.Verify(ctx, delivery) {
		slog.WarnContext(ctx, "webhook signature validation failed", "platform", platform)
		return nil, ErrInvalidSignature
	}

	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedPayload)
	}

	event, err := eventMapper.Map(ctx, delivery)
	if err != nil {
		if errors.Is(err, mapper.ErrEventNotTracked) {
			slog.DebugContext(ctx, "webhook ignored", "reason", err.Error())
			return &IngestResult{Outcome: IngestOutcomeIgnored}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	eventType := string(event.EventType)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		EventID:   &event.EventID,
		EventType: &eventType,
	})

	event.Status = model.EventStatusQueued
	if err := s.events.Save(ctx, event); err != nil {
		sc.RecordError(err)
		return nil, fmt.Errorf("saving event: %w", err)
	}

	result := &IngestResult{Outcome: IngestOutcomeAccepted, Event: event}
	result.Queued = s.publish(ctx, event)
	result.Dispatched = s.dispatch(ctx, event)

	slog.InfoContext(ctx, "webhook accepted",
		"queued", result.Queued,
		"dispatched", result.Dispatched)

	return result, nil
}

func (s *ingestService) readBody(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}

	body, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxBodyBytes+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrPayloadTooLarge
		}
		return nil, fmt.Errorf("%w: reading body: %v", ErrMalformedPayload, err)
	}
	if int64(len(body)) > s.cfg.MaxBodyBytes {
		return nil, ErrPayloadTooLarge
	}
	return body, nil
}

// publish announces the stored event. On failure the event is moved back to
// received so the sweeper republishes it.
func (s *ingestService) publish(ctx context.Context, event *model.IngestionEvent) bool {
	msg := queue.NewEventMessage(event)
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		msg.TraceID = &traceID
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()

	err := s.producer.Enqueue(publishCtx, msg)
	if err == nil {
		return true
	}

	slog.WarnContext(ctx, "queue publish failed, event kept as received", "error", err)

	if err := s.events.UpdateStatus(ctx, event.EventID, model.EventStatusReceived); err != nil {
		slog.ErrorContext(ctx, "failed to downgrade event status after publish failure", "error", err)
		return false
	}
	event.Status = model.EventStatusReceived
	return false
}

func (s *ingestService) dispatch(ctx context.Context, event *model.IngestionEvent) bool {
	snapshot := *event
	ok := s.dispatcher.Submit(ctx, "infer_decision", func(taskCtx context.Context) {
		s.runner.Run(taskCtx, &snapshot)
	})
	if !ok {
		slog.WarnContext(ctx, "inference pool saturated, leaving event for the sweeper")
	}
	return ok
}
