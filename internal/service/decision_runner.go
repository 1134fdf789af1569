package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"basegraph.app/ingest/common/logger"
	"basegraph.app/ingest/internal/inference"
	"basegraph.app/ingest/internal/model"
	"basegraph.app/ingest/internal/store"
)

// DecisionRunner drives one event through inference and records the outcome
// as a status. Errors and panics end in failed; they never reach the caller.
type DecisionRunner struct {
	events    store.IngestionEventStore
	inference inference.Client
}

func NewDecisionRunner(events store.IngestionEventStore, client inference.Client) *DecisionRunner {
	if client == nil {
		client = inference.Disabled{}
	}
	return &DecisionRunner{events: events, inference: client}
}

// Run returns the terminal status it recorded.
func (r *DecisionRunner) Run(ctx context.Context, event *model.IngestionEvent) (status model.EventStatus) {
	platform, eventType := string(event.Platform), string(event.EventType)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		EventID:   &event.EventID,
		Platform:  &platform,
		EventType: &eventType,
		Component: "ingest.service.decision_runner",
	})

	sc := logger.StartSpan(ctx, "service.decision_runner.run", trace.WithSpanKind(trace.SpanKindInternal))
	defer sc.End()
	ctx = sc.Context()

	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(ctx, "panic recovered in decision inference", "panic", rec)
			status = r.record(ctx, event.EventID, model.EventStatusFailed)
		}
	}()

	r.record(ctx, event.EventID, model.EventStatusProcessing)

	decision, err := r.inference.Infer(ctx, inference.SummaryFromEvent(event))
	if err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "decision inference failed", "error", err)
		return r.record(ctx, event.EventID, model.EventStatusFailed)
	}

	if decision == nil {
		slog.InfoContext(ctx, "no decision found in event")
	} else {
		slog.InfoContext(ctx, "decision found in event",
			"decision_title", logger.Truncate(decision.Title, 120),
			"confidence_score", decision.ConfidenceScore,
			"tags", decision.Tags)
	}

	return r.record(ctx, event.EventID, model.EventStatusProcessed)
}

func (r *DecisionRunner) record(ctx context.Context, eventID string, status model.EventStatus) model.EventStatus {
	if err := r.events.UpdateStatus(ctx, eventID, status); err != nil {
		slog.ErrorContext(ctx, "failed to update event status",
			"error", err,
			"status", status)
	}
	return status
}
