package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/ingest/internal/inference"
	"basegraph.app/ingest/internal/model"
	"basegraph.app/ingest/internal/service"
)

var _ = Describe("DecisionRunner", func() {
	var (
		ctx    context.Context
		events *mockEventStore
		infer  *mockInference
		event  *model.IngestionEvent
	)

	BeforeEach(func() {
		ctx = context.Background()
		events = newMockEventStore()
		infer = &mockInference{}

		event = model.NewIngestionEvent(model.PlatformSlack, model.EventTypeMessageSent)
		event.Content = model.Str("We're moving auth to sessions, JWT refresh was too fragile")
		event.Status = model.EventStatusQueued
		Expect(events.Save(ctx, event)).To(Succeed())
	})

	It("marks the event processed when a decision is found", func() {
		infer.inferFn = func(context.Context, inference.Summary) (*inference.Decision, error) {
			return &inference.Decision{Title: "Session auth", ConfidenceScore: 0.9}, nil
		}

		status := service.NewDecisionRunner(events, infer).Run(ctx, event)
		Expect(status).To(Equal(model.EventStatusProcessed))
		Expect(events.history(event.EventID)).To(Equal([]model.EventStatus{
			model.EventStatusQueued,
			model.EventStatusProcessing,
			model.EventStatusProcessed,
		}))
		Expect(logBuf.String()).To(ContainSubstring("decision found in event"))
		Expect(logBuf.String()).To(ContainSubstring(`"event_id":"` + event.EventID + `"`))
	})

	It("treats no decision as processed", func() {
		status := service.NewDecisionRunner(events, infer).Run(ctx, event)
		Expect(status).To(Equal(model.EventStatusProcessed))
		Expect(infer.calls[0].Content).To(ContainSubstring("sessions"))
	})

	It("records failed when inference errors", func() {
		infer.inferFn = func(context.Context, inference.Summary) (*inference.Decision, error) {
			return nil, errors.New("timeout")
		}
		status := service.NewDecisionRunner(events, infer).Run(ctx, event)
		Expect(status).To(Equal(model.EventStatusFailed))

		stored, _ := events.GetByID(ctx, event.EventID)
		Expect(stored.Status).To(Equal(model.EventStatusFailed))
	})

	It("records failed when inference panics", func() {
		infer.inferFn = func(context.Context, inference.Summary) (*inference.Decision, error) {
			panic("nil map")
		}
		var status model.EventStatus
		Expect(func() {
			status = service.NewDecisionRunner(events, infer).Run(ctx, event)
		}).NotTo(Panic())
		Expect(status).To(Equal(model.EventStatusFailed))
		Expect(logBuf.String()).To(ContainSubstring("panic recovered"))
	})

	It("keeps going when status updates fail", func() {
		events.updateStatusFn = func(context.Context, string, model.EventStatus) error {
			return errors.New("db gone")
		}
		status := service.NewDecisionRunner(events, infer).Run(ctx, event)
		Expect(status).To(Equal(model.EventStatusProcessed))
		Expect(infer.calls).To(HaveLen(1))
		Expect(logBuf.String()).To(ContainSubstring("failed to update event status"))
	})

	It("defaults to disabled inference", func() {
		status := service.NewDecisionRunner(events, nil).Run(ctx, event)
		Expect(status).To(Equal(model.EventStatusProcessed))
	})
})
