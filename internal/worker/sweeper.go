package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"basegraph.app/ingest/common/logger"
	"basegraph.app/ingest/core/config"
	"basegraph.app/ingest/internal/model"
	"basegraph.app/ingest/internal/queue"
	"basegraph.app/ingest/internal/store"
)

// DecisionRunner mirrors service.DecisionRunner, defined here to avoid an
// import cycle.
type DecisionRunner interface {
	Run(ctx context.Context, event *model.IngestionEvent) model.EventStatus
}

type SweepStats struct {
	Republished int
	Reinferred  int
	Skipped     int // received events that moved on before the sweep claimed them
	Errors      int
}

// Sweeper reconciles events the request path left behind: events still at
// received (publish failed) are republished, and events stuck at queued
// (inference never ran) go through inference again.
type Sweeper struct {
	events   store.IngestionEventStore
	producer queue.Producer
	runner   DecisionRunner
	cfg      config.SweeperConfig
	limiter  *rate.Limiter
	now      func() time.Time

	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewSweeper(events store.IngestionEventStore, producer queue.Producer, runner DecisionRunner, cfg config.SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &Sweeper{
		events:    events,
		producer:  producer,
		runner:    runner,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, 1),
		now:       time.Now,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run sweeps on every tick until ctx is done or Stop is called.
func (s *Sweeper) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "ingest.worker.sweeper",
	})

	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "sweeper started",
		"interval", s.cfg.Interval,
		"received_grace", s.cfg.ReceivedGrace,
		"queued_stale_after", s.cfg.QueuedStaleAfter,
		"batch_size", s.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "sweeper stopping")
			return
		case <-ticker.C:
			stats, err := s.SweepOnce(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "sweep cycle error", "error", err)
				continue
			}
			if stats.Republished+stats.Reinferred+stats.Skipped+stats.Errors > 0 {
				slog.InfoContext(ctx, "sweep cycle completed",
					"republished", stats.Republished,
					"reinferred", stats.Reinferred,
					"skipped", stats.Skipped,
					"errors", stats.Errors)
			}
		}
	}
}

// Stop signals the sweeper to stop and waits for the current cycle.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.stoppedCh
}

func (s *Sweeper) SweepOnce(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	now := s.now()

	received, err := s.events.ListByStatus(ctx, model.EventStatusReceived, now.Add(-s.cfg.ReceivedGrace), s.cfg.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("listing received events: %w", err)
	}
	for i := range received {
		if err := s.limiter.Wait(ctx); err != nil {
			return stats, err
		}
		published, err := s.republish(ctx, &received[i])
		if err != nil {
			stats.Errors++
			slog.ErrorContext(ctx, "failed to republish event",
				"error", err,
				"event_id", received[i].EventID)
			continue
		}
		if !published {
			stats.Skipped++
			continue
		}
		stats.Republished++
	}

	queued, err := s.events.ListByStatus(ctx, model.EventStatusQueued, now.Add(-s.cfg.QueuedStaleAfter), s.cfg.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("listing queued events: %w", err)
	}
	for i := range queued {
		if err := s.limiter.Wait(ctx); err != nil {
			return stats, err
		}
		event := &queued[i]
		ctx := logger.WithLogFields(ctx, logger.LogFields{EventID: &event.EventID})
		slog.InfoContext(ctx, "re-running inference for stale queued event",
			"queued_since", event.Timestamp)
		s.runner.Run(ctx, event)
		stats.Reinferred++
	}

	return stats, nil
}

// republish claims a received event by moving it to queued, then announces
// it. Events another worker already moved on are skipped. A failed publish
// hands the event back to received.
func (s *Sweeper) republish(ctx context.Context, event *model.IngestionEvent) (bool, error) {
	claimed, err := s.events.TransitionStatus(ctx, event.EventID, model.EventStatusReceived, model.EventStatusQueued)
	if err != nil {
		return false, fmt.Errorf("claiming event: %w", err)
	}
	if !claimed {
		return false, nil
	}

	if err := s.producer.Enqueue(ctx, queue.NewEventMessage(event)); err != nil {
		if _, rerr := s.events.TransitionStatus(context.WithoutCancel(ctx), event.EventID, model.EventStatusQueued, model.EventStatusReceived); rerr != nil {
			slog.ErrorContext(ctx, "failed to release event after publish error",
				"error", rerr,
				"event_id", event.EventID)
		}
		return false, err
	}
	return true, nil
}
