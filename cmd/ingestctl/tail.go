package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"basegraph.app/ingest/common/logger"
	"basegraph.app/ingest/common/otel"
	"basegraph.app/ingest/core/config"
	"basegraph.app/ingest/internal/queue"
)

func tailCmd() *cobra.Command {
	var (
		redisURL  string
		stream    string
		group     string
		fromStart bool
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow the ingestion stream and print each announced event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts, err := redis.ParseURL(redisURL)
			if err != nil {
				return fmt.Errorf("parsing redis url: %w", err)
			}
			client := redis.NewClient(opts)
			defer client.Close()

			hostname, _ := os.Hostname()
			consumer, err := queue.NewRedisConsumer(ctx, client, queue.ConsumerConfig{
				Stream:    stream,
				Group:     group,
				Consumer:  fmt.Sprintf("ingestctl-%s-%d", hostname, os.Getpid()),
				BatchSize: 50,
				Block:     2 * time.Second,
				FromStart: fromStart,
			})
			if err != nil {
				return err
			}

			telemetry, err := otel.Setup(ctx, config.LoadOTel("ingestctl"))
			if err != nil {
				return fmt.Errorf("initializing otel: %w", err)
			}
			if telemetry != nil {
				defer telemetry.Shutdown(context.WithoutCancel(ctx))
			}

			out := cmd.OutOrStdout()
			for {
				if err := tailBatch(ctx, consumer, out); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
			}
		},
	}

	cmd.Flags().StringVar(&redisURL, "redis-url", envOr("REDIS_URL", "redis://localhost:6379/0"), "Redis connection URL")
	cmd.Flags().StringVar(&stream, "stream", envOr("REDIS_STREAM", "ingestion_events"), "Stream name")
	cmd.Flags().StringVar(&group, "group", "ingestctl-tail", "Consumer group")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "Replay the stream from the beginning when creating the group")

	return cmd
}

type streamReader interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
}

// tailBatch prints and acks one batch. Each message gets a consumer span
// that joins the trace the server started for the webhook.
func tailBatch(ctx context.Context, consumer streamReader, out io.Writer) error {
	messages, err := consumer.Read(ctx)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "ingestctl.tail",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("event.id", msg.EventID),
				attribute.String("event.platform", msg.Platform),
				attribute.String("event.type", msg.EventType),
			))

		fmt.Fprintf(out, "%s  %-7s %-18s %s  attempt=%d  trace=%s\n",
			msg.Timestamp.Format(time.RFC3339), msg.Platform, msg.EventType, msg.EventID, msg.Attempt,
			valueOr(msg.TraceID, "-"))

		err := consumer.Ack(context.WithoutCancel(sc.Context()), msg)
		if err != nil {
			sc.RecordError(err)
		}
		sc.End()
		if err != nil {
			return err
		}
	}
	return nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
