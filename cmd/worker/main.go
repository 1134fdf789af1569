package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"basegraph.app/ingest/common/id"
	"basegraph.app/ingest/common/logger"
	"basegraph.app/ingest/common/otel"
	"basegraph.app/ingest/core/config"
	"basegraph.app/ingest/core/db"
	"basegraph.app/ingest/internal/inference"
	"basegraph.app/ingest/internal/queue"
	"basegraph.app/ingest/internal/service"
	"basegraph.app/ingest/internal/store"
	"basegraph.app/ingest/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "ingest worker starting",
		"env", cfg.Env,
		"sweep_interval", cfg.Sweeper.Interval,
		"stream", cfg.Pipeline.RedisStream)

	// Different node ID than the server
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, cfg.Pipeline.RedisMaxLen, slog.Default())
	defer producer.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	inferenceClient, err := inference.NewFromConfig(cfg.Inference)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create inference client", "error", err)
		os.Exit(1)
	}

	events := store.NewStores(database.Queries()).IngestionEvents()
	sweeper := worker.NewSweeper(events, producer, service.NewDecisionRunner(events, inferenceClient), cfg.Sweeper)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})

	slog.InfoContext(ctx, "worker initialized and running")

	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "worker exited with error", "error", err)
	}

	slog.InfoContext(ctx, "shutting down worker...")

	if telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
██╗███╗   ██╗ ██████╗ ███████╗███████╗████████╗    ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██║████╗  ██║██╔════╝ ██╔════╝██╔════╝╚══██╔══╝    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
██║██╔██╗ ██║██║  ███╗█████╗  ███████╗   ██║       ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██║██║╚██╗██║██║   ██║██╔══╝  ╚════██║   ██║       ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
██║██║ ╚████║╚██████╔╝███████╗███████║   ██║       ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
╚═╝╚═╝  ╚═══╝ ╚═════╝ ╚══════╝╚══════╝   ╚═╝        ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
