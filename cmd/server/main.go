package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"basegraph.app/ingest/common/id"
	"basegraph.app/ingest/common/logger"
	"basegraph.app/ingest/common/otel"
	"basegraph.app/ingest/core/config"
	"basegraph.app/ingest/core/db"
	"basegraph.app/ingest/internal/dispatch"
	"basegraph.app/ingest/internal/http/middleware"
	httprouter "basegraph.app/ingest/internal/http/router"
	"basegraph.app/ingest/internal/inference"
	"basegraph.app/ingest/internal/mapper"
	"basegraph.app/ingest/internal/queue"
	"basegraph.app/ingest/internal/service"
	"basegraph.app/ingest/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// slog is not configured yet
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "ingest server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	warnUnsignedPlatforms(ctx, cfg)

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	if err := database.Migrate(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to migrate database", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	// Redis being down is survivable: events stay at received for the sweeper.
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.WarnContext(ctx, "redis not reachable at startup, events will be stored unqueued", "error", err)
	} else {
		slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)
	}

	eventProducer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, cfg.Pipeline.RedisMaxLen, slog.Default())
	defer eventProducer.Close()

	inferenceClient, err := inference.NewFromConfig(cfg.Inference)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create inference client", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "inference configured",
		"provider", cfg.Inference.Provider,
		"enabled", cfg.Inference.Enabled(),
		"workers", cfg.Inference.Workers)

	pool := dispatch.NewPool(cfg.Inference.Workers)

	services := service.NewServices(
		store.NewStores(database.Queries()),
		mapper.NewRegistryFromConfig(cfg.Webhooks),
		eventProducer,
		pool,
		inferenceClient,
		service.IngestConfig{
			MaxBodyBytes:   cfg.Webhooks.MaxBodyBytes,
			PublishTimeout: cfg.Pipeline.PublishTimeout,
		},
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(cfg, services),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(ctx, "shutting down...")

		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
		}
		// In-flight inference drains after the listener closes so no new work arrives.
		if err := pool.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "inference pool did not drain, remaining events left for the sweeper", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "server exited with error", "error", err)
	}

	if telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		AdminAPIKey:  cfg.AdminAPIKey,
		MaxBodyBytes: cfg.Webhooks.MaxBodyBytes,
	})

	return router
}

func warnUnsignedPlatforms(ctx context.Context, cfg config.Config) {
	unsigned := cfg.Webhooks.UnsignedPlatforms()
	if len(unsigned) == 0 {
		return
	}
	level := slog.LevelWarn
	if cfg.IsProduction() {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "webhook secrets missing, these platforms accept unsigned deliveries",
		"platforms", unsigned)
}

const banner = `
██╗███╗   ██╗ ██████╗ ███████╗███████╗████████╗
██║████╗  ██║██╔════╝ ██╔════╝██╔════╝╚══██╔══╝
██║██╔██╗ ██║██║  ███╗█████╗  ███████╗   ██║
██║██║╚██╗██║██║   ██║██╔══╝  ╚════██║   ██║
██║██║ ╚████║╚██████╔╝███████╗███████║   ██║
╚═╝╚═╝  ╚═══╝ ╚═════╝ ╚══════╝╚══════╝   ╚═╝
`
