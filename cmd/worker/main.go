package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/timeoff-service/internal/api/http/handlers"
	"github.com/spec-kit/timeoff-service/internal/config"
	"github.com/spec-kit/timeoff-service/internal/events"
	"github.com/spec-kit/timeoff-service/internal/mail"
	"github.com/spec-kit/timeoff-service/internal/observability"
	"github.com/spec-kit/timeoff-service/internal/persistence"
	"github.com/spec-kit/timeoff-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Queue.Driver != config.QueueDriverRedis {
		logger.Fatal("standalone worker requires QUEUE_DRIVER=redis; the memory driver consumes inside the api process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	broker := events.NewRedisStreamBroker(rdb.Client, events.OptionsFromConfig(cfg.Queue))
	if err := broker.EnsureGroup(ctx); err != nil {
		logger.Fatal("failed to create consumer group", zap.Error(err))
	}

	consumer := worker.NewNotificationWorker(worker.Dependencies{
		Receiver:    broker,
		Sender:      mail.NewSenderFromConfig(cfg.Mail, logger.Named("mail")),
		Logger:      logger.Named("worker"),
		Metrics:     metrics,
		Concurrency: cfg.Queue.Concurrency,
	})

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("notification worker started",
			zap.String("stream", cfg.Queue.Stream),
			zap.String("group", cfg.Queue.Group),
			zap.String("consumer", cfg.Queue.Consumer))
		return consumer.Run(gctx)
	})

	if cfg.Queue.MetricsAddr != "" {
		app := fiber.New(fiber.Config{AppName: cfg.App.Name + "-worker", DisableStartupMessage: true})
		health := handlers.NewHealthHandler(cfg.App.Name+"-worker", cfg.App.Version, map[string]handlers.Pinger{"redis": rdb})
		app.Get("/health/live", health.Live)
		app.Get("/health/ready", health.Ready)
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

		group.Go(func() error {
			return app.Listen(cfg.Queue.MetricsAddr)
		})
		group.Go(func() error {
			<-gctx.Done()
			return app.ShutdownWithTimeout(5 * time.Second)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped with error", zap.Error(err))
	}
	logger.Info("notification worker stopped")
}
