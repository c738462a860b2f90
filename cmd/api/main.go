package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/timeoff-service/internal/api/http"
	"github.com/spec-kit/timeoff-service/internal/api/http/handlers"
	"github.com/spec-kit/timeoff-service/internal/auth"
	"github.com/spec-kit/timeoff-service/internal/cache"
	"github.com/spec-kit/timeoff-service/internal/config"
	"github.com/spec-kit/timeoff-service/internal/coreapi"
	"github.com/spec-kit/timeoff-service/internal/events"
	"github.com/spec-kit/timeoff-service/internal/mail"
	"github.com/spec-kit/timeoff-service/internal/observability"
	"github.com/spec-kit/timeoff-service/internal/persistence"
	"github.com/spec-kit/timeoff-service/internal/repository"
	"github.com/spec-kit/timeoff-service/internal/service"
	"github.com/spec-kit/timeoff-service/internal/worker"
)

const (
	shutdownTimeout = 10 * time.Second
	janitorInterval = time.Minute
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	healthDeps := map[string]handlers.Pinger{}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var requestRepo repository.RequestRepository
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		requestRepo = repository.NewRequestRepository(pool)
		healthDeps["postgres"] = pg
	} else {
		logger.Warn("using in-memory request store; data is lost on restart")
		requestRepo = repository.NewMemoryRequestRepository()
	}

	group, gctx := errgroup.WithContext(ctx)

	client, err := coreapi.NewClient(cfg.CoreAPI.BaseURL, cfg.CoreAPI.Timeout())
	if err != nil {
		logger.Fatal("invalid core api config", zap.Error(err))
	}
	refCache := cache.New(cache.Options{MaxEntries: cfg.Cache.MaxEntries})
	group.Go(func() error {
		refCache.RunJanitor(gctx, janitorInterval)
		return nil
	})
	refs := service.NewReferenceService(service.ReferenceDependencies{
		Source:  client,
		Cache:   refCache,
		TTL:     cfg.Cache.TTL(),
		Logger:  logger.Named("reference"),
		Metrics: metrics,
	})

	var publisher events.Publisher
	switch cfg.Queue.Driver {
	case config.QueueDriverRedis:
		rdb := persistence.NewRedis(cfg.Redis, logger)
		defer rdb.Close()
		healthDeps["redis"] = rdb

		broker := events.NewRedisStreamBroker(rdb.Client, events.OptionsFromConfig(cfg.Queue))
		if err := broker.EnsureGroup(ctx); err != nil {
			logger.Fatal("failed to create consumer group", zap.Error(err))
		}
		publisher = broker
	default:
		// Without a shared broker the consumer has to live in this process.
		broker := events.NewMemoryBroker(cfg.Queue.MaxDeliveries, cfg.Queue.BlockTimeout())
		publisher = broker
		consumer := worker.NewNotificationWorker(worker.Dependencies{
			Receiver:    broker,
			Sender:      mail.NewSenderFromConfig(cfg.Mail, logger.Named("mail")),
			Logger:      logger.Named("worker"),
			Metrics:     metrics,
			Concurrency: cfg.Queue.Concurrency,
		})
		group.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	requests := service.NewRequestService(service.RequestDependencies{
		RequestRepo: requestRepo,
		Validator:   service.NewExternalValidator(refs),
		Notifier: service.NewNotificationService(service.NotificationDependencies{
			Directory: refs,
			Publisher: publisher,
			Logger:    logger.Named("notifications"),
			Metrics:   metrics,
		}),
		Logger:  logger.Named("requests"),
		Metrics: metrics,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTLMinutes)

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDeps),
		Requests:       handlers.NewRequestsHandler(requests),
		Reference:      handlers.NewReferenceHandler(refs),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Gatherer:       registry,
	})

	group.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service stopped with error", zap.Error(err))
	}
}
