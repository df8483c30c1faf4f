package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.temporal.io/sdk/worker"

	"github.com/ghuser/lendingdesk/pkg/app"
	"github.com/ghuser/lendingdesk/pkg/cache"
	"github.com/ghuser/lendingdesk/pkg/config"
	"github.com/ghuser/lendingdesk/pkg/database"
	"github.com/ghuser/lendingdesk/pkg/events"
	"github.com/ghuser/lendingdesk/pkg/logger"
	"github.com/ghuser/lendingdesk/pkg/scheduler"
	"github.com/ghuser/lendingdesk/pkg/telemetry"
	"github.com/ghuser/lendingdesk/pkg/workflows"
	appsvcs "github.com/ghuser/lendingdesk/services/lending/application/services"
	lendingwf "github.com/ghuser/lendingdesk/services/lending/application/workflows"
	lendingEvents "github.com/ghuser/lendingdesk/services/lending/domain/events"
	"github.com/ghuser/lendingdesk/services/lending/infrastructure/persistence/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := config.ValidateForProduction(cfg); err != nil {
		slog.Error("production config validation failed", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, _, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1)
	}
	defer otelShutdown(context.Background()) //nolint:errcheck

	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.Options{
		MaxOpenConns: cfg.DatabaseMaxConns,
		MaxIdleConns: cfg.DatabaseIdleConns,
		TxTimeout:    time.Duration(cfg.DatabaseTxTimeoutS) * time.Second,
	}, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer pool.Close() //nolint:errcheck
	log.Info("database pool connected")

	eventBus, err := events.NewEventBus(cfg, log)
	if err != nil {
		log.Error("failed to setup event bus", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer eventBus.Close() //nolint:errcheck

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer redisClient.Close() //nolint:errcheck
	log.Info("redis connected")

	appConfig := &app.Application{
		Config:   cfg,
		Db:       pool,
		Logger:   log,
		EventBus: eventBus,
		Redis:    redisClient,
	}

	projector := appsvcs.NewAvailabilityProjector(
		postgres.NewCatalogReader(pool),
		cache.NewAvailabilityCache(redisClient),
		log,
	)

	if err := registerSubscribers(ctx, appConfig, projector); err != nil {
		log.Error("failed to register subscribers", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	sched := scheduler.New(log)
	if err := sched.Add("availability-reconcile", cfg.ReconcileSchedule, reconcileJob(projector, log)); err != nil {
		log.Error("failed to schedule reconcile", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	// Warm the cache once before the first scheduled sweep.
	if err := reconcileJob(projector, log)(ctx); err != nil {
		log.Warn("initial availability reconcile failed", "error", err)
	}
	sched.Start()

	var temporalWorker worker.Worker
	if cfg.TemporalEnabled {
		temporalWorker, err = startTemporal(ctx, cfg, appConfig)
		if err != nil {
			log.Error("failed to start temporal worker", "error", err)
			os.Exit(1) //nolint:gocritic
		}
	}

	<-ctx.Done()
	log.Info("shutting down worker...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		log.Warn("scheduler did not stop cleanly", "error", err)
	}
	if temporalWorker != nil {
		temporalWorker.Stop()
	}
	if appConfig.TemporalClient != nil {
		appConfig.TemporalClient.Close()
	}

	// EventBus.Close() (via defer) waits up to 30s for in-flight handlers.
	log.Info("worker stopped")
}

// registerSubscribers wires all domain event handlers.
// Add new topics here as more services publish events.
func registerSubscribers(ctx context.Context, a *app.Application, projector *appsvcs.AvailabilityProjector) error {
	handlers := map[string]func(context.Context, *message.Message) error{
		lendingEvents.TopicLoanBorrowed: projector.HandleBorrowed,
		lendingEvents.TopicLoanReturned: projector.HandleReturned,
	}

	topics := make([]string, 0, len(handlers))
	for topic, handler := range handlers {
		errCh, err := a.EventBus.Subscribe(ctx, topic, handler)
		if err != nil {
			return err
		}

		// Drain subscriber errors in background so the channel never blocks.
		go func(topic string, errCh <-chan error) {
			for err := range errCh {
				a.Logger.ErrorContext(ctx, "subscriber error", "topic", topic, "error", err)
			}
		}(topic, errCh)
		topics = append(topics, topic)
	}

	a.Logger.Info("event subscribers registered", "topics", topics)
	return nil
}

func reconcileJob(projector *appsvcs.AvailabilityProjector, log logger.Logger) scheduler.Job {
	return func(ctx context.Context) error {
		n, err := projector.Reconcile(ctx)
		log.InfoContext(ctx, "availability reconciled", "items", n)
		return err
	}
}

// startTemporal connects to Temporal, starts the report worker and makes sure
// the overdue report cron workflow is scheduled.
func startTemporal(ctx context.Context, cfg *config.Config, a *app.Application) (worker.Worker, error) {
	tc, err := workflows.NewTemporalClient(ctx, cfg.TemporalHostPort, cfg.TemporalNamespace, cfg.TemporalTaskQueue, a.Logger)
	if err != nil {
		return nil, err
	}
	a.TemporalClient = tc

	w := tc.NewWorker(lendingwf.Registrar{
		Activities: &lendingwf.Activities{Overdue: postgres.NewRecordReader(a.Db)},
	})
	if err := w.Start(); err != nil {
		tc.Close()
		return nil, err
	}

	if err := tc.EnsureCron(ctx, lendingwf.OverdueReportWorkflowID, cfg.OverdueReportSchedule, lendingwf.OverdueReportWorkflow); err != nil {
		w.Stop()
		tc.Close()
		return nil, err
	}
	return w, nil
}
