package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/collaborator"
	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/persistence"
	"github.com/spec-kit/ticket-triage/internal/queue"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/service"
	"github.com/spec-kit/ticket-triage/internal/worker"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	classificationRepo := repository.NewClassificationRepository(pool)
	enrichedRepo := repository.NewEnrichedOutputRepository(pool)

	queues := queue.NewRedisQueue(redis.Client)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notifications.RegisterHandlers()

	classifier, err := collaborator.NewLLMClient(cfg.Classifier)
	if err != nil {
		logger.Fatal("failed to init classifier client", zap.Error(err))
	}
	retriever := collaborator.NewRetrievalClient(cfg.Retrieval)

	var sink service.SinkPublisher
	if client := collaborator.NewSinkClient(cfg.Sink); client != nil {
		sink = client
	}

	ingestion := service.NewIngestionService(service.IngestionDependencies{
		TicketRepo:    ticketRepo,
		Queue:         queues,
		ClassifyQueue: cfg.Queues.Classify,
		Dispatcher:    dispatcher,
		Logger:        logger,
		Metrics:       metrics,
	})
	classification := service.NewClassificationService(service.ClassificationDependencies{
		TicketRepo:         ticketRepo,
		ClassificationRepo: classificationRepo,
		Queue:              queues,
		EnrichQueue:        cfg.Queues.Enrich,
		Classifier:         classifier,
		Sink:               sink,
		SinkAuthoritative:  cfg.Sink.Authoritative,
		MaxAttempts:        cfg.Classifier.MaxAttempts,
		RetryBackoff:       time.Duration(cfg.Classifier.RetryBackoffMS) * time.Millisecond,
		Dispatcher:         dispatcher,
		Logger:             logger,
		Metrics:            metrics,
	})
	enrichment := service.NewEnrichmentService(service.EnrichmentDependencies{
		TicketRepo:         ticketRepo,
		ClassificationRepo: classificationRepo,
		EnrichedRepo:       enrichedRepo,
		Queue:              queues,
		AssignmentQueue:    cfg.Queues.Assignment,
		Retriever:          retriever,
		Generator:          classifier,
		Sink:               sink,
		Dispatcher:         dispatcher,
		Logger:             logger,
		Metrics:            metrics,
	})
	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:         ticketRepo,
		ClassificationRepo: classificationRepo,
		EnrichedRepo:       enrichedRepo,
		Dispatcher:         dispatcher,
		Logger:             logger,
		Metrics:            metrics,
	})

	popTimeout := cfg.Pipeline.PopTimeout()
	storeBackoff := time.Duration(cfg.Pipeline.StoreBackoffSeconds) * time.Second

	var runners []*worker.Runner
	if cfg.Pipeline.StageEnabled("ingest") {
		runners = append(runners, worker.NewRunner("ingest", cfg.Queues.Ingest, queues,
			ingestion.ProcessPayload, popTimeout, storeBackoff, logger))
	}
	if cfg.Pipeline.StageEnabled("classify") {
		runners = append(runners, worker.NewRunner("classify", cfg.Queues.Classify, queues,
			worker.JobHandler(classification.Process), popTimeout, storeBackoff, logger))
	}
	if cfg.Pipeline.StageEnabled("enrich") {
		runners = append(runners, worker.NewRunner("enrich", cfg.Queues.Enrich, queues,
			worker.JobHandler(enrichment.Process), popTimeout, storeBackoff, logger))
	}
	if cfg.Pipeline.StageEnabled("assign") {
		runners = append(runners, worker.NewRunner("assign", cfg.Queues.Assignment, queues,
			worker.JobHandler(assignment.Process), popTimeout, storeBackoff, logger))
	}
	if len(runners) == 0 {
		logger.Fatal("no pipeline stages enabled")
	}

	var wg sync.WaitGroup
	for _, r := range runners {
		wg.Add(1)
		go func(r *worker.Runner) {
			defer wg.Done()
			r.Run(ctx)
		}(r)
	}

	if cfg.Pipeline.ReconcileEnabled {
		reconciler := worker.NewReconciler(ticketRepo, queues,
			cfg.Queues.Classify, cfg.Queues.Enrich, cfg.Queues.Assignment,
			time.Duration(cfg.Pipeline.ReconcileIntervalSec)*time.Second,
			time.Duration(cfg.Pipeline.ReconcileStuckAfterSec)*time.Second,
			cfg.Pipeline.ReconcileBatchSize, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			reconciler.Run(ctx)
		}()
	}

	waitForShutdown(logger)
	cancel()
	wg.Wait()
	logger.Info("pipeline stopped")
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
