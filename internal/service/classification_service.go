package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/queue"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// ClassificationService runs the classification stage: load the ticket,
// invoke the classifier, persist the verdict exactly once, mirror it to the
// ticket-management sink, and hand the ticket to enrichment.
type ClassificationService struct {
	tickets           repository.TicketRepository
	classifications   repository.ClassificationRepository
	queue             queue.Queue
	enrichQueue       string
	classifier        Classifier
	sink              SinkPublisher
	sinkAuthoritative bool
	maxAttempts       int
	retryBackoff      time.Duration
	dispatcher        events.Dispatcher
	logger            *zap.Logger
	metrics           *observability.Metrics
}

// ClassificationDependencies bundles collaborators for the classification stage.
type ClassificationDependencies struct {
	TicketRepo         repository.TicketRepository
	ClassificationRepo repository.ClassificationRepository
	Queue              queue.Queue
	EnrichQueue        string
	Classifier         Classifier
	Sink               SinkPublisher
	SinkAuthoritative  bool
	MaxAttempts        int
	RetryBackoff       time.Duration
	Dispatcher         events.Dispatcher
	Logger             *zap.Logger
	Metrics            *observability.Metrics
}

// NewClassificationService constructs the service.
func NewClassificationService(deps ClassificationDependencies) *ClassificationService {
	maxAttempts := deps.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &ClassificationService{
		tickets:           deps.TicketRepo,
		classifications:   deps.ClassificationRepo,
		queue:             deps.Queue,
		enrichQueue:       deps.EnrichQueue,
		classifier:        deps.Classifier,
		sink:              deps.Sink,
		sinkAuthoritative: deps.SinkAuthoritative,
		maxAttempts:       maxAttempts,
		retryBackoff:      deps.RetryBackoff,
		dispatcher:        deps.Dispatcher,
		logger:            deps.Logger,
		metrics:           deps.Metrics,
	}
}

// Process handles one classification job. Re-delivery of an already handled
// job is an idempotent skip; a missing ticket drops the job since nothing
// can be retried productively.
func (s *ClassificationService) Process(ctx context.Context, job domain.Job) error {
	ticket, err := s.tickets.GetByID(ctx, job.TicketID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.Warn("ticket not found, dropping job",
				zap.String("ticket_id", job.TicketID))
			s.metrics.RecordStage("classify", "skipped")
			return nil
		}
		s.metrics.RecordStage("classify", "failed")
		return err
	}

	classification, err := s.classifications.GetByTicketID(ctx, job.TicketID)
	switch {
	case err == nil:
		if ticket.Status != domain.TicketStatusNew {
			// Fully handled already; duplicate delivery.
			s.logger.Info("ticket already classified, skipping",
				zap.String("ticket_id", job.TicketID))
			s.metrics.RecordStage("classify", "skipped")
			return nil
		}
		// Verdict persisted but the stage crashed before finishing;
		// resume from the publish step.
	case apperrors.IsNotFound(err):
		fallback := false
		classification, err = s.classifyWithRetry(ctx, ticket)
		if err != nil {
			s.logger.Warn("classifier unavailable, using fallback classification",
				zap.String("ticket_id", job.TicketID), zap.Error(err))
			classification = domain.DefaultClassification(job.TicketID)
			fallback = true
		}
		if err := s.classifications.Insert(ctx, classification); err != nil {
			if apperrors.IsDuplicate(err) {
				// Lost the race against a concurrent worker; its copy wins.
				s.logger.Info("classification raced, skipping",
					zap.String("ticket_id", job.TicketID))
				s.metrics.RecordStage("classify", "skipped")
				return nil
			}
			s.metrics.RecordStage("classify", "failed")
			return err
		}
		s.logger.Info("ticket classified",
			zap.String("ticket_id", job.TicketID),
			zap.String("category", classification.Category),
			zap.String("priority", string(classification.Priority)),
			zap.Float64("confidence", classification.Confidence),
			zap.Bool("fallback", fallback))
	default:
		s.metrics.RecordStage("classify", "failed")
		return err
	}

	ticket.Department = classification.Category
	ticket.TicketType = classification.Intent
	ticket.Priority = classification.Priority

	if s.sink != nil {
		if err := s.sink.UpsertTicket(ctx, ticket); err != nil {
			if s.sinkAuthoritative {
				// The sink is the system of record: without the upsert the
				// ticket must not progress. Status stays NEW so the
				// reconciler re-derives this job.
				s.metrics.RecordStage("classify", "failed")
				return err
			}
			s.logger.Warn("sink upsert failed, continuing",
				zap.String("ticket_id", job.TicketID), zap.Error(err))
		}
	}

	if err := s.tickets.UpdateTriage(ctx, job.TicketID,
		classification.Category, classification.Intent, classification.Priority,
		domain.TicketStatusClassified); err != nil {
		s.metrics.RecordStage("classify", "failed")
		return err
	}

	if err := queue.PushJob(ctx, s.queue, s.enrichQueue, domain.Job{
		TicketID: job.TicketID,
		Reason:   job.Reason,
	}); err != nil {
		s.metrics.RecordStage("classify", "failed")
		return err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClassified,
		TicketID: job.TicketID,
		Stage:    "classify",
		Payload: events.TicketClassifiedPayload{
			Category:   classification.Category,
			Intent:     classification.Intent,
			Priority:   classification.Priority,
			Confidence: classification.Confidence,
			Fallback:   classification.Confidence == 0,
		},
	})
	s.metrics.RecordStage("classify", "processed")
	return nil
}

func (s *ClassificationService) classifyWithRetry(ctx context.Context, ticket *domain.Ticket) (*domain.Classification, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		classification, err := s.classifier.Classify(ctx, ticket)
		if err == nil {
			return classification, nil
		}
		lastErr = err
		if !apperrors.IsRetryable(err) {
			break
		}
		if attempt < s.maxAttempts && s.retryBackoff > 0 {
			select {
			case <-time.After(s.retryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func (s *ClassificationService) publishEvent(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, event)
}
