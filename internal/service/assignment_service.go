package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// AssignmentService is the terminal stage: it verifies the ticket is fully
// enriched, marks it assigned, and hands routing information to the
// notification layer. It produces no new data attributes.
type AssignmentService struct {
	tickets         repository.TicketRepository
	classifications repository.ClassificationRepository
	enriched        repository.EnrichedOutputRepository
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	metrics         *observability.Metrics
}

// AssignmentDependencies bundles collaborators for the assignment stage.
type AssignmentDependencies struct {
	TicketRepo         repository.TicketRepository
	ClassificationRepo repository.ClassificationRepository
	EnrichedRepo       repository.EnrichedOutputRepository
	Dispatcher         events.Dispatcher
	Logger             *zap.Logger
	Metrics            *observability.Metrics
}

// NewAssignmentService constructs the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets:         deps.TicketRepo,
		classifications: deps.ClassificationRepo,
		enriched:        deps.EnrichedRepo,
		dispatcher:      deps.Dispatcher,
		logger:          deps.Logger,
		metrics:         deps.Metrics,
	}
}

// Process handles one assignment job. All three records are required; a
// gap means upstream has not finished, so the job is dropped and the
// reconciler re-triggers once the pipeline catches up.
func (s *AssignmentService) Process(ctx context.Context, job domain.Job) error {
	ticket, err := s.tickets.GetByID(ctx, job.TicketID)
	if err != nil {
		return s.dropIfIncomplete(job, "ticket", err)
	}
	classification, err := s.classifications.GetByTicketID(ctx, job.TicketID)
	if err != nil {
		return s.dropIfIncomplete(job, "classification", err)
	}
	if _, err := s.enriched.GetByTicketID(ctx, job.TicketID); err != nil {
		return s.dropIfIncomplete(job, "enriched output", err)
	}

	if ticket.Status == domain.TicketStatusAssigned {
		s.logger.Info("ticket already assigned, skipping",
			zap.String("ticket_id", job.TicketID))
		s.metrics.RecordStage("assign", "skipped")
		return nil
	}

	if err := s.tickets.UpdateStatus(ctx, job.TicketID, domain.TicketStatusAssigned); err != nil {
		s.metrics.RecordStage("assign", "failed")
		return err
	}

	s.logger.Info("ticket assigned",
		zap.String("ticket_id", job.TicketID),
		zap.String("department", classification.Category),
		zap.Strings("routing_hints", classification.RoutingHints))

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: job.TicketID,
		Stage:    "assign",
		Payload: events.TicketAssignedPayload{
			Department:   classification.Category,
			Priority:     string(classification.Priority),
			RoutingHints: classification.RoutingHints,
		},
	})
	s.metrics.RecordStage("assign", "processed")
	return nil
}

func (s *AssignmentService) dropIfIncomplete(job domain.Job, resource string, err error) error {
	if apperrors.IsNotFound(err) {
		s.logger.Warn("pipeline incomplete for ticket, dropping job",
			zap.String("ticket_id", job.TicketID),
			zap.String("missing", resource))
		s.metrics.RecordStage("assign", "skipped")
		return nil
	}
	s.metrics.RecordStage("assign", "failed")
	return err
}

func (s *AssignmentService) publishEvent(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, event)
}
