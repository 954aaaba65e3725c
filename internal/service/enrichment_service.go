package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/queue"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// noContextMarker substitutes for an empty retrieval result: the generator
// still runs, it just works without documentation.
const noContextMarker = "No specific documentation found."

// placeholderReply guarantees the enriched record is always completable
// even when solution generation fails or returns nothing.
const placeholderReply = "Our team has received your ticket and an agent will follow up with a solution shortly."

// EnrichmentService runs the enrichment stage: retrieve knowledge-base
// context, generate the agent-ready reply, persist the enriched output
// exactly once, and hand the ticket to assignment.
type EnrichmentService struct {
	tickets         repository.TicketRepository
	classifications repository.ClassificationRepository
	enriched        repository.EnrichedOutputRepository
	queue           queue.Queue
	assignmentQueue string
	retriever       Retriever
	generator       SolutionGenerator
	sink            SinkPublisher
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	metrics         *observability.Metrics
}

// EnrichmentDependencies bundles collaborators for the enrichment stage.
type EnrichmentDependencies struct {
	TicketRepo         repository.TicketRepository
	ClassificationRepo repository.ClassificationRepository
	EnrichedRepo       repository.EnrichedOutputRepository
	Queue              queue.Queue
	AssignmentQueue    string
	Retriever          Retriever
	Generator          SolutionGenerator
	Sink               SinkPublisher
	Dispatcher         events.Dispatcher
	Logger             *zap.Logger
	Metrics            *observability.Metrics
}

// NewEnrichmentService constructs the service.
func NewEnrichmentService(deps EnrichmentDependencies) *EnrichmentService {
	return &EnrichmentService{
		tickets:         deps.TicketRepo,
		classifications: deps.ClassificationRepo,
		enriched:        deps.EnrichedRepo,
		queue:           deps.Queue,
		assignmentQueue: deps.AssignmentQueue,
		retriever:       deps.Retriever,
		generator:       deps.Generator,
		sink:            deps.Sink,
		dispatcher:      deps.Dispatcher,
		logger:          deps.Logger,
		metrics:         deps.Metrics,
	}
}

// Process handles one enrichment job. The classification must already
// exist; this stage never fabricates one.
func (s *EnrichmentService) Process(ctx context.Context, job domain.Job) error {
	ticket, err := s.tickets.GetByID(ctx, job.TicketID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.Warn("ticket not found, dropping job",
				zap.String("ticket_id", job.TicketID))
			s.metrics.RecordStage("enrich", "skipped")
			return nil
		}
		s.metrics.RecordStage("enrich", "failed")
		return err
	}

	classification, err := s.classifications.GetByTicketID(ctx, job.TicketID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.Warn("classification not found, dropping job",
				zap.String("ticket_id", job.TicketID))
			s.metrics.RecordStage("enrich", "skipped")
			return nil
		}
		s.metrics.RecordStage("enrich", "failed")
		return err
	}

	if existing, err := s.enriched.GetByTicketID(ctx, job.TicketID); err == nil {
		// Already enriched; heal the hand-off in case the previous run
		// crashed before updating status or enqueueing assignment.
		return s.finish(ctx, job, ticket, existing)
	} else if !apperrors.IsNotFound(err) {
		s.metrics.RecordStage("enrich", "failed")
		return err
	}

	kbContext, citations := s.retrieveContext(ctx, ticket)

	reply, err := s.generator.GenerateSolution(ctx, ticket, classification, kbContext)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			s.logger.Warn("solution generation failed, using placeholder",
				zap.String("ticket_id", job.TicketID), zap.Error(err))
		}
		reply = placeholderReply
	}

	output := &domain.EnrichedOutput{
		TicketID:             job.TicketID,
		Classification:       *classification,
		AssistantReply:       reply,
		Citations:            citations,
		ClarifyingQuestions:  []string{},
		ResolutionType:       domain.ResolutionNeedsAgent,
		AutomationCandidates: []domain.AutomationCandidate{},
	}
	if err := s.enriched.Insert(ctx, output); err != nil {
		if apperrors.IsDuplicate(err) {
			s.logger.Info("enrichment raced, skipping",
				zap.String("ticket_id", job.TicketID))
			s.metrics.RecordStage("enrich", "skipped")
			return nil
		}
		s.metrics.RecordStage("enrich", "failed")
		return err
	}

	s.logger.Info("ticket enriched",
		zap.String("ticket_id", job.TicketID),
		zap.Int("citations", len(citations)),
		zap.String("reply_preview", stringPreview(reply, 100)))

	return s.finish(ctx, job, ticket, output)
}

// retrieveContext queries the knowledge base, degrading to the no-context
// marker on failure or an empty result.
func (s *EnrichmentService) retrieveContext(ctx context.Context, ticket *domain.Ticket) (string, []string) {
	query := strings.TrimSpace(ticket.Subject + " " + ticket.Body)
	passages, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		s.logger.Warn("retrieval failed, continuing without context",
			zap.String("ticket_id", ticket.TicketID), zap.Error(err))
		return noContextMarker, []string{}
	}
	if len(passages) == 0 {
		return noContextMarker, []string{}
	}

	parts := make([]string, 0, len(passages))
	citations := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, fmt.Sprintf("[%s] %s", p.DocID, p.Text))
		citations = append(citations, p.DocID)
	}
	return strings.Join(parts, "\n\n"), citations
}

func (s *EnrichmentService) finish(ctx context.Context, job domain.Job, ticket *domain.Ticket, output *domain.EnrichedOutput) error {
	if ticket.Status == domain.TicketStatusClassified {
		if err := s.tickets.UpdateStatus(ctx, job.TicketID, domain.TicketStatusEnriched); err != nil {
			s.metrics.RecordStage("enrich", "failed")
			return err
		}
	}

	if s.sink != nil {
		// Best effort: the reply mirror is not load-bearing for the
		// ticket's correctness.
		if err := s.sink.AppendAIMessage(ctx, job.TicketID, output.AssistantReply); err != nil {
			s.logger.Warn("sink message append failed, continuing",
				zap.String("ticket_id", job.TicketID), zap.Error(err))
		}
	}

	if err := queue.PushJob(ctx, s.queue, s.assignmentQueue, domain.Job{
		TicketID: job.TicketID,
		Reason:   job.Reason,
	}); err != nil {
		s.metrics.RecordStage("enrich", "failed")
		return err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketEnriched,
		TicketID: job.TicketID,
		Stage:    "enrich",
		Payload: events.TicketEnrichedPayload{
			ResolutionType: output.ResolutionType,
			CitationCount:  len(output.Citations),
			ReplyPreview:   stringPreview(output.AssistantReply, 120),
		},
	})
	s.metrics.RecordStage("enrich", "processed")
	return nil
}

func (s *EnrichmentService) publishEvent(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, event)
}
