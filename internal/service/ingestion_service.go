package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/queue"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// IngestionService validates inbound ticket payloads, deduplicates against
// the store, and hands accepted tickets to the classification stage.
type IngestionService struct {
	tickets       repository.TicketRepository
	queue         queue.Queue
	classifyQueue string
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	metrics       *observability.Metrics
}

// IngestionDependencies bundles collaborators for the ingestion stage.
type IngestionDependencies struct {
	TicketRepo    repository.TicketRepository
	Queue         queue.Queue
	ClassifyQueue string
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Metrics       *observability.Metrics
}

// NewIngestionService constructs the service.
func NewIngestionService(deps IngestionDependencies) *IngestionService {
	return &IngestionService{
		tickets:       deps.TicketRepo,
		queue:         deps.Queue,
		classifyQueue: deps.ClassifyQueue,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
	}
}

// ProcessPayload handles one raw payload from the ingest queue. Duplicates
// are an idempotent no-op; exactly one classification job is enqueued per
// inserted ticket.
func (s *IngestionService) ProcessPayload(ctx context.Context, raw []byte) error {
	ticket, err := ParseTicketPayload(raw)
	if err != nil {
		s.metrics.RecordStage("ingest", "failed")
		return err
	}

	inserted, err := s.tickets.InsertIfAbsent(ctx, ticket)
	if err != nil {
		s.metrics.RecordStage("ingest", "failed")
		return err
	}
	if !inserted {
		s.logger.Warn("duplicate ticket, skipping",
			zap.String("ticket_id", ticket.TicketID))
		s.metrics.RecordStage("ingest", "skipped")
		return nil
	}

	s.logger.Info("ticket saved",
		zap.String("ticket_id", ticket.TicketID),
		zap.String("source", string(ticket.Source)))

	if err := queue.PushJob(ctx, s.queue, s.classifyQueue, domain.Job{
		TicketID: ticket.TicketID,
		Reason:   domain.JobReasonIngest,
	}); err != nil {
		// The ticket is durable; the reconciler will re-derive the job.
		s.metrics.RecordStage("ingest", "failed")
		return err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketIngested,
		TicketID: ticket.TicketID,
		Stage:    "ingest",
		Payload: events.TicketIngestedPayload{
			Source:      ticket.Source,
			SenderEmail: ticket.SenderEmail,
			Subject:     ticket.Subject,
		},
	})
	s.metrics.RecordStage("ingest", "processed")
	return nil
}

// ParseTicketPayload decodes and validates a raw ingestion payload,
// deriving a ticket id when the caller did not supply one.
func ParseTicketPayload(raw []byte) (*domain.Ticket, error) {
	var payload domain.TicketPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperrors.NewValidationError("payload is not valid JSON", nil)
	}
	return TicketFromPayload(payload)
}

// TicketFromPayload validates the payload shape and builds the ticket
// record. Body and sender are required; a malformed payload never reaches
// the store.
func TicketFromPayload(payload domain.TicketPayload) (*domain.Ticket, error) {
	missing := map[string]any{}
	sender := strings.TrimSpace(payload.SenderEmail)
	body := strings.TrimSpace(payload.Body)
	if sender == "" || !strings.Contains(sender, "@") {
		missing["sender_email"] = "required"
	}
	if body == "" {
		missing["body"] = "required"
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required ticket fields", missing)
	}

	source := domain.TicketSource(strings.TrimSpace(payload.Source))
	if source == "" {
		source = domain.TicketSourceEmail
	}

	ticketID := strings.TrimSpace(payload.TicketID)
	if ticketID == "" {
		ticketID = deriveTicketID(source)
	}

	createdAt := time.Time{}
	if payload.ReceivedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, payload.ReceivedAt); err == nil {
			createdAt = parsed
		}
	}

	return &domain.Ticket{
		TicketID:     ticketID,
		Source:       source,
		SenderEmail:  sender,
		Subject:      strings.TrimSpace(payload.Subject),
		Body:         body,
		Status:       domain.TicketStatusNew,
		CategoryHint: payload.CategoryHint,
		PriorityHint: payload.PriorityHint,
		CreatedAt:    createdAt,
	}, nil
}

func deriveTicketID(source domain.TicketSource) string {
	prefix := "api"
	if source == domain.TicketSourceEmail {
		prefix = "eml"
	}
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (s *IngestionService) publishEvent(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, event)
}
