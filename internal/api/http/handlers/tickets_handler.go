package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/queue"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/service"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// TicketsHandler exposes ticket submission and lookup. Submission only
// validates and enqueues; the pipeline workers own all store writes.
type TicketsHandler struct {
	tickets         repository.TicketRepository
	classifications repository.ClassificationRepository
	enriched        repository.EnrichedOutputRepository
	queue           queue.Queue
	ingestQueue     string
	logger          *zap.Logger
}

// TicketsHandlerDependencies bundles collaborators for the handler.
type TicketsHandlerDependencies struct {
	TicketRepo         repository.TicketRepository
	ClassificationRepo repository.ClassificationRepository
	EnrichedRepo       repository.EnrichedOutputRepository
	Queue              queue.Queue
	IngestQueue        string
	Logger             *zap.Logger
}

// NewTicketsHandler constructs the handler.
func NewTicketsHandler(deps TicketsHandlerDependencies) *TicketsHandler {
	return &TicketsHandler{
		tickets:         deps.TicketRepo,
		classifications: deps.ClassificationRepo,
		enriched:        deps.EnrichedRepo,
		queue:           deps.Queue,
		ingestQueue:     deps.IngestQueue,
		logger:          deps.Logger,
	}
}

// Submit accepts a ticket payload, assigns an id if absent, and pushes it
// onto the ingest queue. Responds 202: the pipeline processes it later.
func (h *TicketsHandler) Submit(c *fiber.Ctx) error {
	var req dto.SubmitTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("payload is not valid JSON", nil)
	}

	// Validate the shape now so producers get an immediate 400 instead of
	// a silently dropped job. The worker re-validates on consume.
	ticket, err := service.TicketFromPayload(req)
	if err != nil {
		return err
	}
	req.TicketID = ticket.TicketID

	payload, err := json.Marshal(req)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := h.queue.Push(c.UserContext(), h.ingestQueue, payload); err != nil {
		return err
	}

	h.logger.Info("ticket enqueued",
		zap.String("ticket_id", ticket.TicketID),
		zap.String("source", string(ticket.Source)))

	return c.Status(http.StatusAccepted).JSON(dto.SubmitTicketResponse{
		TicketID: ticket.TicketID,
		Status:   "queued",
	})
}

// Get returns the merged pipeline view for one ticket.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	if ticketID == "" {
		return apperrors.NewValidationError("ticket id is required", nil)
	}

	ticket, err := h.tickets.GetByID(c.UserContext(), ticketID)
	if err != nil {
		return err
	}

	resp := dto.TicketDetailResponse{
		Ticket:              dto.NewTicketView(ticket),
		ClassificationState: dto.StagePending,
		EnrichmentState:     dto.StagePending,
	}

	classification, err := h.classifications.GetByTicketID(c.UserContext(), ticketID)
	switch {
	case err == nil:
		resp.ClassificationState = dto.StageComplete
		resp.Classification = classification
	case !apperrors.IsNotFound(err):
		return err
	}

	output, err := h.enriched.GetByTicketID(c.UserContext(), ticketID)
	switch {
	case err == nil:
		resp.EnrichmentState = dto.StageComplete
		resp.EnrichedOutput = output
	case !apperrors.IsNotFound(err):
		return err
	}

	return c.JSON(resp)
}
