package repository

import (
	"context"
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// TicketRepository encapsulates ticket persistence. InsertIfAbsent is the
// deduplication point of the pipeline: it must be atomic with respect to
// concurrent callers racing on the same ticket id.
type TicketRepository interface {
	InsertIfAbsent(ctx context.Context, ticket *domain.Ticket) (inserted bool, err error)
	GetByID(ctx context.Context, ticketID string) (*domain.Ticket, error)
	UpdateTriage(ctx context.Context, ticketID, department, ticketType string, priority domain.Priority, status domain.TicketStatus) error
	UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error

	// Reconciliation scan: ticket ids stuck in the given status since
	// before the cutoff, oldest first.
	ListStuckInStatus(ctx context.Context, status domain.TicketStatus, olderThan time.Time, limit int) ([]string, error)
}

// ClassificationRepository persists classifier verdicts, at most one per
// ticket id. Insert returns a DUPLICATE domain error when a record already
// exists; callers treat that as an idempotent skip.
type ClassificationRepository interface {
	Insert(ctx context.Context, classification *domain.Classification) error
	GetByTicketID(ctx context.Context, ticketID string) (*domain.Classification, error)
}

// EnrichedOutputRepository persists enrichment results, at most one per
// ticket id, with the same duplicate semantics as classifications.
type EnrichedOutputRepository interface {
	Insert(ctx context.Context, output *domain.EnrichedOutput) error
	GetByTicketID(ctx context.Context, ticketID string) (*domain.EnrichedOutput, error)
}
