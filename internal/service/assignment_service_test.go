package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/repository/memory"
)

func newAssignment(store *memory.Store, dispatcher events.Dispatcher) *AssignmentService {
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}
	return NewAssignmentService(AssignmentDependencies{
		TicketRepo:         store.Tickets(),
		ClassificationRepo: store.Classifications(),
		EnrichedRepo:       store.EnrichedOutputs(),
		Dispatcher:         dispatcher,
		Logger:             zap.NewNop(),
		Metrics:            observability.NewMetrics(),
	})
}

func seedEnriched(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	ctx := context.Background()
	if _, err := store.Tickets().InsertIfAbsent(ctx, newStoredTicket(id, domain.TicketStatusNew)); err != nil {
		t.Fatalf("InsertIfAbsent: %v", err)
	}
	if err := store.Classifications().Insert(ctx, storedClassification(id)); err != nil {
		t.Fatalf("Insert classification: %v", err)
	}
	if err := store.EnrichedOutputs().Insert(ctx, &domain.EnrichedOutput{
		TicketID:       id,
		Classification: *storedClassification(id),
		AssistantReply: "Reset the adapter.",
		ResolutionType: domain.ResolutionNeedsAgent,
	}); err != nil {
		t.Fatalf("Insert enriched: %v", err)
	}
	if err := store.Tickets().UpdateStatus(ctx, id, domain.TicketStatusEnriched); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
}

func TestAssign_Success(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	dispatcher := events.NewInMemoryDispatcher()
	var published []events.Event
	dispatcher.Subscribe(events.EventTicketAssigned, func(_ context.Context, e events.Event) error {
		published = append(published, e)
		return nil
	})
	svc := newAssignment(store, dispatcher)
	ctx := context.Background()
	seedEnriched(t, store, "t-1")

	if err := svc.Process(ctx, domain.Job{TicketID: "t-1"}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	ticket, err := store.Tickets().GetByID(ctx, "t-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if ticket.Status != domain.TicketStatusAssigned {
		t.Errorf("status = %q, want %q", ticket.Status, domain.TicketStatusAssigned)
	}
	if len(published) != 1 || published[0].TicketID != "t-1" {
		t.Errorf("published events = %+v", published)
	}
}

func TestAssign_IncompletePipelineDropsJob(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	svc := newAssignment(store, nil)
	ctx := context.Background()

	// Ticket and classification exist but enrichment does not.
	if _, err := store.Tickets().InsertIfAbsent(ctx, newStoredTicket("t-1", domain.TicketStatusNew)); err != nil {
		t.Fatalf("InsertIfAbsent: %v", err)
	}
	if err := store.Classifications().Insert(ctx, storedClassification("t-1")); err != nil {
		t.Fatalf("Insert classification: %v", err)
	}

	if err := svc.Process(ctx, domain.Job{TicketID: "t-1"}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	ticket, _ := store.Tickets().GetByID(ctx, "t-1")
	if ticket.Status == domain.TicketStatusAssigned {
		t.Error("ticket must not be assigned before enrichment exists")
	}
}

func TestAssign_UnknownTicketDropsJob(t *testing.T) {
	t.Parallel()

	svc := newAssignment(memory.NewStore(), nil)
	if err := svc.Process(context.Background(), domain.Job{TicketID: "ghost"}); err != nil {
		t.Fatalf("Process: %v", err)
	}
}

func TestAssign_IdempotentRedelivery(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	dispatcher := events.NewInMemoryDispatcher()
	var count int
	dispatcher.Subscribe(events.EventTicketAssigned, func(context.Context, events.Event) error {
		count++
		return nil
	})
	svc := newAssignment(store, dispatcher)
	ctx := context.Background()
	seedEnriched(t, store, "t-1")

	if err := svc.Process(ctx, domain.Job{TicketID: "t-1"}); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	if err := svc.Process(ctx, domain.Job{TicketID: "t-1"}); err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if count != 1 {
		t.Errorf("assigned events = %d, want 1", count)
	}
}
