package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/queue"
	"github.com/spec-kit/ticket-triage/internal/repository/memory"
)

type pipeline struct {
	store          *memory.Store
	queue          *queue.MemoryQueue
	ingestion      *IngestionService
	classification *ClassificationService
	enrichment     *EnrichmentService
	assignment     *AssignmentService
}

func newPipeline(t *testing.T, classifier *fakeClassifier, retriever *fakeRetriever) *pipeline {
	t.Helper()
	store := memory.NewStore()
	q := queue.NewMemoryQueue()
	dispatcher := events.NewInMemoryDispatcher()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	return &pipeline{
		store: store,
		queue: q,
		ingestion: NewIngestionService(IngestionDependencies{
			TicketRepo:    store.Tickets(),
			Queue:         q,
			ClassifyQueue: "classify",
			Dispatcher:    dispatcher,
			Logger:        logger,
			Metrics:       metrics,
		}),
		classification: NewClassificationService(ClassificationDependencies{
			TicketRepo:         store.Tickets(),
			ClassificationRepo: store.Classifications(),
			Queue:              q,
			EnrichQueue:        "rag",
			Classifier:         classifier,
			Dispatcher:         dispatcher,
			Logger:             logger,
			Metrics:            metrics,
		}),
		enrichment: NewEnrichmentService(EnrichmentDependencies{
			TicketRepo:         store.Tickets(),
			ClassificationRepo: store.Classifications(),
			EnrichedRepo:       store.EnrichedOutputs(),
			Queue:              q,
			AssignmentQueue:    "assignment",
			Retriever:          retriever,
			Generator:          classifier,
			Dispatcher:         dispatcher,
			Logger:             logger,
			Metrics:            metrics,
		}),
		assignment: NewAssignmentService(AssignmentDependencies{
			TicketRepo:         store.Tickets(),
			ClassificationRepo: store.Classifications(),
			EnrichedRepo:       store.EnrichedOutputs(),
			Dispatcher:         dispatcher,
			Logger:             logger,
			Metrics:            metrics,
		}),
	}
}

// drain pops every pending job on the named queue and feeds it to process.
func (p *pipeline) drain(t *testing.T, name string, process func(context.Context, domain.Job) error) {
	t.Helper()
	ctx := context.Background()
	for p.queue.Len(name) > 0 {
		payload, ok, err := p.queue.PopBlocking(ctx, name, 10*time.Millisecond)
		if err != nil || !ok {
			t.Fatalf("drain %s: ok=%v err=%v", name, ok, err)
		}
		job, err := queue.DecodeJob(payload)
		if err != nil {
			t.Fatalf("decode job: %v", err)
		}
		if err := process(ctx, job); err != nil {
			t.Fatalf("process %s job for %s: %v", name, job.TicketID, err)
		}
	}
}

func TestPipeline_RoundTrip(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		classifyFn: func(ticket *domain.Ticket) (*domain.Classification, error) {
			// An urgent connectivity outage lands at the high end of the
			// priority scale.
			return &domain.Classification{
				TicketID:     ticket.TicketID,
				Category:     "Network",
				Subcategory:  "VPN",
				Service:      "Corporate VPN",
				Intent:       "incident",
				Impact:       domain.SeverityHigh,
				Urgency:      domain.SeverityHigh,
				Priority:     domain.PriorityP1,
				Confidence:   0.95,
				RoutingHints: []string{"Team:Network"},
			}, nil
		},
		reply: "Reinstall the VPN profile and re-enroll the device.",
	}
	p := newPipeline(t, classifier, &fakeRetriever{})
	ctx := context.Background()

	raw, _ := json.Marshal(domain.TicketPayload{
		TicketID:    "eml-vpn",
		SenderEmail: "jordan@corp.example.com",
		Subject:     "URGENT: VPN Connection Issue - Samsung Phone",
		Body:        "I cannot reach the VPN from my Samsung phone since this morning. This is urgent, I am traveling.",
	})
	if err := p.ingestion.ProcessPayload(ctx, raw); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	p.drain(t, "classify", p.classification.Process)
	p.drain(t, "rag", p.enrichment.Process)
	p.drain(t, "assignment", p.assignment.Process)

	ticket, err := p.store.Tickets().GetByID(ctx, "eml-vpn")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if ticket.Status != domain.TicketStatusAssigned {
		t.Errorf("final status = %q, want %q", ticket.Status, domain.TicketStatusAssigned)
	}
	if ticket.Priority != domain.PriorityP1 {
		t.Errorf("priority = %q, want %q", ticket.Priority, domain.PriorityP1)
	}

	output, err := p.store.EnrichedOutputs().GetByTicketID(ctx, "eml-vpn")
	if err != nil {
		t.Fatalf("GetByTicketID: %v", err)
	}
	if strings.TrimSpace(output.AssistantReply) == "" {
		t.Error("assistant reply must be non-empty")
	}
	if output.Classification.Urgency != domain.SeverityHigh {
		t.Errorf("urgency = %q, want %q", output.Classification.Urgency, domain.SeverityHigh)
	}
}

func TestPipeline_ConcurrentClassifyWorkers(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, &fakeClassifier{}, &fakeRetriever{})
	ctx := context.Background()

	for _, id := range []string{"t-a", "t-b"} {
		raw, _ := json.Marshal(domain.TicketPayload{
			TicketID:    id,
			SenderEmail: "user@example.com",
			Body:        "something broke",
		})
		if err := p.ingestion.ProcessPayload(ctx, raw); err != nil {
			t.Fatalf("ingest %s: %v", id, err)
		}
	}

	// Two workers drain the classify queue concurrently.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				payload, ok, err := p.queue.PopBlocking(ctx, "classify", 20*time.Millisecond)
				if err != nil || !ok {
					return
				}
				job, err := queue.DecodeJob(payload)
				if err != nil {
					t.Errorf("decode: %v", err)
					return
				}
				if err := p.classification.Process(ctx, job); err != nil {
					t.Errorf("classify %s: %v", job.TicketID, err)
				}
			}
		}()
	}
	wg.Wait()

	for _, id := range []string{"t-a", "t-b"} {
		classification, err := p.store.Classifications().GetByTicketID(ctx, id)
		if err != nil {
			t.Fatalf("GetByTicketID(%s): %v", id, err)
		}
		if classification.TicketID != id {
			t.Errorf("classification for %s has ticket id %q", id, classification.TicketID)
		}
		ticket, _ := p.store.Tickets().GetByID(ctx, id)
		if ticket.Status != domain.TicketStatusClassified {
			t.Errorf("%s status = %q, want %q", id, ticket.Status, domain.TicketStatusClassified)
		}
	}
	if got := p.queue.Len("rag"); got != 2 {
		t.Errorf("rag queue length = %d, want 2", got)
	}
}
