package service

import (
	"context"
	"sync"

	"github.com/spec-kit/ticket-triage/internal/collaborator"
	"github.com/spec-kit/ticket-triage/internal/domain"
)

// fakeClassifier implements Classifier and SolutionGenerator for testing.
type fakeClassifier struct {
	mu            sync.Mutex
	classifyCalls int
	classifyFn    func(ticket *domain.Ticket) (*domain.Classification, error)
	reply         string
	generateErr   error
}

func (f *fakeClassifier) Classify(_ context.Context, ticket *domain.Ticket) (*domain.Classification, error) {
	f.mu.Lock()
	f.classifyCalls++
	f.mu.Unlock()
	if f.classifyFn != nil {
		return f.classifyFn(ticket)
	}
	return &domain.Classification{
		TicketID:   ticket.TicketID,
		Category:   "IT Support",
		Intent:     "incident",
		Impact:     domain.SeverityMedium,
		Urgency:    domain.SeverityMedium,
		Priority:   domain.PriorityP3,
		Confidence: 0.9,
	}, nil
}

func (f *fakeClassifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.classifyCalls
}

func (f *fakeClassifier) GenerateSolution(_ context.Context, _ *domain.Ticket, _ *domain.Classification, _ string) (string, error) {
	if f.generateErr != nil {
		return "", f.generateErr
	}
	if f.reply == "" {
		return "Please try restarting the VPN client.", nil
	}
	return f.reply, nil
}

type fakeRetriever struct {
	passages  []collaborator.Passage
	err       error
	lastQuery string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string) ([]collaborator.Passage, error) {
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

type fakeSink struct {
	mu        sync.Mutex
	upserts   []string
	messages  []string
	upsertErr error
	appendErr error
}

func (f *fakeSink) UpsertTicket(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, ticket.TicketID)
	return nil
}

func (f *fakeSink) AppendAIMessage(_ context.Context, ticketID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.messages = append(f.messages, ticketID)
	return nil
}

func (f *fakeSink) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

func newStoredTicket(id string, status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		TicketID:    id,
		Source:      domain.TicketSourceEmail,
		SenderEmail: "user@example.com",
		Subject:     "VPN not connecting",
		Body:        "The VPN client times out on login.",
		Status:      status,
	}
}

func storedClassification(id string) *domain.Classification {
	return &domain.Classification{
		TicketID:   id,
		Category:   "Network",
		Intent:     "incident",
		Impact:     domain.SeverityMedium,
		Urgency:    domain.SeverityHigh,
		Priority:   domain.PriorityP2,
		Confidence: 0.8,
	}
}
