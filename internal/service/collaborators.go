package service

import (
	"context"

	"github.com/spec-kit/ticket-triage/internal/collaborator"
	"github.com/spec-kit/ticket-triage/internal/domain"
)

// Classifier is the external classification collaborator: it returns a
// label set for the ticket or a CollaboratorError.
type Classifier interface {
	Classify(ctx context.Context, ticket *domain.Ticket) (*domain.Classification, error)
}

// Retriever is the external knowledge-base collaborator. An empty passage
// list is a valid result.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]collaborator.Passage, error)
}

// SolutionGenerator produces the agent-ready reply text from the ticket,
// its classification, and the retrieved context.
type SolutionGenerator interface {
	GenerateSolution(ctx context.Context, ticket *domain.Ticket, classification *domain.Classification, kbContext string) (string, error)
}

// SinkPublisher is the external ticket-management system the pipeline
// mirrors into. Implementations return CollaboratorError on non-2xx.
type SinkPublisher interface {
	UpsertTicket(ctx context.Context, ticket *domain.Ticket) error
	AppendAIMessage(ctx context.Context, ticketID, content string) error
}
