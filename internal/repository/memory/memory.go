// Package memory provides in-memory implementations of the repository
// interfaces. Suitable for dev runs without Postgres and for tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// Store backs all three repositories with one mutex so cross-record scans
// (the reconciler queries) see a consistent view.
type Store struct {
	mu              sync.RWMutex
	tickets         map[string]*domain.Ticket
	classifications map[string]*domain.Classification
	enriched        map[string]*domain.EnrichedOutput
}

// NewStore initializes an empty in-memory store.
func NewStore() *Store {
	return &Store{
		tickets:         make(map[string]*domain.Ticket),
		classifications: make(map[string]*domain.Classification),
		enriched:        make(map[string]*domain.EnrichedOutput),
	}
}

// Tickets returns the ticket repository view of the store.
func (s *Store) Tickets() repository.TicketRepository { return (*ticketStore)(s) }

// Classifications returns the classification repository view of the store.
func (s *Store) Classifications() repository.ClassificationRepository { return (*classificationStore)(s) }

// EnrichedOutputs returns the enriched-output repository view of the store.
func (s *Store) EnrichedOutputs() repository.EnrichedOutputRepository { return (*enrichedStore)(s) }

type ticketStore Store

func (s *ticketStore) InsertIfAbsent(_ context.Context, ticket *domain.Ticket) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.TicketID]; ok {
		return false, nil
	}
	cp := *ticket
	cp.Status = domain.TicketStatusNew
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.tickets[ticket.TicketID] = &cp
	return true, nil
}

func (s *ticketStore) GetByID(_ context.Context, ticketID string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	cp := *ticket
	return &cp, nil
}

func (s *ticketStore) UpdateTriage(_ context.Context, ticketID, department, ticketType string, priority domain.Priority, status domain.TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	ticket.Department = department
	ticket.TicketType = ticketType
	ticket.Priority = priority
	ticket.Status = status
	ticket.UpdatedAt = time.Now()
	return nil
}

func (s *ticketStore) UpdateStatus(_ context.Context, ticketID string, status domain.TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	ticket.Status = status
	ticket.UpdatedAt = time.Now()
	return nil
}

func (s *ticketStore) ListStuckInStatus(_ context.Context, status domain.TicketStatus, olderThan time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, ticket := range s.tickets {
		if ticket.Status == status && ticket.UpdatedAt.Before(olderThan) {
			ids = append(ids, id)
		}
	}
	return capSorted(ids, limit), nil
}

type classificationStore Store

func (s *classificationStore) Insert(_ context.Context, classification *domain.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classifications[classification.TicketID]; ok {
		return apperrors.NewDuplicate("classification", map[string]any{"ticket_id": classification.TicketID})
	}
	cp := *classification
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.classifications[classification.TicketID] = &cp
	return nil
}

func (s *classificationStore) GetByTicketID(_ context.Context, ticketID string) (*domain.Classification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	classification, ok := s.classifications[ticketID]
	if !ok {
		return nil, apperrors.NewNotFound("classification", map[string]any{"ticket_id": ticketID})
	}
	cp := *classification
	return &cp, nil
}

type enrichedStore Store

func (s *enrichedStore) Insert(_ context.Context, output *domain.EnrichedOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.enriched[output.TicketID]; ok {
		return apperrors.NewDuplicate("enriched output", map[string]any{"ticket_id": output.TicketID})
	}
	cp := *output
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.enriched[output.TicketID] = &cp
	return nil
}

func (s *enrichedStore) GetByTicketID(_ context.Context, ticketID string) (*domain.EnrichedOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output, ok := s.enriched[ticketID]
	if !ok {
		return nil, apperrors.NewNotFound("enriched output", map[string]any{"ticket_id": ticketID})
	}
	cp := *output
	return &cp, nil
}

func capSorted(ids []string, limit int) []string {
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}
