// Package dto defines request and response shapes for the HTTP API.
package dto

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// Stage record states in the merged ticket view.
const (
	StagePending  = "pending"
	StageComplete = "complete"
)

// SubmitTicketRequest mirrors the ingestion payload contract.
type SubmitTicketRequest = domain.TicketPayload

// SubmitTicketResponse acknowledges an accepted submission. The ticket is
// queued, not yet persisted.
type SubmitTicketResponse struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

// TicketView is the ticket record as exposed over the API.
type TicketView struct {
	TicketID    string          `json:"ticket_id"`
	Source      string          `json:"source"`
	SenderEmail string          `json:"sender_email"`
	Subject     string          `json:"subject"`
	Status      string          `json:"status"`
	Department  string          `json:"department,omitempty"`
	TicketType  string          `json:"ticket_type,omitempty"`
	Priority    domain.Priority `json:"priority,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TicketDetailResponse merges the ticket with whatever downstream records
// exist so far. Absent records are reported as pending, not as errors.
type TicketDetailResponse struct {
	Ticket              TicketView             `json:"ticket"`
	ClassificationState string                 `json:"classification_state"`
	Classification      *domain.Classification `json:"classification,omitempty"`
	EnrichmentState     string                 `json:"enrichment_state"`
	EnrichedOutput      *domain.EnrichedOutput `json:"enriched_output,omitempty"`
}

// NewTicketView maps the domain record.
func NewTicketView(ticket *domain.Ticket) TicketView {
	return TicketView{
		TicketID:    ticket.TicketID,
		Source:      string(ticket.Source),
		SenderEmail: ticket.SenderEmail,
		Subject:     ticket.Subject,
		Status:      string(ticket.Status),
		Department:  ticket.Department,
		TicketType:  ticket.TicketType,
		Priority:    ticket.Priority,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}
