package events

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketIngested   EventType = "ticket_ingested"
	EventTicketClassified EventType = "ticket_classified"
	EventTicketEnriched   EventType = "ticket_enriched"
	EventTicketAssigned   EventType = "ticket_assigned"
)

// Event represents a pipeline event emitted by stages.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Stage     string      `json:"stage"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketIngestedPayload payload.
type TicketIngestedPayload struct {
	Source      domain.TicketSource `json:"source"`
	SenderEmail string              `json:"sender_email"`
	Subject     string              `json:"subject"`
}

// TicketClassifiedPayload payload.
type TicketClassifiedPayload struct {
	Category   string          `json:"category"`
	Intent     string          `json:"intent"`
	Priority   domain.Priority `json:"priority"`
	Confidence float64         `json:"confidence"`
	Fallback   bool            `json:"fallback"`
}

// TicketEnrichedPayload payload.
type TicketEnrichedPayload struct {
	ResolutionType domain.ResolutionType `json:"resolution_type"`
	CitationCount  int                   `json:"citation_count"`
	ReplyPreview   string                `json:"reply_preview"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Department   string   `json:"department"`
	Priority     string   `json:"priority"`
	RoutingHints []string `json:"routing_hints"`
}
