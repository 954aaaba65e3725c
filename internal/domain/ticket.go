package domain

import "time"

// TicketStatus enumerates pipeline lifecycle states. Transitions are
// monotonic: new -> classified -> enriched -> assigned.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "NEW"
	TicketStatusClassified TicketStatus = "CLASSIFIED"
	TicketStatusEnriched   TicketStatus = "ENRICHED"
	TicketStatusAssigned   TicketStatus = "ASSIGNED"
)

// TicketSource enumerates ingestion channels.
type TicketSource string

const (
	TicketSourceEmail TicketSource = "email"
	TicketSourceAPI   TicketSource = "api"
)

// Ticket is the durable record for a support request. TicketID is
// caller-supplied or derived from the source message identifier and is the
// sole deduplication key; it never changes after insert.
type Ticket struct {
	TicketID    string
	Source      TicketSource
	SenderEmail string
	Subject     string
	Body        string
	Status      TicketStatus

	// Hints suggested by the upstream collaborator before classification.
	CategoryHint string
	PriorityHint string

	// Triage fields, written only by the classification stage.
	Department string
	TicketType string
	Priority   Priority

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TicketPayload is the inbound ingestion contract: the normalized shape
// produced by the email poller or posted through the submission API.
type TicketPayload struct {
	TicketID     string `json:"ticket_id"`
	Source       string `json:"source"`
	SenderEmail  string `json:"sender_email"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	CategoryHint string `json:"initial_category_suggestion,omitempty"`
	PriorityHint string `json:"initial_priority_suggestion,omitempty"`
	ReceivedAt   string `json:"timestamp_received_utc,omitempty"`
}
