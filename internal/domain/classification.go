package domain

import "time"

// Priority enumerates triage priority buckets, P1 being the most severe.
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

// Severity enumerates impact/urgency levels.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Classification is the classifier's verdict for a ticket, one-to-one with
// the ticket id. Category, subcategory, service and intent vocabulary is a
// deployment taxonomy; impact, urgency and priority are fixed enumerations.
type Classification struct {
	TicketID         string   `json:"ticket_id"`
	Category         string   `json:"category"`
	Subcategory      string   `json:"subcategory,omitempty"`
	Service          string   `json:"service,omitempty"`
	Intent           string   `json:"intent"`
	Impact           Severity `json:"impact"`
	Urgency          Severity `json:"urgency"`
	Priority         Priority `json:"priority"`
	Confidence       float64  `json:"confidence"`
	RoutingHints     []string `json:"routing_hints"`
	SuggestedActions []string `json:"suggested_actions"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// DefaultClassification is the conservative fallback used when the
// classifier is unreachable after retries: lowest confidence, routed for
// manual review, never silently dropped.
func DefaultClassification(ticketID string) *Classification {
	return &Classification{
		TicketID:         ticketID,
		Category:         "General",
		Intent:           "Unknown",
		Impact:           SeverityLow,
		Urgency:          SeverityLow,
		Priority:         PriorityP4,
		Confidence:       0,
		RoutingHints:     []string{"Team:Helpdesk"},
		SuggestedActions: []string{"Needs manual review"},
	}
}
