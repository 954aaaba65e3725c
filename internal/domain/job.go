package domain

import "time"

// JobReason records why a job was enqueued. Purely informational.
type JobReason string

const (
	JobReasonIngest    JobReason = "ingest"
	JobReasonReconcile JobReason = "reconcile"
)

// Job is a transient queue message signaling that a ticket needs processing
// by the next stage. The store is the source of truth; a lost job is always
// re-derivable from store state by the reconciler. Delivery is at-least-once
// and unordered, so every consumer must be idempotent.
type Job struct {
	TicketID   string    `json:"ticket_id"`
	Reason     JobReason `json:"reason,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at,omitempty"`
}
