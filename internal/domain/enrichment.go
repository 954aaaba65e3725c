package domain

import "time"

// ResolutionType tags how an enriched ticket is expected to be resolved.
type ResolutionType string

const (
	ResolutionNeedsAgent    ResolutionType = "needs_agent"
	ResolutionSelfService   ResolutionType = "self_service"
	ResolutionAutomatable   ResolutionType = "automatable"
	ResolutionNeedsFollowUp ResolutionType = "needs_follow_up"
)

// AutomationCandidate describes a runbook or script that could resolve the
// ticket without an agent.
type AutomationCandidate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// EnrichedOutput is the agent-ready result produced by the enrichment stage,
// one-to-one with the ticket id. The classification is denormalized for
// audit so the record stands alone. AssistantReply is never empty; a
// placeholder is substituted when generation fails. Citations may be empty
// when retrieval found nothing.
type EnrichedOutput struct {
	TicketID             string                `json:"ticket_id"`
	Classification       Classification        `json:"classification"`
	AssistantReply       string                `json:"assistant_reply"`
	Citations            []string              `json:"citations"`
	ClarifyingQuestions  []string              `json:"clarifying_questions"`
	ResolutionType       ResolutionType        `json:"resolution_type"`
	AutomationCandidates []AutomationCandidate `json:"automation_candidates"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}
