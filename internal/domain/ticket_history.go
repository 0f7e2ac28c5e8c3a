package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated             TicketChangeType = "CREATED"
	ChangeTypeClaimed             TicketChangeType = "CLAIMED"
	ChangeTypeCompletionSubmitted TicketChangeType = "COMPLETION_SUBMITTED"
	ChangeTypeCompletionApproved  TicketChangeType = "COMPLETION_APPROVED"
	ChangeTypeCompletionRejected  TicketChangeType = "COMPLETION_REJECTED"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID         string           `json:"id"`
	TicketID   string           `json:"ticket_id"`
	ActorID    string           `json:"actor_id"`
	ChangeType TicketChangeType `json:"change_type"`
	Details    map[string]any   `json:"details,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
