package domain

import "time"

// MaxClaimants is the number of users that may hold a ticket at once.
const MaxClaimants = 2

// TicketState is the claim-derived lifecycle state of a ticket.
type TicketState string

const (
	TicketStateOpen             TicketState = "OPEN"
	TicketStatePartiallyClaimed TicketState = "PARTIALLY_CLAIMED"
	TicketStateFullyClaimed     TicketState = "FULLY_CLAIMED"
	TicketStateVerified         TicketState = "VERIFIED"
)

// Ticket is a short task published by one user and claimed by up to two others.
//
// ClaimCount mirrors len(Claimants) until the ticket is verified; verification
// pins it at MaxClaimants so the ticket drops out of the claimable set for good.
type Ticket struct {
	ID                  string    `json:"id"`
	Task                string    `json:"task"`
	CreatedBy           string    `json:"created_by"`
	ClaimCount          int       `json:"claim_count"`
	Claimants           []string  `json:"claimants"`
	PendingVerification bool      `json:"pending_verification"`
	SubmittedBy         *string   `json:"submitted_by,omitempty"`
	Verified            bool      `json:"verified"`
	Version             int64     `json:"version"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// State derives the lifecycle state.
func (t *Ticket) State() TicketState {
	if t.Verified {
		return TicketStateVerified
	}
	switch {
	case t.ClaimCount <= 0:
		return TicketStateOpen
	case t.ClaimCount < MaxClaimants:
		return TicketStatePartiallyClaimed
	default:
		return TicketStateFullyClaimed
	}
}

// IsFull reports whether no further claims are accepted.
func (t *Ticket) IsFull() bool {
	return t.Verified || t.ClaimCount >= MaxClaimants
}

// HasClaimant reports whether userID currently holds the ticket.
func (t *Ticket) HasClaimant(userID string) bool {
	return containsID(t.Claimants, userID)
}

// IsParticipant reports whether userID created or claimed the ticket.
func (t *Ticket) IsParticipant(userID string) bool {
	return t.CreatedBy == userID || t.HasClaimant(userID)
}

// AddClaimant appends userID and keeps ClaimCount in step. Callers check
// IsFull and HasClaimant first.
func (t *Ticket) AddClaimant(userID string) {
	t.Claimants = appendUnique(t.Claimants, userID)
	t.ClaimCount = len(t.Claimants)
}

// RemoveClaimant drops userID and keeps ClaimCount in step.
func (t *Ticket) RemoveClaimant(userID string) {
	t.Claimants = removeID(t.Claimants, userID)
	t.ClaimCount = len(t.Claimants)
}
