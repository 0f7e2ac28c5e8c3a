package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketClaimed         EventType = "ticket_claimed"
	EventCompletionSubmitted   EventType = "ticket_completion_submitted"
	EventCompletionVerified    EventType = "ticket_completion_verified"
	EventFriendRequestSent     EventType = "friend_request_sent"
	EventFriendRequestApproved EventType = "friend_request_approved"
	EventFriendRequestRejected EventType = "friend_request_rejected"
)

// Event represents a committed change emitted by the engines. Subject is the
// ticket id for ticket events and the other user's id for friendship events.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Subject   string    `json:"subject"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Task string `json:"task"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	ClaimantID string `json:"claimant_id"`
	ClaimCount int    `json:"claim_count"`
}

// CompletionSubmittedPayload payload.
type CompletionSubmittedPayload struct {
	SubmittedBy string `json:"submitted_by"`
	CreatedBy   string `json:"created_by"`
}

// CompletionVerifiedPayload payload.
type CompletionVerifiedPayload struct {
	Approved    bool   `json:"approved"`
	SubmittedBy string `json:"submitted_by"`
	ClaimCount  int    `json:"claim_count"`
}

// FriendRequestPayload payload.
type FriendRequestPayload struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
}
