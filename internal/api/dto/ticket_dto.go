package dto

import (
	"time"

	"github.com/spec-kit/taskboard/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Task string `json:"task"`
}

// ClaimTicketRequest payload. AssigneeID defaults to the caller.
type ClaimTicketRequest struct {
	AssigneeID *string `json:"assignee_id"`
}

// VerifyCompletionRequest payload. Approve is required.
type VerifyCompletionRequest struct {
	Approve *bool `json:"approve"`
}

// TicketResponse represents a ticket.
type TicketResponse struct {
	ID                  string             `json:"id"`
	Task                string             `json:"task"`
	CreatedBy           string             `json:"created_by"`
	ClaimCount          int                `json:"claim_count"`
	Claimants           []string           `json:"claimants"`
	State               domain.TicketState `json:"state"`
	PendingVerification bool               `json:"pending_verification"`
	SubmittedBy         *string            `json:"submitted_by,omitempty"`
	Verified            bool               `json:"verified"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID         string                  `json:"id"`
	ActorID    string                  `json:"actor_id"`
	ChangeType domain.TicketChangeType `json:"change_type"`
	Details    map[string]any          `json:"details,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	claimants := t.Claimants
	if claimants == nil {
		claimants = []string{}
	}
	return TicketResponse{
		ID:                  t.ID,
		Task:                t.Task,
		CreatedBy:           t.CreatedBy,
		ClaimCount:          t.ClaimCount,
		Claimants:           claimants,
		State:               t.State(),
		PendingVerification: t.PendingVerification,
		SubmittedBy:         t.SubmittedBy,
		Verified:            t.Verified,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

// NewTicketList maps a slice of tickets.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	resp := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		resp = append(resp, NewTicketResponse(&tickets[i]))
	}
	return resp
}

// NewTicketHistoryList maps audit entries.
func NewTicketHistoryList(entries []domain.TicketHistory) []TicketHistoryResponse {
	resp := make([]TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, TicketHistoryResponse{
			ID:         e.ID,
			ActorID:    e.ActorID,
			ChangeType: e.ChangeType,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt,
		})
	}
	return resp
}
