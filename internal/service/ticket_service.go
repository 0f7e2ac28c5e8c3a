package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/events"
	"github.com/spec-kit/taskboard/internal/lock"
	"github.com/spec-kit/taskboard/internal/repository"
	apperrors "github.com/spec-kit/taskboard/pkg/util/errorutil"
)

// TicketService coordinates the ticket lifecycle: creation, claims, completion
// submission and verification. A claim touches both the ticket and the
// claimant's user record; both writes always land in one transaction.
type TicketService struct {
	txRunner
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Locker     lock.Locker
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	MaxRetries int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		txRunner: newTxRunner(deps.Store, deps.Locker, deps.Dispatcher, deps.Logger, deps.MaxRetries),
	}
}

// CreateTicket publishes a new unclaimed ticket.
func (s *TicketService) CreateTicket(ctx context.Context, creatorID, task string) (*domain.Ticket, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, ErrTaskRequired
	}

	ticket := &domain.Ticket{
		ID:        uuid.NewString(),
		Task:      task,
		CreatedBy: creatorID,
		Claimants: []string{},
	}
	err := s.run(ctx, "", func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateTicket(ctx, ticket); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, newHistory(ticket.ID, creatorID, domain.ChangeTypeCreated, map[string]any{
			"task": ticket.Task,
		}))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket created", zap.String("ticket_id", ticket.ID), zap.String("created_by", creatorID))
	s.publish(ctx, events.Event{
		Type:    events.EventTicketCreated,
		Subject: ticket.ID,
		ActorID: creatorID,
		Payload: events.TicketCreatedPayload{Task: ticket.Task},
	})
	return ticket, nil
}

// ClaimTicket adds assigneeID (callerID when empty) as a claimant. A ticket
// takes at most two claimants; a claim on a full ticket fails immediately.
func (s *TicketService) ClaimTicket(ctx context.Context, ticketID, callerID, assigneeID string) (*domain.Ticket, error) {
	if assigneeID == "" {
		assigneeID = callerID
	}

	var claimed *domain.Ticket
	err := s.run(ctx, lock.TicketKey(ticketID), func(ctx context.Context, tx repository.Tx) error {
		ticket, err := lockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		users, err := tx.LockUsers(ctx, assigneeID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFound("user", map[string]any{"id": assigneeID})
			}
			return err
		}
		assignee := users[assigneeID]

		if ticket.IsFull() {
			return ErrAlreadyFull
		}
		if ticket.HasClaimant(assigneeID) {
			return ErrAlreadyClaimed
		}

		ticket.AddClaimant(assigneeID)
		assignee.AddTask(ticket.ID)

		if err := tx.SaveTicket(ctx, ticket); err != nil {
			return err
		}
		if err := tx.SaveUser(ctx, assignee); err != nil {
			return err
		}
		details := map[string]any{"claimant_id": assigneeID, "claim_count": ticket.ClaimCount}
		if err := tx.AppendHistory(ctx, newHistory(ticket.ID, callerID, domain.ChangeTypeClaimed, details)); err != nil {
			return err
		}
		claimed = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket claimed",
		zap.String("ticket_id", ticketID),
		zap.String("claimant_id", assigneeID),
		zap.Int("claim_count", claimed.ClaimCount))
	s.publish(ctx, events.Event{
		Type:    events.EventTicketClaimed,
		Subject: ticketID,
		ActorID: callerID,
		Payload: events.TicketClaimedPayload{ClaimantID: assigneeID, ClaimCount: claimed.ClaimCount},
	})
	return claimed, nil
}

// SubmitCompletion marks the ticket as awaiting the creator's verification.
func (s *TicketService) SubmitCompletion(ctx context.Context, ticketID, callerID string) (*domain.Ticket, error) {
	var submitted *domain.Ticket
	err := s.run(ctx, lock.TicketKey(ticketID), func(ctx context.Context, tx repository.Tx) error {
		ticket, err := lockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if !ticket.HasClaimant(callerID) {
			return ErrNotClaimant
		}
		if ticket.Verified {
			return ErrAlreadyVerified
		}
		if ticket.PendingVerification {
			return ErrCompletionPending
		}

		submitter := callerID
		ticket.PendingVerification = true
		ticket.SubmittedBy = &submitter
		if err := tx.SaveTicket(ctx, ticket); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, newHistory(ticket.ID, callerID, domain.ChangeTypeCompletionSubmitted, nil)); err != nil {
			return err
		}
		submitted = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("completion submitted", zap.String("ticket_id", ticketID), zap.String("submitted_by", callerID))
	s.publish(ctx, events.Event{
		Type:    events.EventCompletionSubmitted,
		Subject: ticketID,
		ActorID: callerID,
		Payload: events.CompletionSubmittedPayload{SubmittedBy: callerID, CreatedBy: submitted.CreatedBy},
	})
	return submitted, nil
}

// VerifyCompletion resolves a pending completion. Approval makes the ticket
// terminal. Rejection releases the submitting claimant's slot and removes the
// ticket from that user's tasks in the same transaction.
func (s *TicketService) VerifyCompletion(ctx context.Context, ticketID, callerID string, approve bool) (*domain.Ticket, error) {
	var (
		verified  *domain.Ticket
		submitter string
	)
	err := s.run(ctx, lock.TicketKey(ticketID), func(ctx context.Context, tx repository.Tx) error {
		ticket, err := lockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if ticket.CreatedBy != callerID {
			return ErrNotCreator
		}
		if !ticket.PendingVerification {
			return ErrNoPendingRequest
		}

		submitter = ""
		if ticket.SubmittedBy != nil {
			submitter = *ticket.SubmittedBy
		}
		ticket.PendingVerification = false
		ticket.SubmittedBy = nil

		changeType := domain.ChangeTypeCompletionApproved
		details := map[string]any{"submitted_by": submitter}
		if approve {
			ticket.Verified = true
			ticket.ClaimCount = domain.MaxClaimants
		} else {
			changeType = domain.ChangeTypeCompletionRejected
			if submitter != "" && ticket.HasClaimant(submitter) {
				users, err := tx.LockUsers(ctx, submitter)
				if err != nil {
					return err
				}
				ticket.RemoveClaimant(submitter)
				users[submitter].RemoveTask(ticket.ID)
				if err := tx.SaveUser(ctx, users[submitter]); err != nil {
					return err
				}
				details["removed_claimant"] = submitter
			}
		}
		details["claim_count"] = ticket.ClaimCount

		if err := tx.SaveTicket(ctx, ticket); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, newHistory(ticket.ID, callerID, changeType, details)); err != nil {
			return err
		}
		verified = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("completion verified",
		zap.String("ticket_id", ticketID),
		zap.Bool("approved", approve),
		zap.Int("claim_count", verified.ClaimCount))
	s.publish(ctx, events.Event{
		Type:    events.EventCompletionVerified,
		Subject: ticketID,
		ActorID: callerID,
		Payload: events.CompletionVerifiedPayload{
			Approved:    approve,
			SubmittedBy: submitter,
			ClaimCount:  verified.ClaimCount,
		},
	})
	return verified, nil
}

// ListOpenOrPartial returns tickets that still accept claims, newest first.
func (s *TicketService) ListOpenOrPartial(ctx context.Context) ([]domain.Ticket, error) {
	return s.listTickets(ctx, repository.TicketFilter{Claimable: true})
}

// ListByCreator returns the tickets userID created.
func (s *TicketService) ListByCreator(ctx context.Context, userID string) ([]domain.Ticket, error) {
	return s.listTickets(ctx, repository.TicketFilter{CreatedBy: userID})
}

// ListByParticipant returns tickets userID created or claimed.
func (s *TicketService) ListByParticipant(ctx context.Context, userID string) ([]domain.Ticket, error) {
	return s.listTickets(ctx, repository.TicketFilter{Participant: userID})
}

// ListTasksTaken resolves the user's tasksTaken list to tickets, in the order
// the user claimed them.
func (s *TicketService) ListTasksTaken(ctx context.Context, userID string) ([]domain.Ticket, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return nil, s.storageError(err)
	}
	tickets, err := s.listTickets(ctx, repository.TicketFilter{IDs: user.TasksTaken})
	if err != nil {
		return nil, err
	}
	return orderByIDs(tickets, user.TasksTaken), nil
}

// orderByIDs returns tickets in the order of ids, skipping ids with no ticket.
func orderByIDs(tickets []domain.Ticket, ids []string) []domain.Ticket {
	byID := make(map[string]domain.Ticket, len(tickets))
	for _, t := range tickets {
		byID[t.ID] = t
	}
	ordered := make([]domain.Ticket, 0, len(tickets))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

// GetTicket fetches a single ticket.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ticketNotFound(ticketID)
		}
		return nil, s.storageError(err)
	}
	return ticket, nil
}

// ListHistory returns the audit trail of a ticket, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.store.History().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, s.storageError(err)
	}
	return entries, nil
}

func (s *TicketService) listTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, s.storageError(err)
	}
	return tickets, nil
}

func lockTicket(ctx context.Context, tx repository.Tx, ticketID string) (*domain.Ticket, error) {
	ticket, err := tx.LockTicket(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ticketNotFound(ticketID)
	}
	return ticket, err
}

func ticketNotFound(ticketID string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
}

func newHistory(ticketID, actorID string, changeType domain.TicketChangeType, details map[string]any) *domain.TicketHistory {
	return &domain.TicketHistory{
		ID:         uuid.NewString(),
		TicketID:   ticketID,
		ActorID:    actorID,
		ChangeType: changeType,
		Details:    details,
	}
}
