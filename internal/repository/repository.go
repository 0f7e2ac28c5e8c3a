package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/taskboard/internal/domain"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a guarded write lost a race with another writer.
	ErrVersionConflict = errors.New("record modified concurrently")
	// ErrDuplicateEmail is returned when an email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrLockTimeout is returned when a row lock could not be taken within the engine's lock timeout.
	ErrLockTimeout = errors.New("row lock not acquired in time")
)

// TicketFilter narrows ticket listings. Zero values mean no constraint.
type TicketFilter struct {
	// Claimable keeps tickets that still accept claims (claim count 0 or 1).
	Claimable   bool
	CreatedBy   string
	Participant string
	IDs         []string
}

// Matches applies the filter to a single ticket. Stores that cannot push the
// filter into a query use it directly.
func (f TicketFilter) Matches(t *domain.Ticket) bool {
	if f.Claimable && t.ClaimCount >= domain.MaxClaimants {
		return false
	}
	if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
		return false
	}
	if f.Participant != "" && !t.IsParticipant(f.Participant) {
		return false
	}
	if f.IDs != nil {
		found := false
		for _, id := range f.IDs {
			if id == t.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// UserRepository provides snapshot reads and creation of user records.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

// TicketRepository provides snapshot reads of tickets. Tickets are created
// through Tx so the creation lands in the audit trail atomically.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

// TicketHistoryRepository reads audit entries.
type TicketHistoryRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

// Tx is the write side of the store. Every multi-record mutation goes through
// a Tx so that the ticket, its claimants and the users' records change together.
//
// Implementations lock rows in a fixed order (tickets before users, users by
// ascending id) and SaveTicket/SaveUser reject writes whose Version no longer
// matches the stored one with ErrVersionConflict.
type Tx interface {
	CreateTicket(ctx context.Context, ticket *domain.Ticket) error
	LockTicket(ctx context.Context, id string) (*domain.Ticket, error)
	SaveTicket(ctx context.Context, ticket *domain.Ticket) error
	LockUsers(ctx context.Context, ids ...string) (map[string]*domain.User, error)
	SaveUser(ctx context.Context, user *domain.User) error
	AppendHistory(ctx context.Context, entry *domain.TicketHistory) error
}

// Store bundles the identity and ticket stores of one dataset.
type Store interface {
	Users() UserRepository
	Tickets() TicketRepository
	History() TicketHistoryRepository
	// WithinTx runs fn in a single transaction. fn's error aborts the transaction
	// and is returned unchanged.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
