package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/taskboard/internal/domain"
)

// PostgresStore is the Store backed by a pgx pool. Mutations run inside
// pgx transactions holding row locks for their lifetime.
type PostgresStore struct {
	pool    *pgxpool.Pool
	users   UserRepository
	tickets TicketRepository
	history TicketHistoryRepository
}

// NewPostgresStore wires the repositories over pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool:    pool,
		users:   NewUserRepository(pool),
		tickets: NewTicketRepository(pool),
		history: NewTicketHistoryRepository(pool),
	}
}

func (s *PostgresStore) Users() UserRepository            { return s.users }
func (s *PostgresStore) Tickets() TicketRepository        { return s.tickets }
func (s *PostgresStore) History() TicketHistoryRepository { return s.history }

// WithinTx runs fn inside a read-committed transaction. Row locks taken through
// the Tx are released on commit or rollback.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
	return classifyTxError(err)
}

const (
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
)

// classifyTxError maps engine aborts onto the store sentinels. Deadlocks and
// serialization failures are safe to retry, so they count as version conflicts.
func classifyTxError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgLockNotAvailable:
		return fmt.Errorf("%w: %w", ErrLockTimeout, err)
	case pgDeadlockDetected, pgSerializationFailure:
		return fmt.Errorf("%w: %w", ErrVersionConflict, err)
	}
	return err
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool is owned by persistence.Postgres.
func (s *PostgresStore) Close() error {
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	return createTicket(ctx, t.tx, ticket)
}

func (t *pgTx) LockTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	return fetchTicket(ctx, t.tx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1 FOR UPDATE`, id)
}

func (t *pgTx) SaveTicket(ctx context.Context, ticket *domain.Ticket) error {
	return saveTicket(ctx, t.tx, ticket)
}

// LockUsers locks the user rows in ascending id order.
func (t *pgTx) LockUsers(ctx context.Context, ids ...string) (map[string]*domain.User, error) {
	ordered := sortedUnique(ids)
	users := make(map[string]*domain.User, len(ordered))
	for _, id := range ordered {
		user, err := fetchUser(ctx, t.tx, `SELECT `+userColumns+` FROM users WHERE id=$1 FOR UPDATE`, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
			}
			return nil, err
		}
		users[id] = user
	}
	return users, nil
}

func (t *pgTx) SaveUser(ctx context.Context, user *domain.User) error {
	return saveUser(ctx, t.tx, user)
}

func (t *pgTx) AppendHistory(ctx context.Context, entry *domain.TicketHistory) error {
	return appendHistory(ctx, t.tx, entry)
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
