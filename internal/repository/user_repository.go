package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/taskboard/internal/domain"
)

// Relation kinds stored in user_relations. Each row belongs to user_id only.
const (
	relationFriend          = "FRIEND"
	relationRequestSent     = "REQUEST_SENT"
	relationRequestReceived = "REQUEST_RECEIVED"
)

const pgUniqueViolation = "23505"

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type userRepository struct {
	db querier
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db querier) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, password_hash, name, version, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, email, password_hash, name)
        VALUES ($1, $2, $3, $4)
        RETURNING version, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
	).Scan(&user.Version, &user.CreatedAt, &user.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return fetchUser(ctx, r.db, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return fetchUser(ctx, r.db, query, email)
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1) ORDER BY email`
	return r.list(ctx, query, ids)
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY email`
	return r.list(ctx, query)
}

func (r *userRepository) list(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	users := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		users = append(users, *user)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range users {
		if err := loadUserEdges(ctx, r.db, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func fetchUser(ctx context.Context, db querier, query string, arg any) (*domain.User, error) {
	user, err := scanUser(db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	if err := loadUserEdges(ctx, db, user); err != nil {
		return nil, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Version,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// loadUserEdges fills the per-user lists from user_tasks_taken and user_relations.
func loadUserEdges(ctx context.Context, db querier, user *domain.User) error {
	user.TasksTaken = []string{}
	user.Friends = []string{}
	user.FriendRequestsSent = []string{}
	user.FriendRequestsReceived = []string{}

	rows, err := db.Query(ctx, `
        SELECT ticket_id FROM user_tasks_taken WHERE user_id=$1 ORDER BY position`, user.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var ticketID string
		if err := rows.Scan(&ticketID); err != nil {
			rows.Close()
			return err
		}
		user.TasksTaken = append(user.TasksTaken, ticketID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = db.Query(ctx, `
        SELECT kind, other_id FROM user_relations WHERE user_id=$1 ORDER BY kind, position`, user.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var kind, other string
		if err := rows.Scan(&kind, &other); err != nil {
			return err
		}
		switch kind {
		case relationFriend:
			user.Friends = append(user.Friends, other)
		case relationRequestSent:
			user.FriendRequestsSent = append(user.FriendRequestsSent, other)
		case relationRequestReceived:
			user.FriendRequestsReceived = append(user.FriendRequestsReceived, other)
		default:
			return fmt.Errorf("unknown relation kind %q for user %s", kind, user.ID)
		}
	}
	return rows.Err()
}

// saveUser writes the record guarded by its version and replaces its edge rows.
// The caller holds the row lock taken by lockUser.
func saveUser(ctx context.Context, db querier, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, version=version+1, updated_at=NOW()
        WHERE id=$2 AND version=$3
        RETURNING version, updated_at`
	if err := db.QueryRow(ctx, query, user.Name, user.ID, user.Version).
		Scan(&user.Version, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVersionConflict
		}
		return err
	}

	if _, err := db.Exec(ctx, `DELETE FROM user_tasks_taken WHERE user_id=$1`, user.ID); err != nil {
		return err
	}
	for i, ticketID := range user.TasksTaken {
		if _, err := db.Exec(ctx, `
            INSERT INTO user_tasks_taken (user_id, ticket_id, position) VALUES ($1,$2,$3)`,
			user.ID, ticketID, i); err != nil {
			return err
		}
	}

	if _, err := db.Exec(ctx, `DELETE FROM user_relations WHERE user_id=$1`, user.ID); err != nil {
		return err
	}
	relations := []struct {
		kind string
		ids  []string
	}{
		{relationFriend, user.Friends},
		{relationRequestSent, user.FriendRequestsSent},
		{relationRequestReceived, user.FriendRequestsReceived},
	}
	for _, rel := range relations {
		for i, other := range rel.ids {
			if _, err := db.Exec(ctx, `
                INSERT INTO user_relations (user_id, other_id, kind, position) VALUES ($1,$2,$3,$4)`,
				user.ID, other, rel.kind, i); err != nil {
				return err
			}
		}
	}
	return nil
}
