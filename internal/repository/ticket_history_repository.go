package repository

import (
	"context"

	"github.com/spec-kit/taskboard/internal/domain"
)

type ticketHistoryRepository struct {
	db querier
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(db querier) TicketHistoryRepository {
	return &ticketHistoryRepository{db: db}
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, actor_id, change_type, details, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketHistory{}
	for rows.Next() {
		var entry domain.TicketHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ActorID,
			&entry.ChangeType,
			&entry.Details,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func appendHistory(ctx context.Context, db querier, entry *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (id, ticket_id, actor_id, change_type, details)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	return db.QueryRow(ctx, query,
		entry.ID,
		entry.TicketID,
		entry.ActorID,
		entry.ChangeType,
		entry.Details,
	).Scan(&entry.CreatedAt)
}
