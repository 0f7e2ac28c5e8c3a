package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/taskboard/internal/domain"
)

type ticketRepository struct {
	db querier
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db querier) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, task, created_by, claim_count, pending_verification, submitted_by,
               verified, version, created_at, updated_at`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return fetchTicket(ctx, r.db, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Claimable {
		args = append(args, domain.MaxClaimants)
		clauses = append(clauses, fmt.Sprintf("t.claim_count < $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("t.created_by=$%d", len(args)))
	}
	if filter.Participant != "" {
		args = append(args, filter.Participant)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(t.created_by=%s OR EXISTS (SELECT 1 FROM ticket_claimants c WHERE c.ticket_id=t.id AND c.user_id=%s))",
			placeholder, placeholder))
	}
	if filter.IDs != nil {
		args = append(args, filter.IDs)
		clauses = append(clauses, fmt.Sprintf("t.id = ANY($%d)", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets t WHERE %s ORDER BY t.created_at DESC`,
		ticketColumns, strings.Join(clauses, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if err := loadClaimants(ctx, r.db, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func fetchTicket(ctx context.Context, db querier, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	single := []domain.Ticket{*ticket}
	if err := loadClaimants(ctx, db, single); err != nil {
		return nil, err
	}
	return &single[0], nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Task,
		&ticket.CreatedBy,
		&ticket.ClaimCount,
		&ticket.PendingVerification,
		&ticket.SubmittedBy,
		&ticket.Verified,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	defer rows.Close()
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

// loadClaimants fills Claimants for every ticket with a single query.
func loadClaimants(ctx context.Context, db querier, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids := make([]string, len(tickets))
	index := make(map[string]int, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
		index[tickets[i].ID] = i
		tickets[i].Claimants = []string{}
	}

	rows, err := db.Query(ctx, `
        SELECT ticket_id, user_id FROM ticket_claimants
        WHERE ticket_id = ANY($1) ORDER BY ticket_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ticketID, userID string
		if err := rows.Scan(&ticketID, &userID); err != nil {
			return err
		}
		if i, ok := index[ticketID]; ok {
			tickets[i].Claimants = append(tickets[i].Claimants, userID)
		}
	}
	return rows.Err()
}

func createTicket(ctx context.Context, db querier, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, task, created_by, claim_count, pending_verification, verified)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING version, created_at, updated_at`
	return db.QueryRow(ctx, query,
		ticket.ID,
		ticket.Task,
		ticket.CreatedBy,
		ticket.ClaimCount,
		ticket.PendingVerification,
		ticket.Verified,
	).Scan(&ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
}

// saveTicket writes the record guarded by its version and replaces the claimant rows.
func saveTicket(ctx context.Context, db querier, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET claim_count=$1, pending_verification=$2, submitted_by=$3, verified=$4,
            version=version+1, updated_at=NOW()
        WHERE id=$5 AND version=$6
        RETURNING version, updated_at`
	if err := db.QueryRow(ctx, query,
		ticket.ClaimCount,
		ticket.PendingVerification,
		ticket.SubmittedBy,
		ticket.Verified,
		ticket.ID,
		ticket.Version,
	).Scan(&ticket.Version, &ticket.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVersionConflict
		}
		return err
	}

	if _, err := db.Exec(ctx, `DELETE FROM ticket_claimants WHERE ticket_id=$1`, ticket.ID); err != nil {
		return err
	}
	for i, userID := range ticket.Claimants {
		if _, err := db.Exec(ctx, `
            INSERT INTO ticket_claimants (ticket_id, user_id, position) VALUES ($1,$2,$3)`,
			ticket.ID, userID, i); err != nil {
			return err
		}
	}
	return nil
}
