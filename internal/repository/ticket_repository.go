package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

const uniqueViolationCode = "23505"

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed ticket repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) InsertIfAbsent(ctx context.Context, ticket *domain.Ticket) (bool, error) {
	const query = `
        INSERT INTO tickets (ticket_id, source, sender_email, subject, body, status, category_hint, priority_hint)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (ticket_id) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.TicketID,
		ticket.Source,
		ticket.SenderEmail,
		ticket.Subject,
		ticket.Body,
		domain.TicketStatusNew,
		ticket.CategoryHint,
		ticket.PriorityHint,
	)
	if err != nil {
		return false, mapStoreError(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	const query = `
        SELECT ticket_id, source, sender_email, subject, body, status, category_hint, priority_hint,
               department, ticket_type, priority, created_at, updated_at
        FROM tickets WHERE ticket_id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&ticket.TicketID,
		&ticket.Source,
		&ticket.SenderEmail,
		&ticket.Subject,
		&ticket.Body,
		&ticket.Status,
		&ticket.CategoryHint,
		&ticket.PriorityHint,
		&ticket.Department,
		&ticket.TicketType,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, mapStoreError(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateTriage(ctx context.Context, ticketID, department, ticketType string, priority domain.Priority, status domain.TicketStatus) error {
	const query = `
        UPDATE tickets SET department=$1, ticket_type=$2, priority=$3, status=$4, updated_at=NOW()
        WHERE ticket_id=$5`
	cmd, err := r.pool.Exec(ctx, query, department, ticketType, priority, status, ticketID)
	if err != nil {
		return mapStoreError(err)
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error {
	const query = `UPDATE tickets SET status=$1, updated_at=NOW() WHERE ticket_id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, ticketID)
	if err != nil {
		return mapStoreError(err)
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return nil
}

// ListStuckInStatus returns tickets that have sat in the given status since
// before olderThan. Status is the progress marker, so a stale status means
// the stage job for the next transition was lost and must be re-derived.
func (r *ticketRepository) ListStuckInStatus(ctx context.Context, status domain.TicketStatus, olderThan time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT ticket_id FROM tickets
        WHERE status=$1 AND updated_at < $2
        ORDER BY updated_at ASC LIMIT $3`
	rows, err := r.pool.Query(ctx, query, status, olderThan, limit)
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapStoreError(err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// mapStoreError translates driver errors into the pipeline taxonomy: unique
// violations become DUPLICATE, everything else STORE_UNAVAILABLE.
func mapStoreError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return apperrors.NewDuplicate("record", map[string]any{"constraint": pgErr.ConstraintName})
	}
	return apperrors.NewStoreError(err)
}
