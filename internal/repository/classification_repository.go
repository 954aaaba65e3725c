package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

type classificationRepository struct {
	pool *pgxpool.Pool
}

// NewClassificationRepository instantiates the Postgres-backed classification repository.
func NewClassificationRepository(pool *pgxpool.Pool) ClassificationRepository {
	return &classificationRepository{pool: pool}
}

func (r *classificationRepository) Insert(ctx context.Context, classification *domain.Classification) error {
	data, err := json.Marshal(classification)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}
	const query = `INSERT INTO classifications (ticket_id, data) VALUES ($1, $2)`
	if _, err := r.pool.Exec(ctx, query, classification.TicketID, data); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (r *classificationRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.Classification, error) {
	const query = `SELECT data, created_at FROM classifications WHERE ticket_id=$1`
	var (
		data           []byte
		classification domain.Classification
	)
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(&data, &classification.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("classification", map[string]any{"ticket_id": ticketID})
		}
		return nil, mapStoreError(err)
	}
	createdAt := classification.CreatedAt
	if err := json.Unmarshal(data, &classification); err != nil {
		return nil, fmt.Errorf("unmarshal classification: %w", err)
	}
	classification.TicketID = ticketID
	classification.CreatedAt = createdAt
	return &classification, nil
}
