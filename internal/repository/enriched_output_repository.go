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

type enrichedOutputRepository struct {
	pool *pgxpool.Pool
}

// NewEnrichedOutputRepository instantiates the Postgres-backed enriched-output repository.
func NewEnrichedOutputRepository(pool *pgxpool.Pool) EnrichedOutputRepository {
	return &enrichedOutputRepository{pool: pool}
}

func (r *enrichedOutputRepository) Insert(ctx context.Context, output *domain.EnrichedOutput) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("marshal enriched output: %w", err)
	}
	const query = `INSERT INTO enriched_outputs (ticket_id, data) VALUES ($1, $2)`
	if _, err := r.pool.Exec(ctx, query, output.TicketID, data); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (r *enrichedOutputRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.EnrichedOutput, error) {
	const query = `SELECT data, created_at FROM enriched_outputs WHERE ticket_id=$1`
	var (
		data   []byte
		output domain.EnrichedOutput
	)
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(&data, &output.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("enriched output", map[string]any{"ticket_id": ticketID})
		}
		return nil, mapStoreError(err)
	}
	createdAt := output.CreatedAt
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("unmarshal enriched output: %w", err)
	}
	output.TicketID = ticketID
	output.CreatedAt = createdAt
	return &output, nil
}
