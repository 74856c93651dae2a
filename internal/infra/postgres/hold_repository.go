package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

type HoldRepository struct {
	db dbtx
}

func NewHoldRepository(pool *pgxpool.Pool) *HoldRepository {
	return &HoldRepository{db: pool}
}

func (r *HoldRepository) Create(ctx context.Context, hold *domain.ReservationHold) error {
	const query = `
INSERT INTO reservation_holds (id, slot_id, member_id, status, expires_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at
`
	err := r.db.QueryRow(ctx, query,
		hold.ID, hold.SlotID, hold.MemberID, hold.Status, hold.ExpiresAt,
	).Scan(&hold.CreatedAt, &hold.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create hold: %w", err)
	}
	return nil
}

func (r *HoldRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReservationHold, error) {
	const query = `
SELECT id, slot_id, member_id, status, expires_at, created_at, updated_at
FROM reservation_holds
WHERE id = $1
`
	var hold domain.ReservationHold
	err := r.db.QueryRow(ctx, query, id).Scan(
		&hold.ID,
		&hold.SlotID,
		&hold.MemberID,
		&hold.Status,
		&hold.ExpiresAt,
		&hold.CreatedAt,
		&hold.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrHoldNotFound
		}
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}
	return &hold, nil
}

// Consume faz a transição terminal condicionada ao status atual.
// O WHERE status = 'active' é quem decide a corrida entre confirm,
// release e expire: exatamente um UPDATE afeta a linha, os outros
// voltam 0 linhas e viram no-op.
func (r *HoldRepository) Consume(ctx context.Context, id uuid.UUID, to domain.HoldStatus) (bool, error) {
	const query = `
UPDATE reservation_holds
SET status = $2, updated_at = now()
WHERE id = $1 AND status = 'active'
`
	tag, err := r.db.Exec(ctx, query, id, to)
	if err != nil {
		return false, fmt.Errorf("failed to consume hold: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *HoldRepository) ListExpired(ctx context.Context, now time.Time, limit int32) ([]domain.ReservationHold, error) {
	const query = `
SELECT id, slot_id, member_id, status, expires_at, created_at, updated_at
FROM reservation_holds
WHERE status = 'active' AND expires_at < $1
ORDER BY expires_at ASC
LIMIT $2
`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired holds: %w", err)
	}
	defer rows.Close()

	var holds []domain.ReservationHold
	for rows.Next() {
		var hold domain.ReservationHold
		if err := rows.Scan(
			&hold.ID,
			&hold.SlotID,
			&hold.MemberID,
			&hold.Status,
			&hold.ExpiresAt,
			&hold.CreatedAt,
			&hold.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan hold row: %w", err)
		}
		holds = append(holds, hold)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return holds, nil
}

func (r *HoldRepository) WithTx(tx gateway.TransactionObject) gateway.HoldRepository {
	pgTx, ok := tx.(pgx.Tx)
	if !ok {
		return r
	}
	return &HoldRepository{db: pgTx}
}
