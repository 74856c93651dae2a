package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

type PaymentIntentRepository struct {
	db dbtx
}

func NewPaymentIntentRepository(pool *pgxpool.Pool) *PaymentIntentRepository {
	return &PaymentIntentRepository{db: pool}
}

func (r *PaymentIntentRepository) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	const query = `
INSERT INTO payment_intents (id, hold_id, provider_ref, amount, currency, package_type, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at
`
	err := r.db.QueryRow(ctx, query,
		intent.ID, intent.HoldID, intent.ProviderRef,
		intent.Amount, intent.Currency, intent.PackageType, intent.Status,
	).Scan(&intent.CreatedAt, &intent.UpdatedAt)
	if err != nil {
		// Índice único em hold_id: dois retries simultâneos não criam
		// intent duplicado, o perdedor recebe ErrIntentExists.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrIntentExists
		}
		return fmt.Errorf("failed to create payment intent: %w", err)
	}
	return nil
}

func (r *PaymentIntentRepository) GetByHoldID(ctx context.Context, holdID uuid.UUID) (*domain.PaymentIntent, error) {
	return r.getBy(ctx, "hold_id = $1", holdID)
}

func (r *PaymentIntentRepository) GetByProviderRef(ctx context.Context, providerRef string) (*domain.PaymentIntent, error) {
	return r.getBy(ctx, "provider_ref = $1", providerRef)
}

func (r *PaymentIntentRepository) getBy(ctx context.Context, where string, arg any) (*domain.PaymentIntent, error) {
	query := `
SELECT id, hold_id, provider_ref, amount, currency, package_type, status, created_at, updated_at
FROM payment_intents
WHERE ` + where

	var intent domain.PaymentIntent
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&intent.ID,
		&intent.HoldID,
		&intent.ProviderRef,
		&intent.Amount,
		&intent.Currency,
		&intent.PackageType,
		&intent.Status,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return &intent, nil
}

// MarkStatus transiciona from -> to de forma condicional, a guarda que
// torna replay de webhook inofensivo: sair de status terminal nunca
// afeta linha nenhuma.
func (r *PaymentIntentRepository) MarkStatus(ctx context.Context, id uuid.UUID, from, to domain.IntentStatus) (bool, error) {
	const query = `
UPDATE payment_intents
SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2
`
	tag, err := r.db.Exec(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to mark intent status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PaymentIntentRepository) WithTx(tx gateway.TransactionObject) gateway.PaymentIntentRepository {
	pgTx, ok := tx.(pgx.Tx)
	if !ok {
		return r
	}
	return &PaymentIntentRepository{db: pgTx}
}
