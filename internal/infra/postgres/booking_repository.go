package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

type BookingRepository struct {
	db dbtx
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: pool}
}

func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	const query = `
INSERT INTO bookings (id, slot_id, hold_id, member_id, trainer_id, package_type, amount_paid, payment_ref, status, confirmed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	_, err := r.db.Exec(ctx, query,
		booking.ID, booking.SlotID, booking.HoldID, booking.MemberID, booking.TrainerID,
		booking.PackageType, booking.AmountPaid, booking.PaymentRef, booking.Status, booking.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const query = `
SELECT id, slot_id, hold_id, member_id, trainer_id, package_type, amount_paid, payment_ref, status, confirmed_at
FROM bookings
WHERE id = $1
`
	var booking domain.Booking
	err := r.db.QueryRow(ctx, query, id).Scan(
		&booking.ID,
		&booking.SlotID,
		&booking.HoldID,
		&booking.MemberID,
		&booking.TrainerID,
		&booking.PackageType,
		&booking.AmountPaid,
		&booking.PaymentRef,
		&booking.Status,
		&booking.ConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// AppendStatusEvent grava o evento append-only e espelha o status na
// coluna do booking. O registro de confirmação (valores, referências,
// timestamp) nunca muda, só a coluna de status acompanha o histórico.
func (r *BookingRepository) AppendStatusEvent(ctx context.Context, event *domain.BookingStatusEvent) error {
	const insertEvent = `
INSERT INTO booking_status_events (id, booking_id, status, reason, created_at)
VALUES ($1, $2, $3, $4, $5)
`
	if _, err := r.db.Exec(ctx, insertEvent,
		event.ID, event.BookingID, event.Status, event.Reason, event.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to append status event: %w", err)
	}

	const mirrorStatus = `UPDATE bookings SET status = $2 WHERE id = $1`
	if _, err := r.db.Exec(ctx, mirrorStatus, event.BookingID, event.Status); err != nil {
		return fmt.Errorf("failed to mirror booking status: %w", err)
	}
	return nil
}

func (r *BookingRepository) WithTx(tx gateway.TransactionObject) gateway.BookingRepository {
	pgTx, ok := tx.(pgx.Tx)
	if !ok {
		return r
	}
	return &BookingRepository{db: pgTx}
}
