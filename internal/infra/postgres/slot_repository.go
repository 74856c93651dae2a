package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

// SlotRepository implementa gateway.SlotRepository usando pgx/v5
type SlotRepository struct {
	db dbtx
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{db: pool}
}

func (r *SlotRepository) Create(ctx context.Context, slot *domain.Slot) error {
	const query = `
INSERT INTO slots (id, trainer_id, class_id, start_time, end_time, capacity)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at, updated_at
`
	err := r.db.QueryRow(ctx, query,
		slot.ID, slot.TrainerID, slot.ClassID, slot.StartTime, slot.EndTime, slot.Capacity,
	).Scan(&slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		// A exclusion constraint de agenda é a última linha de defesa
		// contra dois creates sobrepostos que escaparam da checagem.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return domain.ErrSlotOverlap
		}
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *SlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Slot, error) {
	return r.get(ctx, id, false)
}

// GetByIDForUpdate trava a linha do slot até o fim da transação.
// TODO: avaliar NOWAIT + retry quando aparecer contenção real em produção.
func (r *SlotRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Slot, error) {
	return r.get(ctx, id, true)
}

func (r *SlotRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Slot, error) {
	query := `
SELECT id, trainer_id, class_id, start_time, end_time, capacity, created_at, updated_at
FROM slots
WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var slot domain.Slot
	err := r.db.QueryRow(ctx, query, id).Scan(
		&slot.ID,
		&slot.TrainerID,
		&slot.ClassID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Capacity,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return &slot, nil
}

func (r *SlotRepository) HasOverlap(ctx context.Context, trainerID uuid.UUID, start, end time.Time) (bool, error) {
	// Em ReadCommitted duas transações não enxergam o insert uma da
	// outra, e não existe linha ainda para dar FOR UPDATE. O advisory
	// lock por trainer serializa checagem + insert até o commit.
	const lock = `SELECT pg_advisory_xact_lock(hashtext($1::text))`
	if _, err := r.db.Exec(ctx, lock, trainerID); err != nil {
		return false, fmt.Errorf("failed to lock trainer schedule: %w", err)
	}

	const query = `
SELECT EXISTS (
	SELECT 1 FROM slots
	WHERE trainer_id = $1 AND start_time < $3 AND end_time > $2
)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, trainerID, start, end).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check slot overlap: %w", err)
	}
	return exists, nil
}

// CountOccupied soma holds ativos + bookings confirmados.
// Chamado sempre atrás do FOR UPDATE do slot; é a contagem que sustenta
// o invariante capacity >= bookedCount.
func (r *SlotRepository) CountOccupied(ctx context.Context, slotID uuid.UUID) (int32, error) {
	const query = `
SELECT
	(SELECT count(*) FROM reservation_holds WHERE slot_id = $1 AND status = 'active') +
	(SELECT count(*) FROM bookings WHERE slot_id = $1 AND status = 'confirmed')
`
	var occupied int32
	if err := r.db.QueryRow(ctx, query, slotID).Scan(&occupied); err != nil {
		return 0, fmt.Errorf("failed to count slot occupancy: %w", err)
	}
	return occupied, nil
}

func (r *SlotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Holds terminais são só histórico; saem junto com o slot.
	// O usecase já garantiu que não existe hold ativo nem booking.
	if _, err := r.db.Exec(ctx, `DELETE FROM reservation_holds WHERE slot_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete slot holds: %w", err)
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

func (r *SlotRepository) ListBookable(ctx context.Context, filter gateway.AvailabilityFilter) ([]domain.SlotAvailability, error) {
	const query = `
SELECT s.id, s.trainer_id, s.class_id, s.start_time, s.end_time, s.capacity,
	s.capacity
		- (SELECT count(*) FROM reservation_holds h WHERE h.slot_id = s.id AND h.status = 'active')
		- (SELECT count(*) FROM bookings b WHERE b.slot_id = s.id AND b.status = 'confirmed')
	AS remaining
FROM slots s
WHERE ($1::uuid IS NULL OR s.trainer_id = $1)
  AND ($2::uuid IS NULL OR s.class_id = $2)
  AND s.start_time >= $3
  AND s.start_time <= $4
ORDER BY s.start_time ASC
`
	var trainerID, classID *uuid.UUID
	if filter.TrainerID != uuid.Nil {
		trainerID = &filter.TrainerID
	}
	if filter.ClassID != uuid.Nil {
		classID = &filter.ClassID
	}

	rows, err := r.db.Query(ctx, query, trainerID, classID, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookable slots: %w", err)
	}
	defer rows.Close()

	now := time.Now().UTC()
	var results []domain.SlotAvailability
	for rows.Next() {
		var s domain.SlotAvailability
		if err := rows.Scan(
			&s.SlotID,
			&s.TrainerID,
			&s.ClassID,
			&s.StartTime,
			&s.EndTime,
			&s.Capacity,
			&s.Remaining,
		); err != nil {
			return nil, fmt.Errorf("failed to scan availability row: %w", err)
		}
		s.UpdatedAt = now
		if s.Remaining > 0 {
			results = append(results, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// WithTx retorna uma cópia do repositório usando uma transação específica
func (r *SlotRepository) WithTx(tx gateway.TransactionObject) gateway.SlotRepository {
	pgTx, ok := tx.(pgx.Tx)
	if !ok {
		return r
	}
	return &SlotRepository{db: pgTx}
}
