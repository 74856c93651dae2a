package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
)

type HoldRepository interface {
	Create(ctx context.Context, hold *domain.ReservationHold) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ReservationHold, error)

	// Consume é a transição terminal do hold: active -> to.
	// Retorna false quando o hold já era terminal (corrida entre
	// confirm/release/expire); o chamador trata como no-op.
	Consume(ctx context.Context, id uuid.UUID, to domain.HoldStatus) (bool, error)

	// ListExpired devolve holds ativos cujo TTL já passou, para a varredura.
	ListExpired(ctx context.Context, now time.Time, limit int32) ([]domain.ReservationHold, error)

	WithTx(tx TransactionObject) HoldRepository
}
