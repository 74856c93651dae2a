package gateway

import (
	"context"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
)

type BookingRepository interface {
	// Create grava o booking no mesmo commit que consome o hold.
	Create(ctx context.Context, booking *domain.Booking) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)

	// AppendStatusEvent registra cancelamento pós-confirmação sem
	// tocar na linha original (append-only).
	AppendStatusEvent(ctx context.Context, event *domain.BookingStatusEvent) error

	WithTx(tx TransactionObject) BookingRepository
}
