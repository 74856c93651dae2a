package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

type CancelBookingInput struct {
	BookingID uuid.UUID
	Reason    string
}

// CancelBookingUseCase trata cancelamento DEPOIS da confirmação.
// O booking nunca é apagado: vira status cancelled + um evento append-only,
// preservando a propriedade de auditoria do ledger. O estorno em si é
// workflow separado que só lê o ledger.
type CancelBookingUseCase struct {
	bookingRepository  gateway.BookingRepository
	transactionManager gateway.TransactionManager
	eventPublisher     gateway.EventPublisher
}

func NewCancelBooking(
	bookingRepo gateway.BookingRepository,
	txManager gateway.TransactionManager,
	publisher gateway.EventPublisher,
) *CancelBookingUseCase {
	return &CancelBookingUseCase{
		bookingRepository:  bookingRepo,
		transactionManager: txManager,
		eventPublisher:     publisher,
	}
}

func (u *CancelBookingUseCase) Execute(ctx context.Context, input CancelBookingInput) error {
	var booking *domain.Booking
	cancelled := false

	err := u.transactionManager.Run(ctx, func(contextWithTx context.Context) error {
		transactionObject := contextWithTx.Value(gateway.TransactionKey)
		if transactionObject == nil {
			return fmt.Errorf("erro crítico: transação não encontrada no contexto")
		}

		bookingRepoTx := u.bookingRepository.WithTx(transactionObject)

		var err error
		booking, err = bookingRepoTx.GetByID(contextWithTx, input.BookingID)
		if err != nil {
			return err
		}
		if booking.Status == domain.BookingStatusCancelled {
			// Já cancelado: idempotente, sem evento novo.
			return nil
		}

		event := &domain.BookingStatusEvent{
			ID:        uuid.New(),
			BookingID: booking.ID,
			Status:    domain.BookingStatusCancelled,
			Reason:    input.Reason,
			CreatedAt: time.Now().UTC(),
		}
		if err := bookingRepoTx.AppendStatusEvent(contextWithTx, event); err != nil {
			return fmt.Errorf("falha ao registrar cancelamento: %w", err)
		}

		cancelled = true
		return nil
	})
	if err != nil {
		return err
	}

	if cancelled {
		booking.Status = domain.BookingStatusCancelled
		publishBookingEvent(ctx, u.eventPublisher, "booking.cancelled", booking, nil, 0, input.Reason)
	}

	return nil
}
