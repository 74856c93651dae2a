package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

type PlaceHoldInput struct {
	SlotID   uuid.UUID
	MemberID uuid.UUID
}

type PlaceHoldOutput struct {
	HoldID    uuid.UUID
	SlotID    uuid.UUID
	ExpiresAt time.Time
	Remaining int32
}

// PlaceHoldUseCase é a transição REQUESTED -> HELD.
// Este usecase carrega o invariante central do sistema inteiro: dois
// membros nunca podem observar capacidade livre e inserir hold ao mesmo
// tempo. A garantia vem do SELECT ... FOR UPDATE na linha do slot: a
// contagem e o insert acontecem atrás do mesmo lock, dentro do mesmo commit.
type PlaceHoldUseCase struct {
	slotRepository     gateway.SlotRepository
	holdRepository     gateway.HoldRepository
	transactionManager gateway.TransactionManager
	eventPublisher     gateway.EventPublisher
	holdTTL            time.Duration
}

func NewPlaceHold(
	slotRepo gateway.SlotRepository,
	holdRepo gateway.HoldRepository,
	txManager gateway.TransactionManager,
	publisher gateway.EventPublisher,
	holdTTL time.Duration,
) *PlaceHoldUseCase {
	if holdTTL <= 0 {
		// 15 minutos: tempo de sobra para autorizar um cartão, curto o
		// bastante para liberar slot abandonado.
		holdTTL = 15 * time.Minute
	}
	return &PlaceHoldUseCase{
		slotRepository:     slotRepo,
		holdRepository:     holdRepo,
		transactionManager: txManager,
		eventPublisher:     publisher,
		holdTTL:            holdTTL,
	}
}

func (u *PlaceHoldUseCase) Execute(ctx context.Context, input PlaceHoldInput) (*PlaceHoldOutput, error) {
	var (
		hold      *domain.ReservationHold
		slot      *domain.Slot
		remaining int32
	)

	err := u.transactionManager.Run(ctx, func(contextWithTx context.Context) error {
		transactionObject := contextWithTx.Value(gateway.TransactionKey)
		if transactionObject == nil {
			return fmt.Errorf("erro crítico: transação não encontrada no contexto")
		}

		slotRepoTx := u.slotRepository.WithTx(transactionObject)
		holdRepoTx := u.holdRepository.WithTx(transactionObject)

		// Lock pessimista na linha do slot. Quem chegar depois espera aqui
		// e vai contar a capacidade já com o nosso hold dentro.
		var err error
		slot, err = slotRepoTx.GetByIDForUpdate(contextWithTx, input.SlotID)
		if err != nil {
			return fmt.Errorf("falha ao travar slot %s: %w", input.SlotID, err)
		}

		occupied, err := slotRepoTx.CountOccupied(contextWithTx, slot.ID)
		if err != nil {
			return fmt.Errorf("falha ao contar ocupação do slot %s: %w", slot.ID, err)
		}

		if !slot.HasCapacityFor(occupied) {
			// Capacidade negada: a tentativa morre aqui, sem hold e sem
			// intent. O cliente fica livre para tentar outro slot.
			return domain.ErrSlotFull
		}

		hold = &domain.ReservationHold{
			ID:        uuid.New(),
			SlotID:    slot.ID,
			MemberID:  input.MemberID,
			Status:    domain.HoldStatusActive,
			ExpiresAt: time.Now().UTC().Add(u.holdTTL),
		}

		if err := holdRepoTx.Create(contextWithTx, hold); err != nil {
			return fmt.Errorf("falha ao inserir hold: %w", err)
		}

		remaining = slot.Remaining(occupied + 1)
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishSlotEvent(ctx, u.eventPublisher, "slot.held", slot, remaining, "")

	return &PlaceHoldOutput{
		HoldID:    hold.ID,
		SlotID:    slot.ID,
		ExpiresAt: hold.ExpiresAt,
		Remaining: remaining,
	}, nil
}
