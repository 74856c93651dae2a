package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

// DeleteSlotUseCase remove um slot publicado por engano.
// Só passa quando não existe hold ativo nem booking confirmado; o lock
// na linha do slot garante que ninguém coloca hold no meio da checagem.
type DeleteSlotUseCase struct {
	slotRepository     gateway.SlotRepository
	transactionManager gateway.TransactionManager
	eventPublisher     gateway.EventPublisher
}

func NewDeleteSlot(
	slotRepo gateway.SlotRepository,
	txManager gateway.TransactionManager,
	publisher gateway.EventPublisher,
) *DeleteSlotUseCase {
	return &DeleteSlotUseCase{
		slotRepository:     slotRepo,
		transactionManager: txManager,
		eventPublisher:     publisher,
	}
}

func (u *DeleteSlotUseCase) Execute(ctx context.Context, slotID uuid.UUID) error {
	var deleted *domain.Slot

	err := u.transactionManager.Run(ctx, func(contextWithTx context.Context) error {
		transactionObject := contextWithTx.Value(gateway.TransactionKey)
		if transactionObject == nil {
			return fmt.Errorf("erro crítico: transação não encontrada no contexto")
		}

		slotRepoTx := u.slotRepository.WithTx(transactionObject)

		slot, err := slotRepoTx.GetByIDForUpdate(contextWithTx, slotID)
		if err != nil {
			return err
		}

		occupied, err := slotRepoTx.CountOccupied(contextWithTx, slot.ID)
		if err != nil {
			return fmt.Errorf("falha ao contar ocupação do slot %s: %w", slot.ID, err)
		}
		if occupied > 0 {
			return domain.ErrSlotOccupied
		}

		if err := slotRepoTx.Delete(contextWithTx, slot.ID); err != nil {
			return err
		}
		deleted = slot
		return nil
	})
	if err != nil {
		return err
	}

	// remaining zero tira o slot da projeção de disponibilidade.
	publishSlotEvent(ctx, u.eventPublisher, "slot.deleted", deleted, 0, "trainer_deleted")
	return nil
}
