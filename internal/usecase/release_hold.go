package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

type ReleaseHoldOutput struct {
	Released  bool // false = hold já era terminal, no-op
	Remaining int32
}

// ReleaseHoldUseCase é o cancelamento explícito antes da confirmação
// (HELD -> RELEASED). Idempotente por contrato: soltar um hold que já
// foi resolvido nunca é erro, porque expiração e cancelamento correm
// em paralelo o tempo todo.
type ReleaseHoldUseCase struct {
	slotRepository     gateway.SlotRepository
	holdRepository     gateway.HoldRepository
	intentRepository   gateway.PaymentIntentRepository
	transactionManager gateway.TransactionManager
	eventPublisher     gateway.EventPublisher
}

func NewReleaseHold(
	slotRepo gateway.SlotRepository,
	holdRepo gateway.HoldRepository,
	intentRepo gateway.PaymentIntentRepository,
	txManager gateway.TransactionManager,
	publisher gateway.EventPublisher,
) *ReleaseHoldUseCase {
	return &ReleaseHoldUseCase{
		slotRepository:     slotRepo,
		holdRepository:     holdRepo,
		intentRepository:   intentRepo,
		transactionManager: txManager,
		eventPublisher:     publisher,
	}
}

func (u *ReleaseHoldUseCase) Execute(ctx context.Context, holdID uuid.UUID) (*ReleaseHoldOutput, error) {
	var (
		released  bool
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
		intentRepoTx := u.intentRepository.WithTx(transactionObject)

		hold, err := holdRepoTx.GetByID(contextWithTx, holdID)
		if err != nil {
			return err
		}

		// Mesma ordem de lock do placeHold (slot primeiro) para não
		// deadlockar com a varredura de expiração.
		slot, err = slotRepoTx.GetByIDForUpdate(contextWithTx, hold.SlotID)
		if err != nil {
			return fmt.Errorf("falha ao travar slot %s: %w", hold.SlotID, err)
		}

		released, err = holdRepoTx.Consume(contextWithTx, holdID, domain.HoldStatusReleased)
		if err != nil {
			return fmt.Errorf("falha ao liberar hold %s: %w", holdID, err)
		}
		if !released {
			// Já confirmado, expirado ou liberado antes. No-op.
			return nil
		}

		// Cancelamento explícito encerra o intent aberto como expirado;
		// um "succeeded" atrasado do gateway vira caso de reconciliação.
		intent, err := intentRepoTx.GetByHoldID(contextWithTx, holdID)
		if err != nil && !errors.Is(err, domain.ErrIntentNotFound) {
			return fmt.Errorf("falha ao buscar intent do hold %s: %w", holdID, err)
		}
		if intent != nil {
			if _, err := intentRepoTx.MarkStatus(contextWithTx, intent.ID, domain.IntentStatusCreated, domain.IntentStatusExpired); err != nil {
				return fmt.Errorf("falha ao expirar intent %s: %w", intent.ID, err)
			}
		}

		occupied, err := slotRepoTx.CountOccupied(contextWithTx, slot.ID)
		if err != nil {
			return fmt.Errorf("falha ao contar ocupação do slot %s: %w", slot.ID, err)
		}
		remaining = slot.Remaining(occupied)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if released {
		publishSlotEvent(ctx, u.eventPublisher, "slot.released", slot, remaining, "member_cancelled")
	}

	return &ReleaseHoldOutput{Released: released, Remaining: remaining}, nil
}
