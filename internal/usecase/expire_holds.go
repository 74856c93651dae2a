package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

// ExpireHoldsUseCase é a varredura de TTL: todo hold que passou do prazo
// sem evento terminal do gateway vira EXPIRED e devolve a capacidade.
// Funcionalmente igual ao RELEASED, mas distinguido na telemetria para
// diagnosticar fluxo de pagamento travado.
type ExpireHoldsUseCase struct {
	slotRepository     gateway.SlotRepository
	holdRepository     gateway.HoldRepository
	intentRepository   gateway.PaymentIntentRepository
	transactionManager gateway.TransactionManager
	eventPublisher     gateway.EventPublisher
	batchSize          int32
}

func NewExpireHolds(
	slotRepo gateway.SlotRepository,
	holdRepo gateway.HoldRepository,
	intentRepo gateway.PaymentIntentRepository,
	txManager gateway.TransactionManager,
	publisher gateway.EventPublisher,
) *ExpireHoldsUseCase {
	return &ExpireHoldsUseCase{
		slotRepository:     slotRepo,
		holdRepository:     holdRepo,
		intentRepository:   intentRepo,
		transactionManager: txManager,
		eventPublisher:     publisher,
		batchSize:          100,
	}
}

// Execute roda um passo da varredura. Retorna quantos holds expiraram.
func (u *ExpireHoldsUseCase) Execute(ctx context.Context, now time.Time) (int, error) {
	candidates, err := u.holdRepository.ListExpired(ctx, now, u.batchSize)
	if err != nil {
		return 0, fmt.Errorf("falha ao listar holds vencidos: %w", err)
	}

	expired := 0
	for i := range candidates {
		hold := candidates[i]

		var (
			slot      *domain.Slot
			remaining int32
			consumed  bool
		)

		// Uma transação por hold: um conflito não segura o lote inteiro.
		err := u.transactionManager.Run(ctx, func(contextWithTx context.Context) error {
			transactionObject := contextWithTx.Value(gateway.TransactionKey)
			if transactionObject == nil {
				return fmt.Errorf("erro crítico: transação não encontrada no contexto")
			}

			slotRepoTx := u.slotRepository.WithTx(transactionObject)
			holdRepoTx := u.holdRepository.WithTx(transactionObject)
			intentRepoTx := u.intentRepository.WithTx(transactionObject)

			var err error
			slot, err = slotRepoTx.GetByIDForUpdate(contextWithTx, hold.SlotID)
			if err != nil {
				return fmt.Errorf("falha ao travar slot %s: %w", hold.SlotID, err)
			}

			consumed, err = holdRepoTx.Consume(contextWithTx, hold.ID, domain.HoldStatusExpired)
			if err != nil {
				return fmt.Errorf("falha ao expirar hold %s: %w", hold.ID, err)
			}
			if !consumed {
				// Confirmou ou cancelou entre o SELECT e agora. Tudo bem.
				return nil
			}

			// O intent morre junto, no mesmo commit. É isso que faz um
			// "succeeded" atrasado cair no caminho de reconciliação em
			// vez de confirmar um hold morto.
			intent, err := intentRepoTx.GetByHoldID(contextWithTx, hold.ID)
			if err != nil && !errors.Is(err, domain.ErrIntentNotFound) {
				return fmt.Errorf("falha ao buscar intent do hold %s: %w", hold.ID, err)
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
			// Loga e segue para o próximo; o hold problemático volta na
			// próxima rodada da varredura.
			log.Error().Err(err).Str("hold_id", hold.ID.String()).Msg("Falha ao expirar hold")
			continue
		}

		if consumed {
			expired++
			log.Info().
				Str("hold_id", hold.ID.String()).
				Str("slot_id", hold.SlotID.String()).
				Str("telemetry", "hold_expired").
				Msg("Hold expirado pela varredura de TTL")
			publishSlotEvent(ctx, u.eventPublisher, "slot.expired", slot, remaining, "ttl_expired")
		}
	}

	return expired, nil
}
