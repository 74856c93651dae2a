package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

// Resultados possíveis do processamento de um callback do gateway.
const (
	OutcomeConfirmed      = "confirmed"
	OutcomeReleased       = "released"
	OutcomeDuplicate      = "duplicate"
	OutcomeReconciliation = "reconciliation"
)

// errHoldLost sinaliza, dentro da transação, que o hold sumiu debaixo de
// um pagamento aprovado. Força rollback e vira caso de reconciliação.
var errHoldLost = errors.New("hold consumed by a concurrent transition")

type PaymentEventInput struct {
	ProviderRef string
	Status      domain.IntentStatus // succeeded ou failed, direto do provedor
	EventRef    string              // id do evento no provedor, só para log
}

type PaymentEventOutput struct {
	Outcome   string
	BookingID uuid.UUID
}

// ProcessPaymentEventUseCase é o único ponto de entrada dos sinais
// assíncronos do gateway. O canal é at-least-once e fora de ordem, então
// tudo aqui é guiado por "olha o status atual antes de transicionar":
// replay de evento terminal é absorvido como duplicata, e um "succeeded"
// atrasado depois de failed/expired NUNCA ressuscita o hold: vira caso
// de reconciliação para o fluxo de estorno (fora deste core).
type ProcessPaymentEventUseCase struct {
	slotRepository     gateway.SlotRepository
	holdRepository     gateway.HoldRepository
	intentRepository   gateway.PaymentIntentRepository
	bookingRepository  gateway.BookingRepository
	transactionManager gateway.TransactionManager
	eventPublisher     gateway.EventPublisher
}

func NewProcessPaymentEvent(
	slotRepo gateway.SlotRepository,
	holdRepo gateway.HoldRepository,
	intentRepo gateway.PaymentIntentRepository,
	bookingRepo gateway.BookingRepository,
	txManager gateway.TransactionManager,
	publisher gateway.EventPublisher,
) *ProcessPaymentEventUseCase {
	return &ProcessPaymentEventUseCase{
		slotRepository:     slotRepo,
		holdRepository:     holdRepo,
		intentRepository:   intentRepo,
		bookingRepository:  bookingRepo,
		transactionManager: txManager,
		eventPublisher:     publisher,
	}
}

func (u *ProcessPaymentEventUseCase) Execute(ctx context.Context, input PaymentEventInput) (*PaymentEventOutput, error) {
	if input.Status != domain.IntentStatusSucceeded && input.Status != domain.IntentStatusFailed {
		return nil, fmt.Errorf("status de gateway não suportado: %s", input.Status)
	}

	intent, err := u.intentRepository.GetByProviderRef(ctx, input.ProviderRef)
	if err != nil {
		if errors.Is(err, domain.ErrIntentNotFound) {
			if input.Status == domain.IntentStatusSucceeded {
				// Pagamento aprovado sem intent conhecido: incidente de
				// reconciliação, alguém vai precisar estornar na mão.
				u.escalateReconciliation(ctx, input, uuid.Nil)
				return &PaymentEventOutput{Outcome: OutcomeReconciliation}, nil
			}
			log.Warn().
				Str("provider_ref", input.ProviderRef).
				Str("event_ref", input.EventRef).
				Msg("Callback 'failed' sem intent correspondente, ignorando")
			return &PaymentEventOutput{Outcome: OutcomeDuplicate}, nil
		}
		return nil, fmt.Errorf("falha ao correlacionar provider_ref %s: %w", input.ProviderRef, err)
	}

	if intent.Terminal() {
		if input.Status == domain.IntentStatusSucceeded && intent.Status != domain.IntentStatusSucceeded {
			// "failed" (ou expiração) chegou primeiro e venceu; o
			// "succeeded" atrasado não confirma nada em silêncio.
			u.escalateReconciliation(ctx, input, intent.HoldID)
			return &PaymentEventOutput{Outcome: OutcomeReconciliation}, nil
		}
		// Replay normal de entrega at-least-once. Absorve e conta.
		log.Info().
			Str("provider_ref", input.ProviderRef).
			Str("event_ref", input.EventRef).
			Str("intent_status", string(intent.Status)).
			Str("telemetry", "duplicate_event").
			Msg("Evento de gateway duplicado absorvido")
		return &PaymentEventOutput{Outcome: OutcomeDuplicate}, nil
	}

	if input.Status == domain.IntentStatusSucceeded {
		return u.confirm(ctx, input, intent)
	}
	return u.release(ctx, input, intent)
}

// confirm é o ÚNICO caminho que cria um Booking: HELD -> CONFIRMED.
// Consumo do hold, escrita do booking e transição do intent dividem o
// mesmo commit: ou acontece tudo, ou nada.
func (u *ProcessPaymentEventUseCase) confirm(ctx context.Context, input PaymentEventInput, intent *domain.PaymentIntent) (*PaymentEventOutput, error) {
	var (
		booking   *domain.Booking
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
		bookingRepoTx := u.bookingRepository.WithTx(transactionObject)

		hold, err := holdRepoTx.GetByID(contextWithTx, intent.HoldID)
		if err != nil {
			return err
		}

		slot, err = slotRepoTx.GetByIDForUpdate(contextWithTx, hold.SlotID)
		if err != nil {
			return fmt.Errorf("falha ao travar slot %s: %w", hold.SlotID, err)
		}

		ok, err := intentRepoTx.MarkStatus(contextWithTx, intent.ID, domain.IntentStatusCreated, domain.IntentStatusSucceeded)
		if err != nil {
			return fmt.Errorf("falha ao transicionar intent %s: %w", intent.ID, err)
		}
		if !ok {
			// A varredura de expiração (ou um failed) comitou entre a
			// nossa leitura e este UPDATE. Perdemos a corrida.
			return errHoldLost
		}

		consumed, err := holdRepoTx.Consume(contextWithTx, hold.ID, domain.HoldStatusConfirmed)
		if err != nil {
			return fmt.Errorf("falha ao consumir hold %s: %w", hold.ID, err)
		}
		if !consumed {
			return errHoldLost
		}

		booking = &domain.Booking{
			ID:          uuid.New(),
			SlotID:      slot.ID,
			HoldID:      hold.ID,
			MemberID:    hold.MemberID,
			TrainerID:   slot.TrainerID,
			PackageType: intent.PackageType,
			AmountPaid:  intent.Amount,
			PaymentRef:  intent.ProviderRef,
			Status:      domain.BookingStatusConfirmed,
			ConfirmedAt: time.Now().UTC(),
		}
		if err := bookingRepoTx.Create(contextWithTx, booking); err != nil {
			return fmt.Errorf("falha ao gravar booking: %w", err)
		}

		occupied, err := slotRepoTx.CountOccupied(contextWithTx, slot.ID)
		if err != nil {
			return fmt.Errorf("falha ao contar ocupação do slot %s: %w", slot.ID, err)
		}
		remaining = slot.Remaining(occupied)
		return nil
	})
	if err != nil {
		if errors.Is(err, errHoldLost) {
			// Dinheiro entrou, reserva já tinha morrido. Estorno manual.
			u.escalateReconciliation(ctx, input, intent.HoldID)
			return &PaymentEventOutput{Outcome: OutcomeReconciliation}, nil
		}
		return nil, err
	}

	publishBookingEvent(ctx, u.eventPublisher, "booking.confirmed", booking, slot, remaining, "")

	return &PaymentEventOutput{Outcome: OutcomeConfirmed, BookingID: booking.ID}, nil
}

// release trata o "failed" do gateway: HELD -> RELEASED, slot volta
// para a vitrine, ninguém foi cobrado.
func (u *ProcessPaymentEventUseCase) release(ctx context.Context, input PaymentEventInput, intent *domain.PaymentIntent) (*PaymentEventOutput, error) {
	var (
		slot      *domain.Slot
		remaining int32
		released  bool
	)

	err := u.transactionManager.Run(ctx, func(contextWithTx context.Context) error {
		transactionObject := contextWithTx.Value(gateway.TransactionKey)
		if transactionObject == nil {
			return fmt.Errorf("erro crítico: transação não encontrada no contexto")
		}

		slotRepoTx := u.slotRepository.WithTx(transactionObject)
		holdRepoTx := u.holdRepository.WithTx(transactionObject)
		intentRepoTx := u.intentRepository.WithTx(transactionObject)

		hold, err := holdRepoTx.GetByID(contextWithTx, intent.HoldID)
		if err != nil {
			return err
		}

		slot, err = slotRepoTx.GetByIDForUpdate(contextWithTx, hold.SlotID)
		if err != nil {
			return fmt.Errorf("falha ao travar slot %s: %w", hold.SlotID, err)
		}

		ok, err := intentRepoTx.MarkStatus(contextWithTx, intent.ID, domain.IntentStatusCreated, domain.IntentStatusFailed)
		if err != nil {
			return fmt.Errorf("falha ao transicionar intent %s: %w", intent.ID, err)
		}
		if !ok {
			// Outro terminal chegou primeiro; replay vira no-op.
			return nil
		}

		released, err = holdRepoTx.Consume(contextWithTx, hold.ID, domain.HoldStatusReleased)
		if err != nil {
			return fmt.Errorf("falha ao liberar hold %s: %w", hold.ID, err)
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

	if !released {
		return &PaymentEventOutput{Outcome: OutcomeDuplicate}, nil
	}

	publishSlotEvent(ctx, u.eventPublisher, "slot.released", slot, remaining, "payment_failed")

	return &PaymentEventOutput{Outcome: OutcomeReleased}, nil
}

// escalateReconciliation registra o incidente e avisa o fluxo de estorno.
func (u *ProcessPaymentEventUseCase) escalateReconciliation(ctx context.Context, input PaymentEventInput, holdID uuid.UUID) {
	log.Error().
		Str("provider_ref", input.ProviderRef).
		Str("event_ref", input.EventRef).
		Str("hold_id", holdID.String()).
		Str("telemetry", "reconciliation_incident").
		Msg("Pagamento aprovado sem reserva viva, estorno necessário")

	if u.eventPublisher == nil {
		return
	}
	event := map[string]interface{}{
		"provider_ref": input.ProviderRef,
		"event_ref":    input.EventRef,
		"hold_id":      holdID.String(),
		"occurred_at":  time.Now().UTC().Format(time.RFC3339),
	}
	if err := u.eventPublisher.Publish(ctx, ReservationExchange, "reservation.reconcile", event); err != nil {
		log.Error().Err(err).Msg("Falha ao publicar caso de reconciliação")
	}
}
