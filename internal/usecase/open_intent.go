package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

type OpenIntentInput struct {
	HoldID      uuid.UUID
	Amount      int64
	Currency    string
	PackageType string
	CardToken   string
}

type OpenIntentOutput struct {
	IntentID    uuid.UUID
	ProviderRef string
	Amount      int64
	Status      domain.IntentStatus
}

// OpenIntentUseCase abre a cobrança no gateway para um hold ativo.
// Idempotente pela chave do hold: retry do cliente em rede instável
// devolve o intent existente em vez de cobrar duas vezes.
type OpenIntentUseCase struct {
	holdRepository   gateway.HoldRepository
	intentRepository gateway.PaymentIntentRepository
	paymentGateway   gateway.PaymentGateway
}

func NewOpenIntent(
	holdRepo gateway.HoldRepository,
	intentRepo gateway.PaymentIntentRepository,
	paymentGw gateway.PaymentGateway,
) *OpenIntentUseCase {
	return &OpenIntentUseCase{
		holdRepository:   holdRepo,
		intentRepository: intentRepo,
		paymentGateway:   paymentGw,
	}
}

func (u *OpenIntentUseCase) Execute(ctx context.Context, input OpenIntentInput) (*OpenIntentOutput, error) {
	hold, err := u.holdRepository.GetByID(ctx, input.HoldID)
	if err != nil {
		return nil, err
	}
	if hold.Terminal() {
		// Hold já resolvido (expirou, foi cancelado ou confirmado);
		// não faz sentido abrir cobrança nova.
		return nil, domain.ErrHoldNotFound
	}

	// Checagem barata antes de ir ao gateway.
	if existing, err := u.intentRepository.GetByHoldID(ctx, hold.ID); err == nil {
		return toOpenIntentOutput(existing), nil
	} else if !errors.Is(err, domain.ErrIntentNotFound) {
		return nil, fmt.Errorf("falha ao buscar intent do hold %s: %w", hold.ID, err)
	}

	providerRef, err := u.paymentGateway.CreateIntent(ctx, gateway.CreateIntentInput{
		HoldID:      hold.ID,
		Amount:      input.Amount,
		Currency:    input.Currency,
		PackageType: input.PackageType,
		CardToken:   input.CardToken,
	})
	if err != nil {
		// ErrGatewayTimeout sobe como retryable: o hold continua valendo
		// até o TTL, o cliente pode repetir a chamada.
		return nil, err
	}

	intent := &domain.PaymentIntent{
		ID:          uuid.New(),
		HoldID:      hold.ID,
		ProviderRef: providerRef,
		Amount:      input.Amount,
		Currency:    input.Currency,
		PackageType: input.PackageType,
		Status:      domain.IntentStatusCreated,
	}

	if err := u.intentRepository.Create(ctx, intent); err != nil {
		// Corrida entre dois retries: o índice único em hold_id deixou só
		// um passar. O perdedor devolve o intent do vencedor.
		if errors.Is(err, domain.ErrIntentExists) {
			existing, getErr := u.intentRepository.GetByHoldID(ctx, hold.ID)
			if getErr != nil {
				return nil, getErr
			}
			return toOpenIntentOutput(existing), nil
		}
		return nil, fmt.Errorf("falha ao gravar intent: %w", err)
	}

	return toOpenIntentOutput(intent), nil
}

func toOpenIntentOutput(intent *domain.PaymentIntent) *OpenIntentOutput {
	return &OpenIntentOutput{
		IntentID:    intent.ID,
		ProviderRef: intent.ProviderRef,
		Amount:      intent.Amount,
		Status:      intent.Status,
	}
}
