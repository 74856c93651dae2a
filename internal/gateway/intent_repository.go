package gateway

import (
	"context"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
)

type PaymentIntentRepository interface {
	// Create insere o intent; índice único em hold_id garante no máximo
	// um intent por hold mesmo com clientes repetindo a chamada.
	Create(ctx context.Context, intent *domain.PaymentIntent) error

	GetByHoldID(ctx context.Context, holdID uuid.UUID) (*domain.PaymentIntent, error)
	GetByProviderRef(ctx context.Context, providerRef string) (*domain.PaymentIntent, error)

	// MarkStatus faz a transição condicional from -> to.
	// Retorna false quando o status atual não é mais "from" (replay de
	// evento ou corrida com a varredura de expiração).
	MarkStatus(ctx context.Context, id uuid.UUID, from, to domain.IntentStatus) (bool, error)

	WithTx(tx TransactionObject) PaymentIntentRepository
}
