package domain

import (
	"time"

	"github.com/google/uuid"
)

type IntentStatus string

const (
	IntentStatusCreated   IntentStatus = "created"
	IntentStatusSucceeded IntentStatus = "succeeded"
	IntentStatusFailed    IntentStatus = "failed"
	IntentStatusExpired   IntentStatus = "expired"
)

// PaymentIntent é o registro da cobrança em andamento no gateway,
// correlacionado ao hold pelo HoldID (um intent por hold, nunca dois).
// Só muda de status por callback do gateway ou por expiração explícita.
type PaymentIntent struct {
	ID          uuid.UUID
	HoldID      uuid.UUID
	ProviderRef string // id da charge no provedor, usado para correlacionar o webhook
	Amount      int64  // valor em centavos
	Currency    string
	PackageType string
	Status      IntentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Terminal diz se o intent já saiu do estado "created".
// Eventos que chegam depois disso são duplicatas ou casos de reconciliação.
func (p *PaymentIntent) Terminal() bool {
	return p.Status != IntentStatusCreated
}
