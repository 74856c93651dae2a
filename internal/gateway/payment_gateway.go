package gateway

import (
	"context"

	"github.com/google/uuid"
)

// CreateIntentInput leva tudo que o provedor precisa para abrir a cobrança.
// O hold_id vai na metadata da charge e volta no webhook; é assim que o
// callback assíncrono se correlaciona de volta à reserva pendente.
type CreateIntentInput struct {
	HoldID      uuid.UUID
	Amount      int64
	Currency    string
	PackageType string
	CardToken   string
}

// PaymentGateway é o provedor de pagamento tratado como caixa-preta.
// Tokenização de cartão e antifraude são problema dele, não nosso.
type PaymentGateway interface {
	// CreateIntent abre a cobrança e retorna a referência do provedor.
	// Timeout de rede vira domain.ErrGatewayTimeout (o cliente pode tentar
	// de novo, o hold continua valendo até o TTL).
	CreateIntent(ctx context.Context, input CreateIntentInput) (providerRef string, err error)
}

// WebhookEvent é o callback do provedor já verificado e normalizado:
// só a referência da cobrança e o status terminal interessam ao core.
type WebhookEvent struct {
	EventRef    string
	ProviderRef string
	Succeeded   bool
}

// WebhookVerifier confirma a autenticidade do callback junto ao provedor
// antes de qualquer transição de estado (o payload bruto não é confiável).
type WebhookVerifier interface {
	Verify(ctx context.Context, eventRef string) (*WebhookEvent, error)
}
