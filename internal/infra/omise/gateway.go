package omise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	omisego "github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

// Gateway implementa gateway.PaymentGateway e gateway.WebhookVerifier em
// cima do Omise. Para o core o provedor é caixa-preta: entra o valor com
// o hold_id na metadata, sai a referência da charge; o resto (3DS,
// antifraude, retry de banco emissor) acontece do lado de lá.
type Gateway struct {
	client *omisego.Client
}

func NewGateway(publicKey, secretKey string, timeout time.Duration) (*Gateway, error) {
	client, err := omisego.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create omise client: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	// O client do SDK embute http.Client; o timeout aqui é o que separa
	// ErrGatewayTimeout (retryable) de recusa de pagamento (terminal).
	client.Timeout = timeout

	return &Gateway{client: client}, nil
}

func (g *Gateway) CreateIntent(ctx context.Context, input gateway.CreateIntentInput) (string, error) {
	charge := &omisego.Charge{}
	op := &operations.CreateCharge{
		Amount:   input.Amount,
		Currency: input.Currency,
		Card:     input.CardToken,
		Metadata: map[string]interface{}{
			// É por aqui que o webhook volta para a reserva certa.
			"hold_id":      input.HoldID.String(),
			"package_type": input.PackageType,
		},
	}

	if err := g.client.Do(charge, op); err != nil {
		if isTimeout(err) {
			return "", domain.ErrGatewayTimeout
		}
		return "", fmt.Errorf("failed to create charge: %w", err)
	}

	return charge.ID, nil
}

// Verify busca o evento de volta no provedor em vez de confiar no body
// do webhook; payload forjado não passa daqui.
func (g *Gateway) Verify(ctx context.Context, eventRef string) (*gateway.WebhookEvent, error) {
	event := &omisego.Event{}
	if err := g.client.Do(event, &operations.RetrieveEvent{EventID: eventRef}); err != nil {
		if isTimeout(err) {
			return nil, domain.ErrGatewayTimeout
		}
		return nil, fmt.Errorf("failed to retrieve event %s: %w", eventRef, err)
	}

	if event.Key != "charge.complete" {
		return nil, nil // evento de outro tipo, não interessa ao core
	}

	// event.Data vem como interface{}; marshal/unmarshal para Charge.
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	var charge omisego.Charge
	if err := json.Unmarshal(raw, &charge); err != nil {
		return nil, fmt.Errorf("failed to unmarshal charge: %w", err)
	}

	return &gateway.WebhookEvent{
		EventRef:    eventRef,
		ProviderRef: charge.ID,
		Succeeded:   string(charge.Status) == "successful",
	}, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
