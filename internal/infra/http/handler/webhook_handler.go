package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
	"github.com/mdtalam/Fitness-sub001/internal/usecase"
)

// WebhookHandler recebe os callbacks assíncronos do provedor de pagamento.
// O payload bruto nunca é confiável: só o id do evento é lido, e o evento
// é re-buscado no provedor antes de qualquer transição de estado.
type WebhookHandler struct {
	verifier            gateway.WebhookVerifier
	processPaymentEvent *usecase.ProcessPaymentEventUseCase
}

func NewWebhookHandler(
	verifier gateway.WebhookVerifier,
	processPaymentEvent *usecase.ProcessPaymentEventUseCase,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:            verifier,
		processPaymentEvent: processPaymentEvent,
	}
}

type webhookRequest struct {
	ID string `json:"id"`
}

// HandlePayment é deliberadamente generoso com 200: o provedor reenvia
// tudo que não for 2xx, então só erro transitório nosso vira 5xx.
func (h *WebhookHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		respondError(w, http.StatusBadRequest, "Payload inválido")
		return
	}

	event, err := h.verifier.Verify(r.Context(), req.ID)
	if err != nil {
		log.Error().Err(err).Str("event_ref", req.ID).Msg("Falha ao verificar webhook no provedor")
		respondError(w, http.StatusBadGateway, "Não foi possível verificar o evento")
		return
	}
	if event == nil {
		// Tipo de evento que não interessa ao fluxo de reserva. Ack e segue.
		respondJSON(w, http.StatusOK, map[string]any{"outcome": "ignored"})
		return
	}

	status := domain.IntentStatusFailed
	if event.Succeeded {
		status = domain.IntentStatusSucceeded
	}

	out, err := h.processPaymentEvent.Execute(r.Context(), usecase.PaymentEventInput{
		ProviderRef: event.ProviderRef,
		Status:      status,
		EventRef:    event.EventRef,
	})
	if err != nil {
		log.Error().Err(err).Str("provider_ref", event.ProviderRef).Msg("Erro ao processar evento de pagamento")
		respondError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}

	resp := map[string]any{"outcome": out.Outcome}
	if out.BookingID != uuid.Nil {
		resp["booking_id"] = out.BookingID
	}
	respondJSON(w, http.StatusOK, resp)
}
