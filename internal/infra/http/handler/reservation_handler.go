package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/usecase"
)

// ReservationHandler expõe o fluxo hold -> intent -> confirmação via HTTP
type ReservationHandler struct {
	placeHold      *usecase.PlaceHoldUseCase
	openIntent     *usecase.OpenIntentUseCase
	releaseHold    *usecase.ReleaseHoldUseCase
	getReservation *usecase.GetReservationUseCase
	currency       string // moeda única por deploy (multi-moeda fora de escopo)
}

func NewReservationHandler(
	placeHold *usecase.PlaceHoldUseCase,
	openIntent *usecase.OpenIntentUseCase,
	releaseHold *usecase.ReleaseHoldUseCase,
	getReservation *usecase.GetReservationUseCase,
	currency string,
) *ReservationHandler {
	return &ReservationHandler{
		placeHold:      placeHold,
		openIntent:     openIntent,
		releaseHold:    releaseHold,
		getReservation: getReservation,
		currency:       currency,
	}
}

// DTOs (Data Transfer Objects) para request/response
type CreateReservationRequest struct {
	SlotID      uuid.UUID `json:"slot_id"`
	MemberID    uuid.UUID `json:"member_id"`
	Amount      int64     `json:"amount"` // valor em centavos
	PackageType string    `json:"package_type"`
	CardToken   string    `json:"card_token"`
}

type CreateReservationResponse struct {
	HoldID      uuid.UUID `json:"hold_id"`
	SlotID      uuid.UUID `json:"slot_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remaining   int32     `json:"remaining"`
	IntentID    uuid.UUID `json:"intent_id,omitempty"`
	ProviderRef string    `json:"provider_ref,omitempty"`
}

// Create é o caminho feliz do membro: segura a vaga e abre a cobrança.
// Rota protegida pelo middleware de Idempotency-Key.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Payload inválido")
		return
	}
	if req.SlotID == uuid.Nil || req.MemberID == uuid.Nil || req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "slot_id, member_id e amount são obrigatórios")
		return
	}

	held, err := h.placeHold.Execute(ctx, usecase.PlaceHoldInput{
		SlotID:   req.SlotID,
		MemberID: req.MemberID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSlotFull):
			// Retryable escolhendo outro slot; o cliente fica livre na hora.
			respondError(w, http.StatusConflict, "Slot lotado")
		case errors.Is(err, domain.ErrSlotNotFound):
			respondError(w, http.StatusNotFound, "Slot não encontrado")
		default:
			log.Error().Err(err).Msg("Erro interno ao segurar slot")
			respondError(w, http.StatusInternalServerError, "Erro interno do servidor")
		}
		return
	}

	resp := CreateReservationResponse{
		HoldID:    held.HoldID,
		SlotID:    held.SlotID,
		ExpiresAt: held.ExpiresAt,
		Remaining: held.Remaining,
	}

	intent, err := h.openIntent.Execute(ctx, usecase.OpenIntentInput{
		HoldID:      held.HoldID,
		Amount:      req.Amount,
		Currency:    h.currency,
		PackageType: req.PackageType,
		CardToken:   req.CardToken,
	})
	if err != nil {
		if errors.Is(err, domain.ErrGatewayTimeout) {
			// O hold ficou de pé: o cliente repete a abertura da cobrança
			// em POST /reservations/{holdID}/intent dentro do TTL.
			log.Warn().Str("hold_id", held.HoldID.String()).Msg("Gateway de pagamento fora do ar")
			respondJSON(w, http.StatusGatewayTimeout, resp)
			return
		}
		log.Error().Err(err).Msg("Erro interno ao abrir cobrança")
		respondError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}

	resp.IntentID = intent.IntentID
	resp.ProviderRef = intent.ProviderRef
	respondJSON(w, http.StatusCreated, resp)
}

type OpenIntentRequest struct {
	Amount      int64  `json:"amount"`
	PackageType string `json:"package_type"`
	CardToken   string `json:"card_token"`
}

// RetryIntent reabre a cobrança de um hold vivo depois de um timeout de
// gateway. Idempotente pela chave do hold.
func (h *ReservationHandler) RetryIntent(w http.ResponseWriter, r *http.Request) {
	holdID, err := uuid.Parse(chi.URLParam(r, "holdID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "hold_id inválido")
		return
	}

	var req OpenIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Payload inválido")
		return
	}

	intent, err := h.openIntent.Execute(r.Context(), usecase.OpenIntentInput{
		HoldID:      holdID,
		Amount:      req.Amount,
		Currency:    h.currency,
		PackageType: req.PackageType,
		CardToken:   req.CardToken,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrHoldNotFound):
			respondError(w, http.StatusNotFound, "Reserva não encontrada ou já resolvida")
		case errors.Is(err, domain.ErrGatewayTimeout):
			respondError(w, http.StatusGatewayTimeout, "Gateway de pagamento indisponível, tente novamente")
		default:
			log.Error().Err(err).Msg("Erro interno ao reabrir cobrança")
			respondError(w, http.StatusInternalServerError, "Erro interno do servidor")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"intent_id":    intent.IntentID,
		"provider_ref": intent.ProviderRef,
		"status":       intent.Status,
	})
}

// Get é a superfície de polling enquanto o webhook não resolve.
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	holdID, err := uuid.Parse(chi.URLParam(r, "holdID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "hold_id inválido")
		return
	}

	view, err := h.getReservation.Execute(r.Context(), holdID)
	if err != nil {
		if errors.Is(err, domain.ErrHoldNotFound) {
			respondError(w, http.StatusNotFound, "Reserva não encontrada")
			return
		}
		log.Error().Err(err).Msg("Erro interno ao consultar reserva")
		respondError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// Cancel libera o hold antes da confirmação. Idempotente: cancelar o que
// já resolveu devolve 200 do mesmo jeito.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	holdID, err := uuid.Parse(chi.URLParam(r, "holdID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "hold_id inválido")
		return
	}

	out, err := h.releaseHold.Execute(r.Context(), holdID)
	if err != nil {
		if errors.Is(err, domain.ErrHoldNotFound) {
			respondError(w, http.StatusNotFound, "Reserva não encontrada")
			return
		}
		log.Error().Err(err).Msg("Erro interno ao cancelar reserva")
		respondError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"released":  out.Released,
		"remaining": out.Remaining,
	})
}

// Helpers para resposta JSON
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Falha ao codificar resposta JSON")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
