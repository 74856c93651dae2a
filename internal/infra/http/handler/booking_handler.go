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

type BookingHandler struct {
	cancelBooking *usecase.CancelBookingUseCase
	ledgerQuery   *usecase.LedgerQueryUseCase
}

func NewBookingHandler(
	cancelBooking *usecase.CancelBookingUseCase,
	ledgerQuery *usecase.LedgerQueryUseCase,
) *BookingHandler {
	return &BookingHandler{
		cancelBooking: cancelBooking,
		ledgerQuery:   ledgerQuery,
	}
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// Cancel é idempotente: cancelar um booking já cancelado responde 200
// sem gerar novo evento de status.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "booking_id inválido")
		return
	}

	var req CancelBookingRequest
	if r.Body != nil {
		// Corpo é opcional, só carrega o motivo.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	err = h.cancelBooking.Execute(r.Context(), usecase.CancelBookingInput{
		BookingID: bookingID,
		Reason:    req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBookingNotFound):
			respondError(w, http.StatusNotFound, "Booking não encontrado")
		default:
			log.Error().Err(err).Msg("Erro interno ao cancelar booking")
			respondError(w, http.StatusInternalServerError, "Erro interno do servidor")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"booking_id": bookingID,
		"status":     domain.BookingStatusCancelled,
	})
}

// ListLedger serve o dashboard de histórico direto do ledger append-only.
// Exige exatamente um filtro: member_id, trainer_id ou período from+to.
func (h *BookingHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	input := usecase.LedgerQueryInput{}
	if v := query.Get("member_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "member_id inválido")
			return
		}
		input.MemberID = id
	}
	if v := query.Get("trainer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "trainer_id inválido")
			return
		}
		input.TrainerID = id
	}
	if v := query.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "from inválido (use RFC3339)")
			return
		}
		input.From = t.UTC()
	}
	if v := query.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "to inválido (use RFC3339)")
			return
		}
		input.To = t.UTC()
	}

	entries, err := h.ledgerQuery.Execute(r.Context(), input)
	if err != nil {
		if errors.Is(err, usecase.ErrLedgerFilter) {
			respondError(w, http.StatusBadRequest, "Informe member_id, trainer_id ou período from/to")
			return
		}
		log.Error().Err(err).Msg("Erro interno ao consultar ledger")
		respondError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
