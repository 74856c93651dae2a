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

type SlotHandler struct {
	createSlot       *usecase.CreateSlotUseCase
	deleteSlot       *usecase.DeleteSlotUseCase
	listAvailability *usecase.ListAvailabilityUseCase
}

func NewSlotHandler(
	createSlot *usecase.CreateSlotUseCase,
	deleteSlot *usecase.DeleteSlotUseCase,
	listAvailability *usecase.ListAvailabilityUseCase,
) *SlotHandler {
	return &SlotHandler{
		createSlot:       createSlot,
		deleteSlot:       deleteSlot,
		listAvailability: listAvailability,
	}
}

type CreateSlotRequest struct {
	TrainerID uuid.UUID `json:"trainer_id"` // já validado pelo subsistema de auth/perfil
	ClassID   uuid.UUID `json:"class_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Capacity  int32     `json:"capacity"`
}

func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Payload inválido")
		return
	}
	if req.TrainerID == uuid.Nil || req.ClassID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "trainer_id e class_id são obrigatórios")
		return
	}

	out, err := h.createSlot.Execute(r.Context(), usecase.CreateSlotInput{
		TrainerID: req.TrainerID,
		ClassID:   req.ClassID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Capacity:  req.Capacity,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRange):
			respondError(w, http.StatusBadRequest, "Horário de fim deve ser depois do início")
		case errors.Is(err, domain.ErrSlotOverlap):
			respondError(w, http.StatusConflict, "Trainer já tem slot nesse intervalo")
		default:
			log.Error().Err(err).Msg("Erro interno ao criar slot")
			respondError(w, http.StatusInternalServerError, "Erro interno do servidor")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"slot_id":  out.SlotID,
		"capacity": out.Capacity,
	})
}

func (h *SlotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	slotID, err := uuid.Parse(chi.URLParam(r, "slotID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "slot_id inválido")
		return
	}

	if err := h.deleteSlot.Execute(r.Context(), slotID); err != nil {
		switch {
		case errors.Is(err, domain.ErrSlotNotFound):
			respondError(w, http.StatusNotFound, "Slot não encontrado")
		case errors.Is(err, domain.ErrSlotOccupied):
			respondError(w, http.StatusConflict, "Slot tem reservas ativas ou confirmadas")
		default:
			log.Error().Err(err).Msg("Erro interno ao excluir slot")
			respondError(w, http.StatusInternalServerError, "Erro interno do servidor")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAvailable responde "o que dá para reservar" pela projeção,
// nunca pelo caminho de escrita.
func (h *SlotHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	input := usecase.ListAvailabilityInput{}
	if v := query.Get("trainer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "trainer_id inválido")
			return
		}
		input.TrainerID = id
	}
	if v := query.Get("class_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "class_id inválido")
			return
		}
		input.ClassID = id
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

	slots, err := h.listAvailability.Execute(r.Context(), input)
	if err != nil {
		log.Error().Err(err).Msg("Erro interno ao listar disponibilidade")
		respondError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"slots": slots})
}
