package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
	"github.com/mdtalam/Fitness-sub001/internal/usecase"
)

type testEnv struct {
	store     *stubStore
	paymentGw *stubPaymentGateway
	router    *chi.Mux
}

// buildTestRouter monta o router com as mesmas rotas de reserva do
// binário da API, sobre repositórios em memória.
func buildTestRouter() *testEnv {
	store := newStubStore()
	slotRepo := &stubSlotRepo{store: store}
	holdRepo := &stubHoldRepo{store: store}
	intentRepo := &stubIntentRepo{store: store}
	paymentGw := &stubPaymentGateway{}
	tx := stubTxManager{}

	placeHold := usecase.NewPlaceHold(slotRepo, holdRepo, tx, nil, 15*time.Minute)
	openIntent := usecase.NewOpenIntent(holdRepo, intentRepo, paymentGw)
	releaseHold := usecase.NewReleaseHold(slotRepo, holdRepo, intentRepo, tx, nil)
	getReservation := usecase.NewGetReservation(holdRepo, intentRepo)

	h := NewReservationHandler(placeHold, openIntent, releaseHold, getReservation, "thb")

	router := chi.NewRouter()
	router.Post("/reservations", h.Create)
	router.Get("/reservations/{holdID}", h.Get)
	router.Delete("/reservations/{holdID}", h.Cancel)
	router.Post("/reservations/{holdID}/intent", h.RetryIntent)

	return &testEnv{store: store, paymentGw: paymentGw, router: router}
}

func (e *testEnv) seedSlot(capacity int32) *domain.Slot {
	start := time.Now().Add(24 * time.Hour).UTC()
	slot := &domain.Slot{
		ID:        uuid.New(),
		TrainerID: uuid.New(),
		ClassID:   uuid.New(),
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Capacity:  capacity,
	}
	e.store.slots[slot.ID] = slot
	return slot
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestReservationCreate_HappyPath(t *testing.T) {
	env := buildTestRouter()
	slot := env.seedSlot(2)

	rec := doJSON(t, env.router, http.MethodPost, "/reservations", map[string]any{
		"slot_id":      slot.ID,
		"member_id":    uuid.New(),
		"amount":       45000,
		"package_type": "single_class",
		"card_token":   "tokn_test",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("esperava 201, veio %d: %s", rec.Code, rec.Body.String())
	}

	var resp CreateReservationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.HoldID == uuid.Nil {
		t.Fatal("hold_id vazio")
	}
	if resp.ProviderRef == "" {
		t.Fatal("provider_ref vazio")
	}
	if resp.Remaining != 1 {
		t.Fatalf("remaining esperado 1, veio %d", resp.Remaining)
	}
}

func TestReservationCreate_Validation(t *testing.T) {
	env := buildTestRouter()

	rec := doJSON(t, env.router, http.MethodPost, "/reservations", map[string]any{
		"member_id": uuid.New(),
		"amount":    100,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("sem slot_id esperava 400, veio %d", rec.Code)
	}

	rec = doJSON(t, env.router, http.MethodPost, "/reservations", map[string]any{
		"slot_id":   uuid.New(),
		"member_id": uuid.New(),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("sem amount esperava 400, veio %d", rec.Code)
	}
}

func TestReservationCreate_SlotFull(t *testing.T) {
	env := buildTestRouter()
	slot := env.seedSlot(1)

	body := func() map[string]any {
		return map[string]any{
			"slot_id":    slot.ID,
			"member_id":  uuid.New(),
			"amount":     45000,
			"card_token": "tokn_test",
		}
	}
	if rec := doJSON(t, env.router, http.MethodPost, "/reservations", body()); rec.Code != http.StatusCreated {
		t.Fatalf("primeira reserva: %d", rec.Code)
	}
	rec := doJSON(t, env.router, http.MethodPost, "/reservations", body())
	if rec.Code != http.StatusConflict {
		t.Fatalf("slot lotado esperava 409, veio %d", rec.Code)
	}
}

func TestReservationCreate_UnknownSlot(t *testing.T) {
	env := buildTestRouter()

	rec := doJSON(t, env.router, http.MethodPost, "/reservations", map[string]any{
		"slot_id":   uuid.New(),
		"member_id": uuid.New(),
		"amount":    100,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("esperava 404, veio %d", rec.Code)
	}
}

// Gateway caiu entre o hold e a cobrança: 504 com o hold no corpo, e o
// retry em /intent resolve sem perder a vaga.
func TestReservationCreate_GatewayTimeoutThenRetry(t *testing.T) {
	env := buildTestRouter()
	slot := env.seedSlot(1)
	env.paymentGw.CreateFunc = func(ctx context.Context, input gateway.CreateIntentInput) (string, error) {
		return "", domain.ErrGatewayTimeout
	}

	rec := doJSON(t, env.router, http.MethodPost, "/reservations", map[string]any{
		"slot_id":    slot.ID,
		"member_id":  uuid.New(),
		"amount":     45000,
		"card_token": "tokn_test",
	})
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("esperava 504, veio %d", rec.Code)
	}

	var resp CreateReservationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.HoldID == uuid.Nil {
		t.Fatal("504 deveria devolver o hold para retry")
	}
	if resp.IntentID != uuid.Nil {
		t.Fatal("não deveria ter intent após timeout")
	}

	env.paymentGw.CreateFunc = nil
	retry := doJSON(t, env.router, http.MethodPost, fmt.Sprintf("/reservations/%s/intent", resp.HoldID), map[string]any{
		"amount":     45000,
		"card_token": "tokn_test",
	})
	if retry.Code != http.StatusOK {
		t.Fatalf("retry esperava 200, veio %d: %s", retry.Code, retry.Body.String())
	}
}

func TestReservationGetAndCancel(t *testing.T) {
	env := buildTestRouter()
	slot := env.seedSlot(1)

	rec := doJSON(t, env.router, http.MethodPost, "/reservations", map[string]any{
		"slot_id":    slot.ID,
		"member_id":  uuid.New(),
		"amount":     45000,
		"card_token": "tokn_test",
	})
	var resp CreateReservationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	get := doJSON(t, env.router, http.MethodGet, fmt.Sprintf("/reservations/%s", resp.HoldID), nil)
	if get.Code != http.StatusOK {
		t.Fatalf("get esperava 200, veio %d", get.Code)
	}

	cancel := doJSON(t, env.router, http.MethodDelete, fmt.Sprintf("/reservations/%s", resp.HoldID), nil)
	if cancel.Code != http.StatusOK {
		t.Fatalf("cancel esperava 200, veio %d", cancel.Code)
	}

	// Repetir o cancelamento continua 200 (idempotente).
	again := doJSON(t, env.router, http.MethodDelete, fmt.Sprintf("/reservations/%s", resp.HoldID), nil)
	if again.Code != http.StatusOK {
		t.Fatalf("cancel repetido esperava 200, veio %d", again.Code)
	}

	unknown := doJSON(t, env.router, http.MethodGet, fmt.Sprintf("/reservations/%s", uuid.New()), nil)
	if unknown.Code != http.StatusNotFound {
		t.Fatalf("reserva inexistente esperava 404, veio %d", unknown.Code)
	}
}
