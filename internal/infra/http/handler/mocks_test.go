package handler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

// Fakes single-thread para os testes de handler: sem lock porque cada
// teste roda uma requisição por vez. A correção concorrente é coberta
// nos testes de usecase.

type stubStore struct {
	slots    map[uuid.UUID]*domain.Slot
	holds    map[uuid.UUID]*domain.ReservationHold
	intents  map[uuid.UUID]*domain.PaymentIntent
	bookings map[uuid.UUID]*domain.Booking
}

func newStubStore() *stubStore {
	return &stubStore{
		slots:    make(map[uuid.UUID]*domain.Slot),
		holds:    make(map[uuid.UUID]*domain.ReservationHold),
		intents:  make(map[uuid.UUID]*domain.PaymentIntent),
		bookings: make(map[uuid.UUID]*domain.Booking),
	}
}

type stubTxManager struct{}

func (stubTxManager) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(context.WithValue(ctx, gateway.TransactionKey, struct{}{}))
}

type stubSlotRepo struct{ store *stubStore }

func (r *stubSlotRepo) Create(ctx context.Context, slot *domain.Slot) error {
	r.store.slots[slot.ID] = slot
	return nil
}

func (r *stubSlotRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Slot, error) {
	s, ok := r.store.slots[id]
	if !ok {
		return nil, domain.ErrSlotNotFound
	}
	return s, nil
}

func (r *stubSlotRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Slot, error) {
	return r.GetByID(ctx, id)
}

func (r *stubSlotRepo) HasOverlap(ctx context.Context, trainerID uuid.UUID, start, end time.Time) (bool, error) {
	for _, s := range r.store.slots {
		if s.TrainerID == trainerID && s.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubSlotRepo) CountOccupied(ctx context.Context, slotID uuid.UUID) (int32, error) {
	var occupied int32
	for _, h := range r.store.holds {
		if h.SlotID == slotID && h.Status == domain.HoldStatusActive {
			occupied++
		}
	}
	for _, b := range r.store.bookings {
		if b.SlotID == slotID && b.Status == domain.BookingStatusConfirmed {
			occupied++
		}
	}
	return occupied, nil
}

func (r *stubSlotRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.store.slots[id]; !ok {
		return domain.ErrSlotNotFound
	}
	delete(r.store.slots, id)
	return nil
}

func (r *stubSlotRepo) ListBookable(ctx context.Context, filter gateway.AvailabilityFilter) ([]domain.SlotAvailability, error) {
	var out []domain.SlotAvailability
	for _, s := range r.store.slots {
		if filter.TrainerID != uuid.Nil && s.TrainerID != filter.TrainerID {
			continue
		}
		occupied, _ := r.CountOccupied(ctx, s.ID)
		remaining := s.Remaining(occupied)
		if remaining <= 0 {
			continue
		}
		out = append(out, domain.SlotAvailability{
			SlotID:    s.ID,
			TrainerID: s.TrainerID,
			ClassID:   s.ClassID,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			Capacity:  s.Capacity,
			Remaining: remaining,
		})
	}
	return out, nil
}

func (r *stubSlotRepo) WithTx(tx gateway.TransactionObject) gateway.SlotRepository { return r }

type stubHoldRepo struct{ store *stubStore }

func (r *stubHoldRepo) Create(ctx context.Context, hold *domain.ReservationHold) error {
	r.store.holds[hold.ID] = hold
	return nil
}

func (r *stubHoldRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReservationHold, error) {
	h, ok := r.store.holds[id]
	if !ok {
		return nil, domain.ErrHoldNotFound
	}
	return h, nil
}

func (r *stubHoldRepo) Consume(ctx context.Context, id uuid.UUID, to domain.HoldStatus) (bool, error) {
	h, ok := r.store.holds[id]
	if !ok {
		return false, domain.ErrHoldNotFound
	}
	if h.Status != domain.HoldStatusActive {
		return false, nil
	}
	h.Status = to
	return true, nil
}

func (r *stubHoldRepo) ListExpired(ctx context.Context, now time.Time, limit int32) ([]domain.ReservationHold, error) {
	return nil, nil
}

func (r *stubHoldRepo) WithTx(tx gateway.TransactionObject) gateway.HoldRepository { return r }

type stubIntentRepo struct{ store *stubStore }

func (r *stubIntentRepo) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	for _, existing := range r.store.intents {
		if existing.HoldID == intent.HoldID {
			return domain.ErrIntentExists
		}
	}
	r.store.intents[intent.ID] = intent
	return nil
}

func (r *stubIntentRepo) GetByHoldID(ctx context.Context, holdID uuid.UUID) (*domain.PaymentIntent, error) {
	for _, i := range r.store.intents {
		if i.HoldID == holdID {
			return i, nil
		}
	}
	return nil, domain.ErrIntentNotFound
}

func (r *stubIntentRepo) GetByProviderRef(ctx context.Context, providerRef string) (*domain.PaymentIntent, error) {
	for _, i := range r.store.intents {
		if i.ProviderRef == providerRef {
			return i, nil
		}
	}
	return nil, domain.ErrIntentNotFound
}

func (r *stubIntentRepo) MarkStatus(ctx context.Context, id uuid.UUID, from, to domain.IntentStatus) (bool, error) {
	i, ok := r.store.intents[id]
	if !ok {
		return false, domain.ErrIntentNotFound
	}
	if i.Status != from {
		return false, nil
	}
	i.Status = to
	return true, nil
}

func (r *stubIntentRepo) WithTx(tx gateway.TransactionObject) gateway.PaymentIntentRepository {
	return r
}

type stubBookingRepo struct{ store *stubStore }

func (r *stubBookingRepo) Create(ctx context.Context, booking *domain.Booking) error {
	r.store.bookings[booking.ID] = booking
	return nil
}

func (r *stubBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, ok := r.store.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return b, nil
}

func (r *stubBookingRepo) AppendStatusEvent(ctx context.Context, event *domain.BookingStatusEvent) error {
	b, ok := r.store.bookings[event.BookingID]
	if !ok {
		return domain.ErrBookingNotFound
	}
	b.Status = event.Status
	return nil
}

func (r *stubBookingRepo) WithTx(tx gateway.TransactionObject) gateway.BookingRepository { return r }

type stubPaymentGateway struct {
	CreateFunc func(ctx context.Context, input gateway.CreateIntentInput) (string, error)
}

func (g *stubPaymentGateway) CreateIntent(ctx context.Context, input gateway.CreateIntentInput) (string, error) {
	if g.CreateFunc != nil {
		return g.CreateFunc(ctx, input)
	}
	return "chrg_stub", nil
}

type stubVerifier struct {
	Event *gateway.WebhookEvent
	Err   error
}

func (v *stubVerifier) Verify(ctx context.Context, eventRef string) (*gateway.WebhookEvent, error) {
	return v.Event, v.Err
}
