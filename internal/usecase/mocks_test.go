package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

// memStore simula o Slot Store inteiro em memória para os testes de
// usecase. Um único mutex faz o papel do lock de linha do Postgres:
// o fakeTxManager segura o lock pelo corpo todo do Run, então duas
// "transações" concorrentes sobre o mesmo store são serializadas do
// mesmo jeito que o SELECT ... FOR UPDATE serializa no banco real.
type memStore struct {
	mu       sync.Mutex
	slots    map[uuid.UUID]*domain.Slot
	holds    map[uuid.UUID]*domain.ReservationHold
	intents  map[uuid.UUID]*domain.PaymentIntent
	bookings map[uuid.UUID]*domain.Booking
	events   []*domain.BookingStatusEvent
}

func newMemStore() *memStore {
	return &memStore{
		slots:    make(map[uuid.UUID]*domain.Slot),
		holds:    make(map[uuid.UUID]*domain.ReservationHold),
		intents:  make(map[uuid.UUID]*domain.PaymentIntent),
		bookings: make(map[uuid.UUID]*domain.Booking),
	}
}

// addSlot é o seed dos testes; fora de transação, então trava por conta própria.
func (s *memStore) addSlot(slot *domain.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *slot
	s.slots[slot.ID] = &cp
}

func (s *memStore) countOccupied(slotID uuid.UUID) int32 {
	var occupied int32
	for _, h := range s.holds {
		if h.SlotID == slotID && h.Status == domain.HoldStatusActive {
			occupied++
		}
	}
	for _, b := range s.bookings {
		if b.SlotID == slotID && b.Status == domain.BookingStatusConfirmed {
			occupied++
		}
	}
	return occupied
}

// fakeTxManager serializa transações segurando o mutex do store durante
// o fn inteiro. Os repositórios fake detectam se estão "dentro" de uma
// transação pelo token no contexto e só travam quando estão fora.
type fakeTxManager struct {
	store *memStore

	// RunErr força falha de commit quando setado.
	RunErr error
}

type fakeTx struct{ store *memStore }

func (m *fakeTxManager) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.RunErr != nil {
		return m.RunErr
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	ctxWithTx := context.WithValue(ctx, gateway.TransactionKey, &fakeTx{store: m.store})
	return fn(ctxWithTx)
}

// lockedCall executa fn segurando o mutex quando o repositório está fora
// de transação; dentro de uma, o fakeTxManager já segura o lock.
func lockedCall(s *memStore, inTx bool, fn func() error) error {
	if !inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn()
}

// --- SlotRepository fake ---

type fakeSlotRepo struct {
	store *memStore
	inTx  bool
}

func newFakeSlotRepo(store *memStore) *fakeSlotRepo {
	return &fakeSlotRepo{store: store}
}

func (r *fakeSlotRepo) Create(ctx context.Context, slot *domain.Slot) error {
	return lockedCall(r.store, r.inTx, func() error {
		cp := *slot
		r.store.slots[slot.ID] = &cp
		return nil
	})
}

func (r *fakeSlotRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Slot, error) {
	var out *domain.Slot
	err := lockedCall(r.store, r.inTx, func() error {
		s, ok := r.store.slots[id]
		if !ok {
			return domain.ErrSlotNotFound
		}
		cp := *s
		out = &cp
		return nil
	})
	return out, err
}

func (r *fakeSlotRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Slot, error) {
	// O lock de verdade é o mutex que o fakeTxManager já segura.
	return r.GetByID(ctx, id)
}

func (r *fakeSlotRepo) HasOverlap(ctx context.Context, trainerID uuid.UUID, start, end time.Time) (bool, error) {
	var overlap bool
	err := lockedCall(r.store, r.inTx, func() error {
		for _, s := range r.store.slots {
			if s.TrainerID == trainerID && s.Overlaps(start, end) {
				overlap = true
				return nil
			}
		}
		return nil
	})
	return overlap, err
}

func (r *fakeSlotRepo) CountOccupied(ctx context.Context, slotID uuid.UUID) (int32, error) {
	var occupied int32
	err := lockedCall(r.store, r.inTx, func() error {
		occupied = r.store.countOccupied(slotID)
		return nil
	})
	return occupied, err
}

func (r *fakeSlotRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return lockedCall(r.store, r.inTx, func() error {
		if _, ok := r.store.slots[id]; !ok {
			return domain.ErrSlotNotFound
		}
		delete(r.store.slots, id)
		return nil
	})
}

func (r *fakeSlotRepo) ListBookable(ctx context.Context, filter gateway.AvailabilityFilter) ([]domain.SlotAvailability, error) {
	var out []domain.SlotAvailability
	err := lockedCall(r.store, r.inTx, func() error {
		for _, s := range r.store.slots {
			if filter.TrainerID != uuid.Nil && s.TrainerID != filter.TrainerID {
				continue
			}
			if filter.ClassID != uuid.Nil && s.ClassID != filter.ClassID {
				continue
			}
			if !filter.From.IsZero() && s.EndTime.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && s.StartTime.After(filter.To) {
				continue
			}
			remaining := s.Remaining(r.store.countOccupied(s.ID))
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
				UpdatedAt: time.Now().UTC(),
			})
		}
		return nil
	})
	return out, err
}

func (r *fakeSlotRepo) WithTx(tx gateway.TransactionObject) gateway.SlotRepository {
	return &fakeSlotRepo{store: r.store, inTx: true}
}

// --- HoldRepository fake ---

type fakeHoldRepo struct {
	store *memStore
	inTx  bool
}

func newFakeHoldRepo(store *memStore) *fakeHoldRepo {
	return &fakeHoldRepo{store: store}
}

func (r *fakeHoldRepo) Create(ctx context.Context, hold *domain.ReservationHold) error {
	return lockedCall(r.store, r.inTx, func() error {
		cp := *hold
		r.store.holds[hold.ID] = &cp
		return nil
	})
}

func (r *fakeHoldRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReservationHold, error) {
	var out *domain.ReservationHold
	err := lockedCall(r.store, r.inTx, func() error {
		h, ok := r.store.holds[id]
		if !ok {
			return domain.ErrHoldNotFound
		}
		cp := *h
		out = &cp
		return nil
	})
	return out, err
}

func (r *fakeHoldRepo) Consume(ctx context.Context, id uuid.UUID, to domain.HoldStatus) (bool, error) {
	var won bool
	err := lockedCall(r.store, r.inTx, func() error {
		h, ok := r.store.holds[id]
		if !ok {
			return domain.ErrHoldNotFound
		}
		if h.Status != domain.HoldStatusActive {
			return nil
		}
		h.Status = to
		h.UpdatedAt = time.Now().UTC()
		won = true
		return nil
	})
	return won, err
}

func (r *fakeHoldRepo) ListExpired(ctx context.Context, now time.Time, limit int32) ([]domain.ReservationHold, error) {
	var out []domain.ReservationHold
	err := lockedCall(r.store, r.inTx, func() error {
		for _, h := range r.store.holds {
			if h.ExpiredAt(now) {
				out = append(out, *h)
			}
			if int32(len(out)) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *fakeHoldRepo) WithTx(tx gateway.TransactionObject) gateway.HoldRepository {
	return &fakeHoldRepo{store: r.store, inTx: true}
}

// --- PaymentIntentRepository fake ---

type fakeIntentRepo struct {
	store *memStore
	inTx  bool
}

func newFakeIntentRepo(store *memStore) *fakeIntentRepo {
	return &fakeIntentRepo{store: store}
}

func (r *fakeIntentRepo) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	return lockedCall(r.store, r.inTx, func() error {
		for _, existing := range r.store.intents {
			if existing.HoldID == intent.HoldID {
				return domain.ErrIntentExists
			}
		}
		cp := *intent
		r.store.intents[intent.ID] = &cp
		return nil
	})
}

func (r *fakeIntentRepo) GetByHoldID(ctx context.Context, holdID uuid.UUID) (*domain.PaymentIntent, error) {
	var out *domain.PaymentIntent
	err := lockedCall(r.store, r.inTx, func() error {
		for _, i := range r.store.intents {
			if i.HoldID == holdID {
				cp := *i
				out = &cp
				return nil
			}
		}
		return domain.ErrIntentNotFound
	})
	return out, err
}

func (r *fakeIntentRepo) GetByProviderRef(ctx context.Context, providerRef string) (*domain.PaymentIntent, error) {
	var out *domain.PaymentIntent
	err := lockedCall(r.store, r.inTx, func() error {
		for _, i := range r.store.intents {
			if i.ProviderRef == providerRef {
				cp := *i
				out = &cp
				return nil
			}
		}
		return domain.ErrIntentNotFound
	})
	return out, err
}

func (r *fakeIntentRepo) MarkStatus(ctx context.Context, id uuid.UUID, from, to domain.IntentStatus) (bool, error) {
	var won bool
	err := lockedCall(r.store, r.inTx, func() error {
		i, ok := r.store.intents[id]
		if !ok {
			return domain.ErrIntentNotFound
		}
		if i.Status != from {
			return nil
		}
		i.Status = to
		i.UpdatedAt = time.Now().UTC()
		won = true
		return nil
	})
	return won, err
}

func (r *fakeIntentRepo) WithTx(tx gateway.TransactionObject) gateway.PaymentIntentRepository {
	return &fakeIntentRepo{store: r.store, inTx: true}
}

// --- BookingRepository fake ---

type fakeBookingRepo struct {
	store *memStore
	inTx  bool
}

func newFakeBookingRepo(store *memStore) *fakeBookingRepo {
	return &fakeBookingRepo{store: store}
}

func (r *fakeBookingRepo) Create(ctx context.Context, booking *domain.Booking) error {
	return lockedCall(r.store, r.inTx, func() error {
		for _, existing := range r.store.bookings {
			if existing.HoldID == booking.HoldID {
				return fmt.Errorf("booking duplicado para hold %s", booking.HoldID)
			}
		}
		cp := *booking
		r.store.bookings[booking.ID] = &cp
		return nil
	})
}

func (r *fakeBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var out *domain.Booking
	err := lockedCall(r.store, r.inTx, func() error {
		b, ok := r.store.bookings[id]
		if !ok {
			return domain.ErrBookingNotFound
		}
		cp := *b
		out = &cp
		return nil
	})
	return out, err
}

func (r *fakeBookingRepo) AppendStatusEvent(ctx context.Context, event *domain.BookingStatusEvent) error {
	return lockedCall(r.store, r.inTx, func() error {
		b, ok := r.store.bookings[event.BookingID]
		if !ok {
			return domain.ErrBookingNotFound
		}
		b.Status = event.Status
		cp := *event
		r.store.events = append(r.store.events, &cp)
		return nil
	})
}

func (r *fakeBookingRepo) WithTx(tx gateway.TransactionObject) gateway.BookingRepository {
	return &fakeBookingRepo{store: r.store, inTx: true}
}

// --- EventPublisher fake ---

type publishedEvent struct {
	RoutingKey string
	Body       interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{RoutingKey: routingKey, Body: body})
	return nil
}

func (p *fakePublisher) byKey(routingKey string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.RoutingKey == routingKey {
			out = append(out, e)
		}
	}
	return out
}

// --- PaymentGateway fake ---

type fakePaymentGateway struct {
	mu         sync.Mutex
	CallCount  int
	CreateFunc func(ctx context.Context, input gateway.CreateIntentInput) (string, error)
}

func (g *fakePaymentGateway) CreateIntent(ctx context.Context, input gateway.CreateIntentInput) (string, error) {
	g.mu.Lock()
	g.CallCount++
	g.mu.Unlock()
	if g.CreateFunc != nil {
		return g.CreateFunc(ctx, input)
	}
	return "chrg_test_" + input.HoldID.String()[:8], nil
}

// --- fixture ---

// fixture amarra todos os fakes sobre o mesmo memStore.
type fixture struct {
	store       *memStore
	txManager   *fakeTxManager
	slotRepo    *fakeSlotRepo
	holdRepo    *fakeHoldRepo
	intentRepo  *fakeIntentRepo
	bookingRepo *fakeBookingRepo
	publisher   *fakePublisher
	paymentGw   *fakePaymentGateway
}

func newFixture() *fixture {
	store := newMemStore()
	return &fixture{
		store:       store,
		txManager:   &fakeTxManager{store: store},
		slotRepo:    newFakeSlotRepo(store),
		holdRepo:    newFakeHoldRepo(store),
		intentRepo:  newFakeIntentRepo(store),
		bookingRepo: newFakeBookingRepo(store),
		publisher:   &fakePublisher{},
		paymentGw:   &fakePaymentGateway{},
	}
}

func (f *fixture) seedSlot(capacity int32, start time.Time) *domain.Slot {
	slot := &domain.Slot{
		ID:        uuid.New(),
		TrainerID: uuid.New(),
		ClassID:   uuid.New(),
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Capacity:  capacity,
	}
	f.store.addSlot(slot)
	return slot
}
