package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
)

func seedConfirmedBooking(t *testing.T, f *fixture) *domain.Booking {
	t.Helper()
	booking := &domain.Booking{
		ID:          uuid.New(),
		SlotID:      uuid.New(),
		HoldID:      uuid.New(),
		MemberID:    uuid.New(),
		TrainerID:   uuid.New(),
		PackageType: "single_class",
		AmountPaid:  45000,
		PaymentRef:  "chrg_test",
		Status:      domain.BookingStatusConfirmed,
		ConfirmedAt: time.Now().UTC(),
	}
	if err := f.bookingRepo.Create(context.Background(), booking); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return booking
}

func TestCancelBooking_AppendsStatusEvent(t *testing.T) {
	f := newFixture()
	booking := seedConfirmedBooking(t, f)
	uc := NewCancelBooking(f.bookingRepo, f.txManager, f.publisher)

	err := uc.Execute(context.Background(), CancelBookingInput{
		BookingID: booking.ID,
		Reason:    "member_request",
	})
	if err != nil {
		t.Fatalf("esperava sucesso, veio %v", err)
	}

	got, _ := f.bookingRepo.GetByID(context.Background(), booking.ID)
	if got.Status != domain.BookingStatusCancelled {
		t.Fatalf("status esperado cancelled, veio %s", got.Status)
	}

	f.store.mu.Lock()
	events := len(f.store.events)
	f.store.mu.Unlock()
	if events != 1 {
		t.Fatalf("esperava 1 evento de status, veio %d", events)
	}
	if got := len(f.publisher.byKey("booking.cancelled")); got != 1 {
		t.Fatalf("esperava 1 evento booking.cancelled, veio %d", got)
	}
}

func TestCancelBooking_Idempotent(t *testing.T) {
	f := newFixture()
	booking := seedConfirmedBooking(t, f)
	uc := NewCancelBooking(f.bookingRepo, f.txManager, f.publisher)

	input := CancelBookingInput{BookingID: booking.ID, Reason: "member_request"}
	if err := uc.Execute(context.Background(), input); err != nil {
		t.Fatalf("primeiro cancelamento: %v", err)
	}
	if err := uc.Execute(context.Background(), input); err != nil {
		t.Fatalf("repetir cancelamento não pode virar erro: %v", err)
	}

	f.store.mu.Lock()
	events := len(f.store.events)
	f.store.mu.Unlock()
	if events != 1 {
		t.Fatalf("repetição gerou evento extra: %d", events)
	}
	if got := len(f.publisher.byKey("booking.cancelled")); got != 1 {
		t.Fatalf("repetição publicou de novo: %d eventos", got)
	}
}

func TestCancelBooking_NotFound(t *testing.T) {
	f := newFixture()
	uc := NewCancelBooking(f.bookingRepo, f.txManager, f.publisher)

	err := uc.Execute(context.Background(), CancelBookingInput{BookingID: uuid.New()})
	if !errors.Is(err, domain.ErrBookingNotFound) {
		t.Fatalf("esperava ErrBookingNotFound, veio %v", err)
	}
}
