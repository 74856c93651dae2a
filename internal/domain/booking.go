package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking é o resultado durável de um hold pago com sucesso.
// Imutável depois de confirmado: cancelamento vira um evento de status
// anexado ao ledger, nunca remoção de linha (propriedade de auditoria).
type Booking struct {
	ID          uuid.UUID
	SlotID      uuid.UUID
	HoldID      uuid.UUID
	MemberID    uuid.UUID
	TrainerID   uuid.UUID
	PackageType string
	AmountPaid  int64
	PaymentRef  string
	Status      BookingStatus
	ConfirmedAt time.Time
}

// BookingStatusEvent registra mudanças de status pós-confirmação
// (append-only, o registro original nunca é alterado).
type BookingStatusEvent struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	Status    BookingStatus
	Reason    string
	CreatedAt time.Time
}

// SlotAvailability é a projeção read-only consumida pelo Availability Index.
type SlotAvailability struct {
	SlotID    uuid.UUID
	TrainerID uuid.UUID
	ClassID   uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Capacity  int32
	Remaining int32
	UpdatedAt time.Time
}

// Bookable responde "esse slot ainda vende?" sem tocar no write path.
func (a *SlotAvailability) Bookable(now time.Time) bool {
	return a.Remaining > 0 && a.StartTime.After(now)
}
