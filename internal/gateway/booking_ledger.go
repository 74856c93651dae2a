package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LedgerEntry é o documento append-only do histórico de bookings.
// Kind distingue a confirmação original dos eventos de status posteriores.
type LedgerEntry struct {
	BookingID   uuid.UUID
	SlotID      uuid.UUID
	MemberID    uuid.UUID
	TrainerID   uuid.UUID
	PackageType string
	AmountPaid  int64
	PaymentRef  string
	Kind        string // "confirmed" | "cancelled"
	Reason      string
	SlotStart   time.Time
	OccurredAt  time.Time
}

// BookingLedger é a superfície de auditoria/histórico consumida por
// dashboards. Sem update-in-place: cancelamento vira entrada nova.
type BookingLedger interface {
	Append(ctx context.Context, entry LedgerEntry) error
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]LedgerEntry, error)
	ListByTrainer(ctx context.Context, trainerID uuid.UUID) ([]LedgerEntry, error)
	ListByPeriod(ctx context.Context, from, to time.Time) ([]LedgerEntry, error)
}
