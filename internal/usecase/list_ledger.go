package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

// ErrLedgerFilter indica consulta sem nenhum filtro utilizável.
var ErrLedgerFilter = errors.New("informe member_id, trainer_id ou um período from/to")

type LedgerQueryInput struct {
	MemberID  uuid.UUID
	TrainerID uuid.UUID
	From      time.Time
	To        time.Time
}

// LedgerQueryUseCase serve o dashboard: leitura pura do histórico
// append-only de bookings, sem nenhum acesso de escrita.
type LedgerQueryUseCase struct {
	ledger gateway.BookingLedger
}

func NewLedgerQuery(ledger gateway.BookingLedger) *LedgerQueryUseCase {
	return &LedgerQueryUseCase{ledger: ledger}
}

func (u *LedgerQueryUseCase) Execute(ctx context.Context, input LedgerQueryInput) ([]gateway.LedgerEntry, error) {
	switch {
	case input.MemberID != uuid.Nil:
		return u.ledger.ListByMember(ctx, input.MemberID)
	case input.TrainerID != uuid.Nil:
		return u.ledger.ListByTrainer(ctx, input.TrainerID)
	case !input.From.IsZero() && !input.To.IsZero():
		return u.ledger.ListByPeriod(ctx, input.From, input.To)
	default:
		return nil, ErrLedgerFilter
	}
}
