package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

type ReservationView struct {
	HoldID       uuid.UUID
	SlotID       uuid.UUID
	MemberID     uuid.UUID
	HoldStatus   domain.HoldStatus
	ExpiresAt    time.Time
	IntentID     uuid.UUID
	IntentStatus domain.IntentStatus
	ProviderRef  string
	Amount       int64
}

// GetReservationUseCase é a superfície de polling do cliente enquanto o
// webhook do gateway não chega.
type GetReservationUseCase struct {
	holdRepository   gateway.HoldRepository
	intentRepository gateway.PaymentIntentRepository
}

func NewGetReservation(holdRepo gateway.HoldRepository, intentRepo gateway.PaymentIntentRepository) *GetReservationUseCase {
	return &GetReservationUseCase{
		holdRepository:   holdRepo,
		intentRepository: intentRepo,
	}
}

func (u *GetReservationUseCase) Execute(ctx context.Context, holdID uuid.UUID) (*ReservationView, error) {
	hold, err := u.holdRepository.GetByID(ctx, holdID)
	if err != nil {
		return nil, err
	}

	view := &ReservationView{
		HoldID:     hold.ID,
		SlotID:     hold.SlotID,
		MemberID:   hold.MemberID,
		HoldStatus: hold.Status,
		ExpiresAt:  hold.ExpiresAt,
	}

	intent, err := u.intentRepository.GetByHoldID(ctx, holdID)
	if err != nil {
		if errors.Is(err, domain.ErrIntentNotFound) {
			return view, nil // hold sem cobrança aberta ainda
		}
		return nil, err
	}

	view.IntentID = intent.ID
	view.IntentStatus = intent.Status
	view.ProviderRef = intent.ProviderRef
	view.Amount = intent.Amount
	return view, nil
}
