package domain

import (
	"time"

	"github.com/google/uuid"
)

type HoldStatus string

const (
	HoldStatusActive    HoldStatus = "active"
	HoldStatusConfirmed HoldStatus = "confirmed"
	HoldStatusReleased  HoldStatus = "released"
	HoldStatusExpired   HoldStatus = "expired"
)

// ReservationHold é a reserva efêmera de uma unidade de capacidade do slot
// enquanto o pagamento não resolve. Só existe entre o "request" e o
// confirm/release/expire; quem decide o destino é exclusivamente a máquina
// de estados de reserva.
type ReservationHold struct {
	ID        uuid.UUID
	SlotID    uuid.UUID
	MemberID  uuid.UUID
	Status    HoldStatus
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active diz se o hold ainda ocupa capacidade do slot.
func (h *ReservationHold) Active() bool {
	return h.Status == HoldStatusActive
}

// ExpiredAt responde se o TTL já passou no instante dado.
// A varredura usa isso para decidir quem vira EXPIRED.
func (h *ReservationHold) ExpiredAt(now time.Time) bool {
	return h.Status == HoldStatusActive && now.After(h.ExpiresAt)
}

// Terminal diz se o hold já chegou num estado final (CONFIRMED, RELEASED
// ou EXPIRED). Transições a partir daqui são no-ops.
func (h *ReservationHold) Terminal() bool {
	return h.Status != HoldStatusActive
}
