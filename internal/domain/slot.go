package domain

import (
	"time"

	"github.com/google/uuid"
)

// Slot representa a janela de horário que um trainer publica para uma aula.
// Clean Architecture: esta entidade não sabe o que é JSON nem SQL.
type Slot struct {
	ID        uuid.UUID
	TrainerID uuid.UUID
	ClassID   uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Capacity  int32 // default 1, aulas em grupo usam > 1
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Métodos de domínio (lógica pura)

// ValidateRange rejeita intervalos invertidos ou vazios antes de tocar no DB.
func (s *Slot) ValidateRange() error {
	if !s.EndTime.After(s.StartTime) {
		return ErrInvalidRange
	}
	return nil
}

// Overlaps verifica se dois intervalos de horário se cruzam.
func (s *Slot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && s.EndTime.After(start)
}

// HasCapacityFor responde se ainda cabe mais uma reserva dado o total
// de holds ativos + bookings confirmados já contados pelo Slot Store.
func (s *Slot) HasCapacityFor(occupied int32) bool {
	return occupied < s.Capacity
}

// Remaining calcula a capacidade livre divulgada no Availability Index.
func (s *Slot) Remaining(occupied int32) int32 {
	remaining := s.Capacity - occupied
	if remaining < 0 {
		return 0
	}
	return remaining
}
