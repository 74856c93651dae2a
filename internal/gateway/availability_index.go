package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
)

// AvailabilityIndex é a projeção read-only de disponibilidade.
// Staleness aqui nunca é problema de correção: um hold contra um slot que
// já encheu ainda falha com segurança no Slot Store, só custa a viagem.
type AvailabilityIndex interface {
	Get(ctx context.Context, slotID uuid.UUID) (*domain.SlotAvailability, error)
	Save(ctx context.Context, availability domain.SlotAvailability, ttl time.Duration) error

	// ListByDay devolve os snapshots do trainer no dia (chave do set diário).
	ListByDay(ctx context.Context, trainerID uuid.UUID, day time.Time) ([]domain.SlotAvailability, error)
}
