package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
)

// AvailabilityFilter restringe a listagem de slots vendáveis.
// Campos zerados significam "sem filtro".
type AvailabilityFilter struct {
	TrainerID uuid.UUID
	ClassID   uuid.UUID
	From      time.Time
	To        time.Time
}

// SlotRepository define o contrato de persistência de slots.
// O usecase só interage com isso, sem saber se é Postgres ou outro banco.
type SlotRepository interface {
	Create(ctx context.Context, slot *domain.Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Slot, error)

	// Lock pessimista: retorna o slot travando a linha no banco.
	// É o único ponto de serialização do sistema: a contagem de capacidade
	// e a inserção do hold acontecem atrás deste lock.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Slot, error)

	// HasOverlap diz se o trainer já tem slot cruzando o intervalo.
	HasOverlap(ctx context.Context, trainerID uuid.UUID, start, end time.Time) (bool, error)

	// CountOccupied soma holds ativos + bookings confirmados do slot.
	CountOccupied(ctx context.Context, slotID uuid.UUID) (int32, error)

	// Delete remove o slot; o usecase garante antes que não há holds nem bookings.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListBookable é o fallback do Availability Index quando o cache falha.
	ListBookable(ctx context.Context, filter AvailabilityFilter) ([]domain.SlotAvailability, error)

	// WithTx retorna uma cópia do repositório ligada àquela transação.
	WithTx(tx TransactionObject) SlotRepository
}
