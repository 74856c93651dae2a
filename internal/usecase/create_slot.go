package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

// CreateSlotInput chega do handler já com o trainer validado pelo
// subsistema de perfil/auth; aqui a gente confia no par (trainer, class).
type CreateSlotInput struct {
	TrainerID uuid.UUID
	ClassID   uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Capacity  int32
}

type CreateSlotOutput struct {
	SlotID   uuid.UUID
	Capacity int32
}

type CreateSlotUseCase struct {
	slotRepository     gateway.SlotRepository
	transactionManager gateway.TransactionManager
	eventPublisher     gateway.EventPublisher
}

func NewCreateSlot(
	slotRepo gateway.SlotRepository,
	txManager gateway.TransactionManager,
	publisher gateway.EventPublisher,
) *CreateSlotUseCase {
	return &CreateSlotUseCase{
		slotRepository:     slotRepo,
		transactionManager: txManager,
		eventPublisher:     publisher,
	}
}

func (u *CreateSlotUseCase) Execute(ctx context.Context, input CreateSlotInput) (*CreateSlotOutput, error) {
	capacity := input.Capacity
	if capacity <= 0 {
		capacity = 1 // default: aula individual
	}

	slot := &domain.Slot{
		ID:        uuid.New(),
		TrainerID: input.TrainerID,
		ClassID:   input.ClassID,
		StartTime: input.StartTime.UTC(),
		EndTime:   input.EndTime.UTC(),
		Capacity:  capacity,
	}

	if err := slot.ValidateRange(); err != nil {
		return nil, err
	}

	// Checagem de overlap e insert no mesmo BEGIN...COMMIT. O repositório
	// segura um advisory lock por trainer durante o HasOverlap, então dois
	// creates simultâneos do mesmo trainer rodam um de cada vez; a
	// exclusion constraint no schema é o backstop se algo escapar.
	err := u.transactionManager.Run(ctx, func(contextWithTx context.Context) error {
		transactionObject := contextWithTx.Value(gateway.TransactionKey)
		if transactionObject == nil {
			return fmt.Errorf("erro crítico: transação não encontrada no contexto")
		}

		slotRepoTx := u.slotRepository.WithTx(transactionObject)

		overlap, err := slotRepoTx.HasOverlap(contextWithTx, slot.TrainerID, slot.StartTime, slot.EndTime)
		if err != nil {
			return fmt.Errorf("falha ao verificar overlap do trainer %s: %w", slot.TrainerID, err)
		}
		if overlap {
			return domain.ErrSlotOverlap
		}

		return slotRepoTx.Create(contextWithTx, slot)
	})
	if err != nil {
		return nil, err
	}

	publishSlotEvent(ctx, u.eventPublisher, "slot.created", slot, slot.Capacity, "")

	return &CreateSlotOutput{SlotID: slot.ID, Capacity: slot.Capacity}, nil
}
