package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

type ListAvailabilityInput struct {
	TrainerID uuid.UUID
	ClassID   uuid.UUID
	From      time.Time
	To        time.Time
}

// ListAvailabilityUseCase responde "quais slots dão para reservar agora"
// pela projeção no Redis, sem encostar no caminho de escrita. Quando o
// índice não tem resposta, cai para o Postgres e reidrata o cache. Um
// índice atrasado nunca vira venda dupla, no máximo uma viagem perdida
// até o Slot Store dizer não.
type ListAvailabilityUseCase struct {
	availabilityIndex gateway.AvailabilityIndex
	slotRepository    gateway.SlotRepository
	snapshotTTL       time.Duration
}

func NewListAvailability(index gateway.AvailabilityIndex, slotRepo gateway.SlotRepository) *ListAvailabilityUseCase {
	return &ListAvailabilityUseCase{
		availabilityIndex: index,
		slotRepository:    slotRepo,
		snapshotTTL:       24 * time.Hour,
	}
}

func (u *ListAvailabilityUseCase) Execute(ctx context.Context, input ListAvailabilityInput) ([]domain.SlotAvailability, error) {
	now := time.Now().UTC()

	if input.From.IsZero() {
		input.From = now
	}
	if input.To.IsZero() {
		input.To = input.From.Add(7 * 24 * time.Hour)
	}

	// O índice é particionado por trainer+dia; sem trainer no filtro a
	// consulta vai direto ao banco.
	if u.availabilityIndex != nil && input.TrainerID != uuid.Nil {
		if snapshots, missedDays, ok := u.fromIndex(ctx, input, now); ok {
			return u.fillMissedDays(ctx, input, snapshots, missedDays)
		}
	}

	return u.fromStore(ctx, input)
}

// fromIndex lê a janela dia a dia. Um dia sem nenhum snapshot entra em
// missedDays: pode ser um dia vago de verdade ou um dia que nunca foi
// projetado, e só o banco sabe dizer qual dos dois.
func (u *ListAvailabilityUseCase) fromIndex(ctx context.Context, input ListAvailabilityInput, now time.Time) ([]domain.SlotAvailability, []time.Time, bool) {
	var results []domain.SlotAvailability
	var missedDays []time.Time

	day := input.From.Truncate(24 * time.Hour)
	end := input.To

	// Janela limitada: acima disso a varredura de chaves diárias custa
	// mais que a consulta no banco.
	for i := 0; i < 31; i++ {
		if day.After(end) {
			return results, missedDays, true
		}
		snapshots, err := u.availabilityIndex.ListByDay(ctx, input.TrainerID, day)
		if err != nil {
			log.Warn().Err(err).Msg("Availability index indisponível, caindo para o banco")
			return nil, nil, false
		}
		if len(snapshots) == 0 {
			missedDays = append(missedDays, day)
		}
		for _, s := range snapshots {
			if !s.Bookable(now) {
				continue
			}
			if input.ClassID != uuid.Nil && s.ClassID != input.ClassID {
				continue
			}
			if s.StartTime.Before(input.From) || s.StartTime.After(input.To) {
				continue
			}
			results = append(results, s)
		}
		day = day.Add(24 * time.Hour)
	}

	// Janela maior que a varredura: o banco responde inteiro.
	return nil, nil, false
}

// fillMissedDays completa os dias que o índice não tinha consultando o
// Slot Store só naquele recorte, e reidrata de quebra.
func (u *ListAvailabilityUseCase) fillMissedDays(ctx context.Context, input ListAvailabilityInput, results []domain.SlotAvailability, missedDays []time.Time) ([]domain.SlotAvailability, error) {
	for _, day := range missedDays {
		dayInput := input
		if day.After(input.From) {
			dayInput.From = day
		}
		if dayEnd := day.Add(24 * time.Hour); dayEnd.Before(input.To) {
			dayInput.To = dayEnd
		}
		fromDB, err := u.fromStore(ctx, dayInput)
		if err != nil {
			return nil, err
		}
		results = append(results, fromDB...)
	}
	return results, nil
}

func (u *ListAvailabilityUseCase) fromStore(ctx context.Context, input ListAvailabilityInput) ([]domain.SlotAvailability, error) {
	snapshots, err := u.slotRepository.ListBookable(ctx, gateway.AvailabilityFilter{
		TrainerID: input.TrainerID,
		ClassID:   input.ClassID,
		From:      input.From,
		To:        input.To,
	})
	if err != nil {
		return nil, err
	}

	// Reidrata o índice para a próxima leitura não pagar o banco de novo.
	if u.availabilityIndex != nil {
		for _, s := range snapshots {
			if err := u.availabilityIndex.Save(ctx, s, u.snapshotTTL); err != nil {
				log.Warn().Err(err).Str("slot_id", s.SlotID.String()).Msg("Falha ao reidratar availability index")
				break
			}
		}
	}

	return snapshots, nil
}
