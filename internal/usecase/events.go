package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

// ReservationExchange é o tópico por onde o worker recebe as mudanças de
// estado para projetar o Availability Index e o Booking Ledger.
const ReservationExchange = "reservation_events"

// publishSlotEvent monta o snapshot que o indexador precisa para
// reescrever a disponibilidade do slot sem consultar o banco.
func publishSlotEvent(
	ctx context.Context,
	publisher gateway.EventPublisher,
	routingKey string,
	slot *domain.Slot,
	remaining int32,
	reason string,
) {
	if publisher == nil {
		return
	}

	event := map[string]interface{}{
		"slot_id":    slot.ID.String(),
		"trainer_id": slot.TrainerID.String(),
		"class_id":   slot.ClassID.String(),
		"start_time": slot.StartTime.UTC().Format(time.RFC3339),
		"end_time":   slot.EndTime.UTC().Format(time.RFC3339),
		"capacity":   slot.Capacity,
		"remaining":  remaining,
	}
	if reason != "" {
		event["reason"] = reason
	}

	if err := publisher.Publish(ctx, ReservationExchange, routingKey, event); err != nil {
		// Evento perdido não derruba a operação; o índice se recupera no
		// próximo evento do mesmo slot (ou no fallback de leitura).
		log.Error().Err(err).Str("routing_key", routingKey).Msg("Falha ao publicar evento de slot")
	}
}

func publishBookingEvent(
	ctx context.Context,
	publisher gateway.EventPublisher,
	routingKey string,
	booking *domain.Booking,
	slot *domain.Slot,
	remaining int32,
	reason string,
) {
	if publisher == nil {
		return
	}

	event := map[string]interface{}{
		"booking_id":   booking.ID.String(),
		"slot_id":      booking.SlotID.String(),
		"hold_id":      booking.HoldID.String(),
		"member_id":    booking.MemberID.String(),
		"trainer_id":   booking.TrainerID.String(),
		"package_type": booking.PackageType,
		"amount_paid":  booking.AmountPaid,
		"payment_ref":  booking.PaymentRef,
		"occurred_at":  time.Now().UTC().Format(time.RFC3339),
	}
	if slot != nil {
		event["class_id"] = slot.ClassID.String()
		event["start_time"] = slot.StartTime.UTC().Format(time.RFC3339)
		event["end_time"] = slot.EndTime.UTC().Format(time.RFC3339)
		event["capacity"] = slot.Capacity
		event["remaining"] = remaining
	}
	if reason != "" {
		event["reason"] = reason
	}

	if err := publisher.Publish(ctx, ReservationExchange, routingKey, event); err != nil {
		log.Error().Err(err).Str("routing_key", routingKey).Msg("Falha ao publicar evento de booking")
	}
}
