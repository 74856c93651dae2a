package gateway

import "context"

// EventPublisher é a saída dos eventos de reserva para o broker. A
// routing key (slot.*, booking.*, reservation.reconcile) é o que decide
// quem consome cada evento.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}
