package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mdtalam/Fitness-sub001/internal/config"
	"github.com/mdtalam/Fitness-sub001/internal/domain"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
	"github.com/mdtalam/Fitness-sub001/internal/infra/mongodb"
	redisInfra "github.com/mdtalam/Fitness-sub001/internal/infra/redis"
	"github.com/mdtalam/Fitness-sub001/internal/usecase"
)

// snapshotTTL cobre slots que param de receber eventos (dia passou).
const snapshotTTL = 24 * time.Hour

// ReservationEvent é o envelope único dos eventos slot.* e booking.*.
// Os campos de slot viajam em todo evento justamente para o worker
// reescrever a projeção sem consultar o Postgres.
type ReservationEvent struct {
	SlotID    string `json:"slot_id"`
	TrainerID string `json:"trainer_id"`
	ClassID   string `json:"class_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Capacity  int32  `json:"capacity"`
	Remaining int32  `json:"remaining"`
	Reason    string `json:"reason"`

	// Presentes só em booking.*
	BookingID   string `json:"booking_id"`
	HoldID      string `json:"hold_id"`
	MemberID    string `json:"member_id"`
	PackageType string `json:"package_type"`
	AmountPaid  int64  `json:"amount_paid"`
	PaymentRef  string `json:"payment_ref"`
	OccurredAt  string `json:"occurred_at"`

	// Presentes só em reservation.reconcile
	ProviderRef string `json:"provider_ref"`
	EventRef    string `json:"event_ref"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Arquivo .env não encontrado, usando variáveis de ambiente")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuração inválida: %v", err)
	}

	clientOptions := options.Client().ApplyURI(cfg.MongoURI)
	mongoClient, err := mongo.Connect(clientOptions)
	if err != nil {
		log.Fatalf("Erro ao criar client MongoDB: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Printf("Erro ao desconectar Mongo: %v", err)
		}
	}()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatalf("Erro ao pingar MongoDB: %v", err)
	}
	log.Println("✅ Conectado ao MongoDB!")
	ledgerRepo := mongodb.NewLedgerRepository(mongoClient, cfg.MongoDB)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Erro ao conectar no Redis: %v", err)
	}
	log.Println("✅ Conectado ao Redis!")
	availabilityIndex := redisInfra.NewAvailabilityIndex(redisClient)

	conn, err := amqp.DialConfig(cfg.RabbitURL, amqp.Config{
		Properties: amqp.Table{
			"connection_name": "AvailabilityWorker_Consumer",
		},
	})
	if err != nil {
		log.Fatalf("Erro ao conectar no RabbitMQ: %v", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("Erro ao fechar conexão RabbitMQ: %v", err)
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("Erro ao abrir canal: %v", err)
	}
	defer func() {
		if err := ch.Close(); err != nil {
			log.Printf("Erro ao fechar canal RabbitMQ: %v", err)
		}
	}()

	// Prefetch 1: uma mensagem por vez até o Ack, preservando a ordem
	// relativa dos eventos do mesmo slot dentro deste consumidor.
	if err := ch.Qos(1, 0, false); err != nil {
		log.Fatalf("Erro ao configurar QoS: %v", err)
	}

	err = ch.ExchangeDeclare(
		usecase.ReservationExchange, // name
		"topic",                     // type
		true,                        // durable
		false,                       // auto-deleted
		false,                       // internal
		false,                       // no-wait
		nil,                         // arguments
	)
	if err != nil {
		log.Fatalf("Erro ao declarar exchange: %v", err)
	}

	q, err := ch.QueueDeclare(
		"availability_ledger_queue", // name
		true,                        // durable (sobrevive a restart do server)
		false,                       // delete when unused
		false,                       // exclusive
		false,                       // no-wait
		nil,                         // arguments
	)
	if err != nil {
		log.Fatalf("Erro ao declarar fila: %v", err)
	}

	for _, key := range []string{"slot.#", "booking.#", "reservation.reconcile"} {
		if err := ch.QueueBind(q.Name, key, usecase.ReservationExchange, false, nil); err != nil {
			log.Fatalf("Erro ao fazer bind da fila (%s): %v", key, err)
		}
	}

	// Ack manual: o _id determinístico no ledger absorve redelivery,
	// então nack+requeue em erro transitório é seguro.
	msgs, err := ch.Consume(
		q.Name,                // queue
		"availability_worker", // consumer tag
		false,                 // auto-ack
		false,                 // exclusive
		false,                 // no-local
		false,                 // no-wait
		nil,                   // args
	)
	if err != nil {
		log.Fatalf("Erro ao registrar consumidor: %v", err)
	}

	notifyClose := make(chan *amqp.Error)
	ch.NotifyClose(notifyClose)

	log.Printf(" [*] Worker iniciado. Aguardando mensagens na fila %s...", q.Name)

	go func() {
		for {
			select {
			case err := <-notifyClose:
				if err != nil {
					log.Printf("🔴 Canal RabbitMQ fechado: %v", err)
					os.Exit(1) // Docker/K8s reinicia o worker
				}
				return
			case d, ok := <-msgs:
				if !ok {
					log.Println("🔴 Canal de mensagens fechado.")
					os.Exit(1)
				}

				var event ReservationEvent
				if err := json.Unmarshal(d.Body, &event); err != nil {
					// Payload quebrado nunca vai ficar bom: descarta sem requeue.
					log.Printf("JSON inválido em %s, descartando: %v", d.RoutingKey, err)
					if err := d.Nack(false, false); err != nil {
						log.Printf("Erro ao enviar Nack (JSON inválido): %v", err)
					}
					continue
				}

				if err := handleEvent(d.RoutingKey, event, availabilityIndex, ledgerRepo); err != nil {
					log.Printf("Erro ao processar %s: %v", d.RoutingKey, err)
					if err := d.Nack(false, true); err != nil {
						log.Printf("Erro ao enviar Nack: %v", err)
					}
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("Erro ao enviar Ack: %v", err)
				}
			}
		}
	}()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)

	<-stopChan

	log.Println("Shutting down worker...")
}

func handleEvent(routingKey string, event ReservationEvent, index gateway.AvailabilityIndex, ledger gateway.BookingLedger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch {
	case routingKey == "reservation.reconcile":
		// Só alarme operacional; quem resolve é humano olhando o log.
		log.Printf(" [⚠️] Reconciliação necessária: provider_ref=%s event_ref=%s hold_id=%s", event.ProviderRef, event.EventRef, event.HoldID)
		return nil

	case strings.HasPrefix(routingKey, "slot."):
		return projectAvailability(ctx, index, event)

	case routingKey == "booking.confirmed":
		if err := projectAvailability(ctx, index, event); err != nil {
			return err
		}
		return appendLedger(ctx, ledger, event, "confirmed")

	case routingKey == "booking.cancelled":
		return appendLedger(ctx, ledger, event, "cancelled")
	}

	log.Printf("Routing key desconhecida %s, ignorando", routingKey)
	return nil
}

// projectAvailability reescreve o snapshot do slot com o estado que veio
// no evento. Last-writer-wins: com prefetch 1 o último evento do slot é
// o mais recente que este consumidor viu.
func projectAvailability(ctx context.Context, index gateway.AvailabilityIndex, event ReservationEvent) error {
	slotID, err := uuid.Parse(event.SlotID)
	if err != nil {
		log.Printf("slot_id inválido %q, descartando evento", event.SlotID)
		return nil
	}
	trainerID, err := uuid.Parse(event.TrainerID)
	if err != nil {
		log.Printf("trainer_id inválido %q, descartando evento", event.TrainerID)
		return nil
	}
	classID, _ := uuid.Parse(event.ClassID)

	startTime, err := time.Parse(time.RFC3339, event.StartTime)
	if err != nil {
		log.Printf("start_time inválido %q, descartando evento", event.StartTime)
		return nil
	}
	endTime, err := time.Parse(time.RFC3339, event.EndTime)
	if err != nil {
		log.Printf("end_time inválido %q, descartando evento", event.EndTime)
		return nil
	}

	return index.Save(ctx, domain.SlotAvailability{
		SlotID:    slotID,
		TrainerID: trainerID,
		ClassID:   classID,
		StartTime: startTime,
		EndTime:   endTime,
		Capacity:  event.Capacity,
		Remaining: event.Remaining,
		UpdatedAt: time.Now().UTC(),
	}, snapshotTTL)
}

func appendLedger(ctx context.Context, ledger gateway.BookingLedger, event ReservationEvent, kind string) error {
	bookingID, err := uuid.Parse(event.BookingID)
	if err != nil {
		log.Printf("booking_id inválido %q, descartando evento", event.BookingID)
		return nil
	}
	slotID, _ := uuid.Parse(event.SlotID)
	memberID, _ := uuid.Parse(event.MemberID)
	trainerID, _ := uuid.Parse(event.TrainerID)

	occurredAt := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, event.OccurredAt); err == nil {
		occurredAt = t
	}
	slotStart := time.Time{}
	if t, err := time.Parse(time.RFC3339, event.StartTime); err == nil {
		slotStart = t
	}

	if err := ledger.Append(ctx, gateway.LedgerEntry{
		BookingID:   bookingID,
		SlotID:      slotID,
		MemberID:    memberID,
		TrainerID:   trainerID,
		PackageType: event.PackageType,
		AmountPaid:  event.AmountPaid,
		PaymentRef:  event.PaymentRef,
		Kind:        kind,
		Reason:      event.Reason,
		SlotStart:   slotStart,
		OccurredAt:  occurredAt,
	}); err != nil {
		return err
	}

	log.Printf(" [✅] Ledger %s registrado para booking %s", kind, bookingID)
	return nil
}
