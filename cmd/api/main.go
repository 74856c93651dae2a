package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mdtalam/Fitness-sub001/internal/config"
	"github.com/mdtalam/Fitness-sub001/internal/gateway"
	"github.com/mdtalam/Fitness-sub001/internal/infra/http/handler"
	internalMiddleware "github.com/mdtalam/Fitness-sub001/internal/infra/http/middleware"
	"github.com/mdtalam/Fitness-sub001/internal/infra/mongodb"
	"github.com/mdtalam/Fitness-sub001/internal/infra/omise"
	"github.com/mdtalam/Fitness-sub001/internal/infra/postgres"
	"github.com/mdtalam/Fitness-sub001/internal/infra/rabbitmq"
	redisInfra "github.com/mdtalam/Fitness-sub001/internal/infra/redis"
	"github.com/mdtalam/Fitness-sub001/internal/usecase"
)

func main() {
	// Configuração de Logs (Zerolog - estruturado e rápido)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}) // Log bonito no terminal

	// O erro é ignorado de propósito, pois em Produção (Docker/K8s)
	// não usamos arquivo .env, usamos variáveis reais do sistema.
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Arquivo .env não encontrado, usando variáveis de ambiente do sistema")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuração inválida")
	}
	ctx := context.Background()

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Não foi possível conectar ao banco de dados")
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Banco de dados não está respondendo")
	}
	if err := postgres.Migrate(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Falha ao aplicar migrações")
	}
	log.Info().Msg("✅ Conectado ao PostgreSQL com sucesso!")

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Não foi possível conectar ao Redis (idempotência e availability index degradados)")
	} else {
		log.Info().Msg("✅ Conectado ao Redis!")
	}

	rabbitConn, err := amqp.DialConfig(cfg.RabbitURL, amqp.Config{
		Properties: amqp.Table{
			"connection_name": "ReservationAPI_Publisher",
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Falha ao conectar no RabbitMQ (Eventos não serão enviados)")
	} else {
		defer rabbitConn.Close()
		log.Info().Msg("✅ Conectado ao RabbitMQ!")
	}

	var eventPublisher gateway.EventPublisher
	if rabbitConn != nil {
		ch, err := rabbitConn.Channel()
		if err != nil {
			log.Fatal().Err(err).Msg("Falha ao abrir canal RabbitMQ")
		}
		defer ch.Close()

		// Declarar Exchange (Tópico)
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
			log.Fatal().Err(err).Msg("Falha ao declarar Exchange")
		}

		eventPublisher = rabbitmq.NewRabbitMQPublisher(ch)
	}

	// Mongo só serve leitura do dashboard aqui; quem escreve no ledger é o worker.
	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("Não foi possível conectar ao MongoDB")
	}
	defer func() {
		if err := mongoClient.Disconnect(ctx); err != nil {
			log.Error().Err(err).Msg("Falha ao desconectar do MongoDB")
		}
	}()

	paymentGateway, err := omise.NewGateway(cfg.OmisePublicKey, cfg.OmiseSecretKey, cfg.GatewayTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Falha ao inicializar gateway de pagamento")
	}

	// Inicialização da Camada de Infraestrutura (Repositories)
	idempotencyRepo := redisInfra.NewIdempotencyRepository(redisClient)
	availabilityIndex := redisInfra.NewAvailabilityIndex(redisClient)
	slotRepository := postgres.NewSlotRepository(dbPool)
	holdRepository := postgres.NewHoldRepository(dbPool)
	intentRepository := postgres.NewPaymentIntentRepository(dbPool)
	bookingRepository := postgres.NewBookingRepository(dbPool)
	ledgerRepository := mongodb.NewLedgerRepository(mongoClient, cfg.MongoDB)
	// Unit of Work (Gerenciador de Transações)
	uow := postgres.NewUow(dbPool)

	// Inicialização da Camada de UseCase (Regras de Negócio)
	createSlotUseCase := usecase.NewCreateSlot(slotRepository, uow, eventPublisher)
	deleteSlotUseCase := usecase.NewDeleteSlot(slotRepository, uow, eventPublisher)
	listAvailabilityUseCase := usecase.NewListAvailability(availabilityIndex, slotRepository)
	placeHoldUseCase := usecase.NewPlaceHold(slotRepository, holdRepository, uow, eventPublisher, cfg.HoldTTL)
	openIntentUseCase := usecase.NewOpenIntent(holdRepository, intentRepository, paymentGateway)
	releaseHoldUseCase := usecase.NewReleaseHold(slotRepository, holdRepository, intentRepository, uow, eventPublisher)
	getReservationUseCase := usecase.NewGetReservation(holdRepository, intentRepository)
	processPaymentEventUseCase := usecase.NewProcessPaymentEvent(slotRepository, holdRepository, intentRepository, bookingRepository, uow, eventPublisher)
	expireHoldsUseCase := usecase.NewExpireHolds(slotRepository, holdRepository, intentRepository, uow, eventPublisher)
	cancelBookingUseCase := usecase.NewCancelBooking(bookingRepository, uow, eventPublisher)
	ledgerQueryUseCase := usecase.NewLedgerQuery(ledgerRepository)

	// Handlers
	slotHandler := handler.NewSlotHandler(createSlotUseCase, deleteSlotUseCase, listAvailabilityUseCase)
	reservationHandler := handler.NewReservationHandler(placeHoldUseCase, openIntentUseCase, releaseHoldUseCase, getReservationUseCase, cfg.Currency)
	webhookHandler := handler.NewWebhookHandler(paymentGateway, processPaymentEventUseCase)
	bookingHandler := handler.NewBookingHandler(cancelBookingUseCase, ledgerQueryUseCase)

	// Varredura de holds expirados: roda no próprio processo da API para
	// garantir que capacidade presa por TTL volte mesmo sem tráfego.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go runExpirySweep(sweepCtx, expireHoldsUseCase, cfg.SweepInterval)

	// Configuração do Servidor HTTP (Router Chi)
	router := chi.NewRouter()

	// Middlewares básicos
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer) // Evita crash se der panic
	router.Use(middleware.Timeout(60 * time.Second))
	idempotencyMiddleware := internalMiddleware.Idempotency(idempotencyRepo)

	// Rota de Health Check (para o Docker saber se estamos vivos)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("Falha ao escrever resposta de health check")
		}
	})

	// Rotas
	router.Post("/slots", slotHandler.Create)
	router.Delete("/slots/{slotID}", slotHandler.Delete)
	router.Get("/slots/available", slotHandler.ListAvailable)

	router.Group(func(r chi.Router) {
		r.Use(idempotencyMiddleware)
		r.Post("/reservations", reservationHandler.Create)
	})
	router.Get("/reservations/{holdID}", reservationHandler.Get)
	router.Delete("/reservations/{holdID}", reservationHandler.Cancel)
	router.Post("/reservations/{holdID}/intent", reservationHandler.RetryIntent)

	router.Post("/webhooks/payment", webhookHandler.HandlePayment)

	router.Post("/bookings/{bookingID}/cancel", bookingHandler.Cancel)
	router.Get("/ledger/bookings", bookingHandler.ListLedger)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Info().Msgf("🚀 Servidor rodando em %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Falha ao iniciar servidor HTTP")
		}
	}()

	// Graceful shutdown: deixa requests em voo terminarem antes de fechar
	// pool/conexões (os defers acima).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Sinal de shutdown recebido, encerrando...")

	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown forçado do servidor HTTP")
	}
}

// runExpirySweep libera capacidade presa por holds que estouraram o TTL.
// Cada tick processa um lote; a idempotência do sweep é garantida pelo
// UPDATE condicional no repositório, então ticks concorrentes são seguros.
func runExpirySweep(ctx context.Context, expireHolds *usecase.ExpireHoldsUseCase, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			expired, err := expireHolds.Execute(ctx, now.UTC())
			if err != nil {
				log.Error().Err(err).Msg("Falha na varredura de holds expirados")
				continue
			}
			if expired > 0 {
				log.Info().Int("expired", expired).Msg("Holds expirados liberados")
			}
		}
	}
}
