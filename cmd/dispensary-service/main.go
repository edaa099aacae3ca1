package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/medflow/dispensary-backend/internal/dispensing/consumers"
	"github.com/medflow/dispensary-backend/internal/dispensing/events"
	"github.com/medflow/dispensary-backend/internal/dispensing/handler"
	"github.com/medflow/dispensary-backend/internal/dispensing/lock"
	"github.com/medflow/dispensary-backend/internal/dispensing/repository"
	"github.com/medflow/dispensary-backend/internal/dispensing/service"
	"github.com/medflow/dispensary-backend/pkg/config"
	"github.com/medflow/dispensary-backend/pkg/database"
	"github.com/medflow/dispensary-backend/pkg/httputil"
	"github.com/medflow/dispensary-backend/pkg/i18n"
	"github.com/medflow/dispensary-backend/pkg/logger"
	"github.com/medflow/dispensary-backend/pkg/messaging"
	"github.com/redis/go-redis/v9"
)

const serviceName = "dispensary-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(serviceName, cfg.Server.Environment, cfg.Server.LogLevel)
	log.Info().Msg("starting Dispensary Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Database.ApplySchema {
		if err := db.ApplySchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
	}

	// Initialize repositories
	ledger := repository.NewLedger(db)
	stockRepo := repository.NewStockRepository(db)
	prescriptionRepo := repository.NewPrescriptionRepository(db)
	dispensationRepo := repository.NewDispensationRepository(db)
	staffRepo := repository.NewStaffRepository(db)

	// Messaging is optional; without it dispenses still commit, events are dropped
	var (
		rmq       *messaging.RabbitMQ
		publisher *events.DispensaryEventPublisher
	)
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher, err = events.NewDispensaryEventPublisher(rmq, serviceName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}

		startConsumers := func(ctx context.Context) error {
			if err := rmq.DeclareDeadLetterQueue(serviceName); err != nil {
				return fmt.Errorf("declare dead letter queue: %w", err)
			}
			staffConsumer, err := consumers.NewStaffEventConsumer(rmq, staffRepo, log)
			if err != nil {
				return fmt.Errorf("create staff event consumer: %w", err)
			}
			return staffConsumer.Start(ctx)
		}

		if err := startConsumers(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start staff event consumer")
		}
		go rmq.Watch(ctx, startConsumers)
	}

	// Distributed lock
	var (
		locker lock.Locker = lock.Noop{}
		rdb    *redis.Client
	)
	if cfg.Dispensing.LockBackend == config.LockBackendRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			pingCancel()
			log.Fatal().Err(err).Str("address", cfg.Redis.Address).Msg("failed to connect to Redis")
		}
		pingCancel()

		locker = lock.NewRedis(rdb, cfg.Dispensing.LockTTL, cfg.Dispensing.LockWait)
		log.Info().Str("address", cfg.Redis.Address).Msg("using Redis dispensing locks")
	}

	// Initialize service
	fulfillmentService := service.NewFulfillmentService(
		ledger, stockRepo, prescriptionRepo, dispensationRepo,
		locker, publisher, service.OptionsFromConfig(cfg.Dispensing), log,
	)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.StaffContext)
	r.Use(i18n.Middleware)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Accept-Language", httputil.HeaderRequestID, httputil.HeaderStaffID, httputil.HeaderStaffName, httputil.HeaderStaffRole},
		ExposedHeaders:   []string{httputil.HeaderRequestID, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		if rdb != nil {
			health["redis"] = redisHealth(r.Context(), rdb)
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	// API routes
	r.Route("/api/v1/dispensary", handler.Routes(fulfillmentService, log))

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func redisHealth(ctx context.Context, rdb *redis.Client) map[string]string {
	status := map[string]string{
		"status": "up",
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}

	return status
}
