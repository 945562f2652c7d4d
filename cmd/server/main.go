package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rental-service/config"
	"rental-service/internal/api"
	"rental-service/internal/broker"
	"rental-service/internal/redisclient"
	"rental-service/internal/scheduler"
	"rental-service/internal/service"
	"rental-service/internal/store"
	"rental-service/internal/util"
	"rental-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "rental-service"

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, serviceName); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting rental service")

	tp, err := util.InitTracer(serviceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
		logger.Info("Schema applied")
	}

	checks := map[string]api.ReadinessCheck{"database": db.Ping}

	// Redis only backs the calendar cache and the booking lock, so the
	// service keeps running without it.
	var (
		cache  service.CalendarCache
		locker service.BookingLocker
	)
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, running without calendar cache and booking lock", zap.Error(err))
	} else {
		defer redisClient.Close()
		cache = redisClient
		locker = redisClient
		checks["redis"] = redisClient.Ping
		logger.Info("Redis connected")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicRental)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	eventPublisher := broker.NewEventPublisher(producer)

	availabilityService := service.NewAvailabilityService(db, cache,
		time.Duration(cfg.Business.CalendarCacheTTLSeconds)*time.Second)
	ledger := service.NewReservationLedger(db, availabilityService)
	customerService := service.NewCustomerService(db)
	paymentService := service.NewPaymentService(db, customerService, eventPublisher)
	saleService := service.NewSaleService(db, customerService, eventPublisher)
	rentalService := service.NewRentalService(db, availabilityService, ledger, customerService,
		paymentService, locker, eventPublisher, service.RentalConfig{
			ReleaseDatesOnCancel: cfg.Business.ReleaseDatesOnCancel,
			LockTTL:              time.Duration(cfg.Business.BookingLockTTLSeconds) * time.Second,
			MaxRentalDays:        cfg.Business.MaxRentalDays,
		})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	calendarConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicRental, cfg.Kafka.ConsumerGroup)
	calendarWorker := worker.NewCalendarWorker(calendarConsumer, db, availabilityService)
	go func() {
		if err := calendarWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Calendar worker error", zap.Error(err))
		}
	}()

	overdueScheduler, err := scheduler.NewScheduler(rentalService, cfg.Business.OverdueScanCron)
	if err != nil {
		logger.Fatal("Failed to create overdue scheduler", zap.Error(err))
	}
	overdueScheduler.Start()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(api.RequestLogger())
	handler := api.NewHandler(api.Services{
		Availability: availabilityService,
		Rentals:      rentalService,
		Customers:    customerService,
		Sales:        saleService,
		Payments:     paymentService,
	}, checks)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	overdueScheduler.Stop()
	workerCancel()
	if err := calendarWorker.Stop(); err != nil {
		logger.Warn("Error stopping calendar worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
