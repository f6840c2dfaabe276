package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parkadmin/service-payment/internal/adapter"
	"github.com/parkadmin/service-payment/internal/application"
	"github.com/parkadmin/service-payment/internal/common/auth"
	"github.com/parkadmin/service-payment/internal/common/database"
	"github.com/parkadmin/service-payment/internal/common/health"
	"github.com/parkadmin/service-payment/internal/common/kafka"
	"github.com/parkadmin/service-payment/internal/common/logger"
	"github.com/parkadmin/service-payment/internal/common/middleware"
	"github.com/parkadmin/service-payment/internal/config"
	"github.com/parkadmin/service-payment/internal/domain/discount"
	paymentEvents "github.com/parkadmin/service-payment/internal/events"
	"github.com/parkadmin/service-payment/internal/handler"
	"github.com/parkadmin/service-payment/internal/repository"
	"github.com/parkadmin/service-payment/migrations"
)

const serviceName = "service-payment"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting "+serviceName,
		zap.String("port", cfg.HTTPConfig.Port),
		zap.String("stripe_mode", cfg.StripeConfig.Mode),
		zap.Bool("kafka_enabled", cfg.KafkaConfig.Enabled()),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.IsDevelopment() {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
			zapLogger.Fatal("failed to enable uuid-ossp", zap.Error(err))
		}
		if err := db.AutoMigrate(repository.Models()...); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), migrations.FS, zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, cfg.JWTConfig.AccessTTL)

	// Initialize Stripe adapter
	var stripeAdapter adapter.StripeAdapter
	if cfg.StripeConfig.Mode == config.StripeModeMock {
		zapLogger.Warn("using mock Stripe adapter, no real charges will be made")
		stripeAdapter = adapter.NewMockStripeAdapter(cfg.StripeConfig.WebhookSecret, cfg.StripeConfig.MockAutoSucceed, zapLogger)
	} else {
		stripeAdapter = adapter.NewStripeClient(adapter.StripeConfig{
			SecretKey:     cfg.StripeConfig.SecretKey,
			WebhookSecret: cfg.StripeConfig.WebhookSecret,
			APIURL:        cfg.StripeConfig.APIURL,
			Timeout:       cfg.StripeConfig.Timeout,
			MaxRetries:    cfg.StripeConfig.MaxRetries,
		}, zapLogger)
	}

	// Initialize repositories
	bookableRepo := repository.NewGormBookableRepository(db)
	bookingRepo := repository.NewGormBookingRepository(db)
	costEntryRepo := repository.NewGormCostEntryRepository(db)

	// Initialize accounting dispatch
	accountingService := application.NewAccountingService(costEntryRepo, zapLogger)

	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	var publisher application.BookingEventPublisher
	if cfg.KafkaConfig.Enabled() {
		kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, zapLogger)
		defer kafkaProducer.Close()
		publisher = paymentEvents.NewKafkaPaymentPublisher(kafkaProducer, zapLogger)

		consumerGroupID := cfg.KafkaConfig.GroupPrefix + cfg.AccountingConfig.ConsumerGroup
		accountingConsumer := paymentEvents.NewAccountingConsumer(
			cfg.KafkaConfig.Brokers,
			consumerGroupID,
			accountingService,
			zapLogger,
		)
		defer accountingConsumer.Close()

		go func() {
			zapLogger.Info("starting accounting consumer", zap.String("group_id", consumerGroupID))
			if err := accountingConsumer.Start(consumerCtx); err != nil {
				if consumerCtx.Err() == nil {
					zapLogger.Error("accounting consumer failed", zap.Error(err))
				}
			}
		}()
	} else {
		zapLogger.Warn("KAFKA_BROKERS not set, cost accounting events will only be logged")
		publisher = paymentEvents.NewLogPaymentPublisher(zapLogger)
	}

	// Initialize application services
	paymentService := application.NewPaymentService(
		bookableRepo,
		bookingRepo,
		stripeAdapter,
		discount.NewEngine(time.Now),
		publisher,
		application.PaymentConfig{
			Currency:       cfg.StripeConfig.Currency,
			PublishTimeout: cfg.AccountingConfig.PublishTimeout,
		},
		zapLogger,
	)
	webhookService := application.NewWebhookService(
		bookableRepo,
		bookingRepo,
		stripeAdapter,
		publisher,
		cfg.AccountingConfig.PublishTimeout,
		zapLogger,
	)

	// Setup Gin router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(cfg.HTTPConfig.CORSOrigins...))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, serviceName)
	healthHandler.RegisterRoutes(router)

	// Register API routes
	api := router.Group("/api")
	handler.NewPaymentHandler(paymentService).RegisterRoutes(api)
	handler.NewWebhookHandler(webhookService).RegisterRoutes(api)
	handler.NewAdminPaymentHandler(paymentService, accountingService).RegisterRoutes(api, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.HTTPConfig.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTPConfig.ReadTimeout,
		WriteTimeout: cfg.HTTPConfig.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", cfg.HTTPConfig.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down " + serviceName + "...")

	// Cancel Kafka consumer
	consumerCancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info(serviceName + " stopped")
}
