//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/parkadmin/service-payment/internal/adapter"
	"github.com/parkadmin/service-payment/internal/application"
	"github.com/parkadmin/service-payment/internal/common/database"
	"github.com/parkadmin/service-payment/internal/common/events"
	"github.com/parkadmin/service-payment/internal/common/kafka"
	"github.com/parkadmin/service-payment/internal/domain/booking"
	"github.com/parkadmin/service-payment/internal/domain/discount"
	paymentEvents "github.com/parkadmin/service-payment/internal/events"
	"github.com/parkadmin/service-payment/internal/repository"
	"github.com/parkadmin/service-payment/migrations"
)

const webhookSecret = "whsec_integration"

// setupPostgres starts a PostgreSQL container and applies the embedded migrations.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "park_payments_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := database.PostgresConfig{
		Host:     host,
		Port:     port.Port(),
		User:     "test",
		Password: "test",
		DBName:   "park_payments_test",
		SSLMode:  "disable",
	}
	logger := zap.NewNop()

	db, err := database.Connect(cfg, logger)
	require.NoError(t, err, "PostgreSQL not ready for connections")
	require.NoError(t, database.RunMigrations(cfg.DatabaseURL(), migrations.FS, logger))
	return db
}

// setupKafka starts a single-node Kafka broker with the payment topic created.
func setupKafka(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()

	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")
	t.Cleanup(func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, brokers, events.TopicPaymentEvents)
	return brokers
}

// paymentStack holds the wired services on top of a real database.
type paymentStack struct {
	Bookables  *repository.GormBookableRepository
	Bookings   *repository.GormBookingRepository
	Stripe     *adapter.MockStripeAdapter
	Payments   *application.PaymentService
	Webhooks   *application.WebhookService
	Accounting *application.AccountingService
}

func newPaymentStack(db *gorm.DB, publisher application.BookingEventPublisher) *paymentStack {
	logger := zap.NewNop()
	s := &paymentStack{
		Bookables: repository.NewGormBookableRepository(db),
		Bookings:  repository.NewGormBookingRepository(db),
		Stripe:    adapter.NewMockStripeAdapter(webhookSecret, false, logger),
	}
	if publisher == nil {
		publisher = paymentEvents.NewLogPaymentPublisher(logger)
	}
	s.Accounting = application.NewAccountingService(repository.NewGormCostEntryRepository(db), logger)
	s.Payments = application.NewPaymentService(s.Bookables, s.Bookings, s.Stripe, discount.NewEngine(time.Now), publisher,
		application.PaymentConfig{Currency: "usd", PublishTimeout: 5 * time.Second}, logger)
	s.Webhooks = application.NewWebhookService(s.Bookables, s.Bookings, s.Stripe, publisher, 5*time.Second, logger)
	return s
}

// seedBookable inserts an entity and returns it with its generated ID.
func seedBookable(t *testing.T, s *paymentStack, b booking.Bookable) *booking.Bookable {
	t.Helper()
	require.NoError(t, s.Bookables.Create(context.Background(), &b))
	return &b
}

// paidIntent creates an intent through the service and marks it succeeded at the provider.
func paidIntent(t *testing.T, s *paymentStack, kind booking.Kind, entityID int64, amount float64, email string, d *application.AppliedDiscounts) string {
	t.Helper()
	dto, err := s.Payments.CreatePaymentIntent(context.Background(), kind, entityID, application.CreatePaymentIntentRequest{
		Amount:           &amount,
		CustomerData:     application.CustomerData{FullName: "Ana Park", Email: email},
		AppliedDiscounts: d,
	})
	require.NoError(t, err)
	require.NoError(t, s.Stripe.SetIntentStatus(dto.PaymentIntentID, adapter.IntentSucceeded))
	return dto.PaymentIntentID
}

func confirmRequest(piID, email string) application.ConfirmPaymentRequest {
	return application.ConfirmPaymentRequest{
		PaymentIntentID: piID,
		ParticipantData: application.ParticipantData{FullName: "Ana Park", Email: email},
	}
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     fmt.Sprintf("test-assert-%s", uuid.New().String()[:8]),
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	configs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		configs[i] = kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}
	}
	require.NoError(t, controllerConn.CreateTopics(configs...), "failed to create Kafka topics")

	time.Sleep(time.Second)
}
