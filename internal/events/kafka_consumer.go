package events

import (
	"context"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/parkadmin/service-payment/internal/application"
	"github.com/parkadmin/service-payment/internal/common/events"
	"github.com/parkadmin/service-payment/internal/common/kafka"
)

// AccountingConsumer listens to payment events and records cost entries.
type AccountingConsumer struct {
	consumer   *kafka.Consumer
	accounting *application.AccountingService
	logger     *zap.Logger
}

// NewAccountingConsumer creates a new consumer for payment events.
func NewAccountingConsumer(
	brokers []string,
	groupID string,
	accounting *application.AccountingService,
	logger *zap.Logger,
) *AccountingConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicPaymentEvents, logger)
	return &AccountingConsumer{
		consumer:   consumer,
		accounting: accounting,
		logger:     logger,
	}
}

// Start begins consuming payment events. It blocks until the context is cancelled.
func (c *AccountingConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// handleMessage routes incoming Kafka messages to the appropriate handler.
func (c *AccountingConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return err
	}

	c.logger.Info("received payment event",
		zap.String("type", cloudEvent.Type),
		zap.String("id", cloudEvent.ID),
	)

	switch {
	case strings.EqualFold(cloudEvent.Type, events.PaymentBookingConfirmed):
		return c.handleBookingConfirmed(ctx, cloudEvent)

	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

// handleBookingConfirmed processes a BookingConfirmedEvent.
func (c *AccountingConsumer) handleBookingConfirmed(ctx context.Context, ce kafka.CloudEvent) error {
	var event events.BookingConfirmedEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse BookingConfirmedEvent data", zap.Error(err))
		return err
	}

	return c.accounting.RecordCost(ctx, event)
}

// Close closes the underlying Kafka consumer.
func (c *AccountingConsumer) Close() error {
	return c.consumer.Close()
}
