package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parkadmin/service-payment/internal/common/events"
	"github.com/parkadmin/service-payment/internal/common/kafka"
)

// eventProducer is the subset of kafka.Producer the publisher needs.
type eventProducer interface {
	PublishEvent(ctx context.Context, topic string, ce kafka.CloudEvent) error
}

// KafkaPaymentPublisher emits payment events as CloudEvents on the payment topic.
type KafkaPaymentPublisher struct {
	producer eventProducer
	logger   *zap.Logger
}

// NewKafkaPaymentPublisher creates a publisher on top of a Kafka producer.
func NewKafkaPaymentPublisher(producer eventProducer, logger *zap.Logger) *KafkaPaymentPublisher {
	return &KafkaPaymentPublisher{producer: producer, logger: logger}
}

// PublishBookingConfirmed emits a payment.booking.confirmed event keyed by payment intent.
func (p *KafkaPaymentPublisher) PublishBookingConfirmed(ctx context.Context, event events.BookingConfirmedEvent) error {
	ce, err := kafka.NewCloudEvent(events.Source, events.PaymentBookingConfirmed, event)
	if err != nil {
		return fmt.Errorf("failed to create cloud event: %w", err)
	}
	ce.Subject = event.PaymentIntentID

	if err := p.producer.PublishEvent(ctx, events.TopicPaymentEvents, ce); err != nil {
		return err
	}

	p.logger.Debug("booking confirmed event published",
		zap.String("event_id", ce.ID),
		zap.String("payment_intent_id", event.PaymentIntentID),
	)
	return nil
}

// LogPaymentPublisher only logs events. It is used when no brokers are configured.
type LogPaymentPublisher struct {
	logger *zap.Logger
}

// NewLogPaymentPublisher creates a logging publisher.
func NewLogPaymentPublisher(logger *zap.Logger) *LogPaymentPublisher {
	return &LogPaymentPublisher{logger: logger}
}

// PublishBookingConfirmed logs the event instead of sending it.
func (p *LogPaymentPublisher) PublishBookingConfirmed(_ context.Context, event events.BookingConfirmedEvent) error {
	p.logger.Info("kafka disabled, booking confirmed event not dispatched",
		zap.String("booking_id", event.BookingID.String()),
		zap.String("payment_intent_id", event.PaymentIntentID),
		zap.Int64("original_amount_cents", event.OriginalAmountCents),
		zap.Int64("final_amount_cents", event.FinalAmountCents),
	)
	return nil
}
