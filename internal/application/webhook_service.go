package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parkadmin/service-payment/internal/adapter"
	"github.com/parkadmin/service-payment/internal/common/apperror"
	"github.com/parkadmin/service-payment/internal/domain/booking"
)

// WebhookService reconciles provider callbacks with local bookings. It is the
// safety net for confirmations the client never sent.
type WebhookService struct {
	bookables      booking.BookableRepository
	bookings       booking.BookingRepository
	stripe         adapter.StripeAdapter
	publisher      BookingEventPublisher
	publishTimeout time.Duration
	logger         *zap.Logger
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(
	bookables booking.BookableRepository,
	bookings booking.BookingRepository,
	stripe adapter.StripeAdapter,
	publisher BookingEventPublisher,
	publishTimeout time.Duration,
	logger *zap.Logger,
) *WebhookService {
	if publishTimeout <= 0 {
		publishTimeout = 3 * time.Second
	}
	return &WebhookService{
		bookables:      bookables,
		bookings:       bookings,
		stripe:         stripe,
		publisher:      publisher,
		publishTimeout: publishTimeout,
		logger:         logger,
	}
}

// HandleEvent verifies and applies a webhook delivered for bookings of kind.
// Only a signature failure or an infrastructure error is returned; everything
// else is acknowledged so the provider does not retry.
func (s *WebhookService) HandleEvent(ctx context.Context, kind booking.Kind, payload []byte, signatureHeader string) error {
	event, err := s.stripe.ConstructWebhookEvent(payload, signatureHeader)
	if err != nil {
		s.logger.Warn("webhook signature verification failed",
			zap.String("entity_kind", string(kind)),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("webhook received",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.String("entity_kind", string(kind)),
	)

	switch event.Type {
	case adapter.EventPaymentIntentSucceeded:
		return s.handleSucceeded(ctx, kind, event)
	case adapter.EventPaymentIntentFailed:
		return s.handleFailed(ctx, kind, event)
	default:
		s.logger.Debug("ignoring unhandled webhook event type", zap.String("type", event.Type))
		return nil
	}
}

func (s *WebhookService) handleSucceeded(ctx context.Context, kind booking.Kind, event *adapter.WebhookEvent) error {
	pi, md, ok := s.intentFor(kind, event)
	if !ok {
		return nil
	}

	existing, err := s.bookings.FindByPaymentIntent(ctx, kind, md.EntityID, pi.ID)
	switch {
	case err == nil:
		changed, err := existing.ConfirmPayment(amountPaid(pi), pi.CustomerID)
		if err != nil {
			s.logger.Warn("not confirming booking from webhook",
				zap.String("booking_id", existing.ID().String()),
				zap.Error(err),
			)
			return nil
		}
		if !changed {
			return nil
		}
		if err := s.bookings.Update(ctx, existing); err != nil {
			return fmt.Errorf("confirm %s from webhook: %w", kind.BookingLabel(), err)
		}
		s.logger.Info("booking confirmed from webhook",
			zap.String("booking_id", existing.ID().String()),
			zap.String("payment_intent_id", pi.ID),
		)
		return nil
	case !errors.Is(err, apperror.ErrNotFound):
		return err
	}

	entity, err := s.bookables.FindByID(ctx, kind, md.EntityID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("webhook names an unknown entity, ignoring",
				zap.String("entity_kind", string(kind)),
				zap.Int64("entity_id", md.EntityID),
				zap.String("payment_intent_id", pi.ID),
			)
			return nil
		}
		return err
	}
	if md.Customer.Email == "" {
		s.logger.Warn("webhook intent carries no customer email, cannot create booking",
			zap.String("payment_intent_id", pi.ID),
		)
		return nil
	}

	b := booking.NewPaidBooking(booking.PaidBooking{
		Kind:                  kind,
		EntityID:              entity.ID,
		Customer:              md.Customer,
		PaymentAmountCents:    entity.PriceCents,
		AmountPaidCents:       amountPaid(pi),
		StripePaymentIntentID: pi.ID,
		StripeCustomerID:      pi.CustomerID,
	})
	if err := s.bookings.Save(ctx, b); err != nil {
		if errors.Is(err, booking.ErrDuplicateBooking) {
			s.logger.Info("booking already recorded by confirmation",
				zap.String("payment_intent_id", pi.ID),
			)
			return nil
		}
		return fmt.Errorf("create %s from webhook: %w", kind.BookingLabel(), err)
	}

	s.logger.Info("missed confirmation recovered from webhook",
		zap.String("booking_id", b.ID().String()),
		zap.String("payment_intent_id", pi.ID),
	)
	publishBookingConfirmed(ctx, s.publisher, s.publishTimeout, s.logger, b, md)
	return nil
}

func (s *WebhookService) handleFailed(ctx context.Context, kind booking.Kind, event *adapter.WebhookEvent) error {
	pi, md, ok := s.intentFor(kind, event)
	if !ok {
		return nil
	}

	s.logger.Warn("payment failed",
		zap.String("entity_kind", string(kind)),
		zap.Int64("entity_id", md.EntityID),
		zap.String("payment_intent_id", pi.ID),
		zap.String("customer_email", md.Customer.Email),
	)

	existing, err := s.bookings.FindByPaymentIntent(ctx, kind, md.EntityID, pi.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return err
	}
	if !existing.MarkPaymentFailed() {
		return nil
	}
	return s.bookings.Update(ctx, existing)
}

// intentFor extracts the intent and its metadata when the event concerns kind.
func (s *WebhookService) intentFor(kind booking.Kind, event *adapter.WebhookEvent) (*adapter.PaymentIntent, intentMetadata, bool) {
	if event.Intent == nil {
		return nil, intentMetadata{}, false
	}
	md, err := decodeIntentMetadata(event.Intent.Metadata)
	if errors.Is(err, errMalformedBreakdown) {
		s.logger.Warn("webhook intent has malformed discount breakdown, recording without it",
			zap.String("payment_intent_id", event.Intent.ID),
			zap.Error(err),
		)
		err = nil
	}
	if err != nil {
		s.logger.Debug("webhook intent has no booking metadata, ignoring",
			zap.String("payment_intent_id", event.Intent.ID),
		)
		return nil, intentMetadata{}, false
	}
	if md.Kind != kind {
		s.logger.Debug("webhook intent belongs to another entity kind, ignoring",
			zap.String("payment_intent_id", event.Intent.ID),
			zap.String("metadata_kind", string(md.Kind)),
		)
		return nil, intentMetadata{}, false
	}
	return event.Intent, md, true
}
