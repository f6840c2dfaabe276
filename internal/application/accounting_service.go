package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parkadmin/service-payment/internal/common/events"
	"github.com/parkadmin/service-payment/internal/domain/accounting"
	"github.com/parkadmin/service-payment/internal/domain/booking"
)

// AccountingService records the cost breakdown behind confirmed bookings.
type AccountingService struct {
	repo   accounting.CostEntryRepository
	logger *zap.Logger
}

// NewAccountingService creates a new AccountingService.
func NewAccountingService(repo accounting.CostEntryRepository, logger *zap.Logger) *AccountingService {
	return &AccountingService{repo: repo, logger: logger}
}

// RecordCost stores a cost entry for a confirmed booking. Redelivered events for
// an already recorded payment intent are a no-op.
func (s *AccountingService) RecordCost(ctx context.Context, event events.BookingConfirmedEvent) error {
	var bookingID *uuid.UUID
	if event.BookingID != uuid.Nil {
		bookingID = &event.BookingID
	}

	entry := accounting.NewCostEntry(
		event.EntityKind,
		event.EntityID,
		bookingID,
		event.PaymentIntentID,
		event.OriginalAmountCents,
		event.FinalAmountCents,
		event.TotalDiscountPercentage,
		event.DiscountBreakdown,
	)

	if err := s.repo.Save(ctx, entry); err != nil {
		if errors.Is(err, accounting.ErrAlreadyRecorded) {
			s.logger.Info("cost entry already recorded, skipping",
				zap.String("payment_intent_id", event.PaymentIntentID),
			)
			return nil
		}
		return fmt.Errorf("record cost entry: %w", err)
	}

	s.logger.Info("cost entry recorded",
		zap.String("payment_intent_id", event.PaymentIntentID),
		zap.String("entity_kind", event.EntityKind),
		zap.Int64("entity_id", event.EntityID),
		zap.Int64("discount_cents", entry.DiscountAmountCents),
	)
	return nil
}

// ListCostEntries returns a page of recorded cost entries.
func (s *AccountingService) ListCostEntries(ctx context.Context, page, limit int) ([]CostEntryDTO, int64, error) {
	entries, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]CostEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toCostEntryDTO(e)
	}
	return dtos, total, nil
}

// publishBookingConfirmed is the best-effort accounting dispatch. It is bounded
// by timeout, survives cancellation of the request and never fails the caller.
func publishBookingConfirmed(
	ctx context.Context,
	publisher BookingEventPublisher,
	timeout time.Duration,
	logger *zap.Logger,
	b *booking.Booking,
	md intentMetadata,
) {
	if publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	original := md.OriginalCents
	if original == 0 {
		original = b.PaymentAmountCents()
	}
	final := md.FinalCents
	if final == 0 {
		final = b.AmountPaidCents()
	}

	confirmedAt := b.UpdatedAt()
	if at := b.ConfirmedAt(); at != nil {
		confirmedAt = *at
	}

	event := events.BookingConfirmedEvent{
		BookingID:               b.ID(),
		EntityKind:              string(b.Kind()),
		EntityID:                b.EntityID(),
		PaymentIntentID:         b.StripePaymentIntentID(),
		CustomerEmail:           b.Customer().Email,
		OriginalAmountCents:     original,
		FinalAmountCents:        final,
		TotalDiscountPercentage: md.TotalPercentage,
		DiscountBreakdown:       md.Breakdown,
		ConfirmedAt:             confirmedAt,
	}

	if err := publisher.PublishBookingConfirmed(pubCtx, event); err != nil {
		logger.Error("failed to dispatch cost accounting, booking is unaffected",
			zap.String("booking_id", b.ID().String()),
			zap.String("payment_intent_id", b.StripePaymentIntentID()),
			zap.Error(err),
		)
	}
}
