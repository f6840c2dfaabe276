package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parkadmin/service-payment/internal/adapter"
	"github.com/parkadmin/service-payment/internal/common/apperror"
	"github.com/parkadmin/service-payment/internal/common/events"
	"github.com/parkadmin/service-payment/internal/domain/booking"
	"github.com/parkadmin/service-payment/internal/domain/discount"
)

// amountToleranceCents is how far a client amount may drift from the server's.
const amountToleranceCents = 1

// BookingEventPublisher emits booking lifecycle events.
type BookingEventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, event events.BookingConfirmedEvent) error
}

// PaymentConfig holds the service settings that are not collaborators.
type PaymentConfig struct {
	Currency       string
	PublishTimeout time.Duration
}

// PaymentService orchestrates the paid booking use cases for events and spaces.
type PaymentService struct {
	bookables booking.BookableRepository
	bookings  booking.BookingRepository
	stripe    adapter.StripeAdapter
	engine    *discount.Engine
	publisher BookingEventPublisher
	cfg       PaymentConfig
	logger    *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	bookables booking.BookableRepository,
	bookings booking.BookingRepository,
	stripe adapter.StripeAdapter,
	engine *discount.Engine,
	publisher BookingEventPublisher,
	cfg PaymentConfig,
	logger *zap.Logger,
) *PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 3 * time.Second
	}
	return &PaymentService{
		bookables: bookables,
		bookings:  bookings,
		stripe:    stripe,
		engine:    engine,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// CreatePaymentIntent recomputes the charge server-side and opens a payment intent for it.
// Nothing is created at the provider unless every check passes.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, kind booking.Kind, entityID int64, req CreatePaymentIntentRequest) (*PaymentIntentDTO, error) {
	if req.Amount == nil {
		return nil, apperror.NewValidationError("amount is required")
	}

	entity, err := s.bookables.FindByID(ctx, kind, entityID)
	if err != nil {
		return nil, err
	}
	if !entity.RequiresPayment() {
		return nil, apperror.NewDomainError(fmt.Sprintf("%s is free, payment is not required", kind))
	}

	effective := req.AppliedDiscounts.percentages().CappedBy(entity.DiscountCeilings)
	result, err := s.engine.Calculate(entity.PriceCents, effective, entity.EarlyBirdDeadline)
	if err != nil {
		return nil, apperror.NewValidationError(err.Error())
	}

	if req.OriginalAmount != nil && absCents(discount.ToCents(*req.OriginalAmount)-entity.PriceCents) > amountToleranceCents {
		s.logger.Warn("client original amount differs from entity price",
			zap.String("entity_kind", string(kind)),
			zap.Int64("entity_id", entityID),
			zap.Float64("client_original_amount", *req.OriginalAmount),
			zap.Int64("price_cents", entity.PriceCents),
		)
	}

	if absCents(discount.ToCents(*req.Amount)-result.FinalCents) > amountToleranceCents {
		s.logger.Warn("amount mismatch rejected",
			zap.String("entity_kind", string(kind)),
			zap.Int64("entity_id", entityID),
			zap.Float64("client_amount", *req.Amount),
			zap.Int64("expected_cents", result.FinalCents),
		)
		return nil, apperror.NewAmountMismatchError(discount.FromCents(result.FinalCents), *req.Amount)
	}
	if result.FinalCents == 0 {
		return nil, apperror.NewDomainError("discounts cover the full price, payment is not required")
	}

	if entity.HasCapacityLimit() {
		active, err := s.bookings.CountActive(ctx, kind, entityID)
		if err != nil {
			return nil, fmt.Errorf("count active bookings: %w", err)
		}
		if active >= int64(entity.Capacity) {
			return nil, apperror.NewCapacityExceededError(entity.Capacity)
		}
	}

	email := booking.NormalizeEmail(req.CustomerData.Email)
	exists, err := s.bookings.ExistsActiveForEmail(ctx, kind, entityID, email)
	if err != nil {
		return nil, fmt.Errorf("check existing booking: %w", err)
	}
	if exists {
		return nil, apperror.NewDuplicateRegistrationError(email)
	}

	customer := booking.Customer{
		FullName: req.CustomerData.FullName,
		Email:    email,
		Phone:    req.CustomerData.Phone,
	}
	customerID, err := s.stripe.FindOrCreateCustomer(ctx, adapter.CustomerInput{
		Email: customer.Email,
		Name:  customer.FullName,
		Phone: customer.Phone,
	})
	if err != nil {
		s.logger.Error("failed to resolve stripe customer", zap.Error(err))
		return nil, err
	}

	metadata, err := intentMetadata{
		Kind:            kind,
		EntityID:        entityID,
		EntityTitle:     entity.Title,
		Customer:        customer,
		OriginalCents:   result.OriginalCents,
		FinalCents:      result.FinalCents,
		Breakdown:       result.BreakdownByName(),
		TotalPercentage: result.TotalPercentage,
	}.encode()
	if err != nil {
		return nil, err
	}

	pi, err := s.stripe.CreatePaymentIntent(ctx, adapter.CreateIntentInput{
		AmountCents:  result.FinalCents,
		Currency:     s.cfg.Currency,
		CustomerID:   customerID,
		Description:  fmt.Sprintf("%s: %s", kind.EntityLabel(), entity.Title),
		ReceiptEmail: customer.Email,
		Metadata:     metadata,
	})
	if err != nil {
		s.logger.Error("failed to create payment intent", zap.Error(err))
		return nil, err
	}

	s.logger.Info("payment intent created",
		zap.String("entity_kind", string(kind)),
		zap.Int64("entity_id", entityID),
		zap.String("payment_intent_id", pi.ID),
		zap.Int64("original_cents", result.OriginalCents),
		zap.Int64("final_cents", result.FinalCents),
		zap.Float64("total_discount_percentage", result.TotalPercentage),
	)

	return &PaymentIntentDTO{
		ClientSecret:            pi.ClientSecret,
		PaymentIntentID:         pi.ID,
		Amount:                  discount.FromCents(result.FinalCents),
		OriginalAmount:          discount.FromCents(result.OriginalCents),
		DiscountAmount:          discount.FromCents(result.DiscountCents),
		DiscountBreakdown:       result.BreakdownByName(),
		TotalDiscountPercentage: result.TotalPercentage,
		AppliedDiscounts:        result.AppliedDiscounts,
	}, nil
}

// ConfirmPayment records the booking for a succeeded payment intent. A repeated
// confirmation of the same intent yields a DuplicateConfirmation error, never a second row.
func (s *PaymentService) ConfirmPayment(ctx context.Context, kind booking.Kind, entityID int64, req ConfirmPaymentRequest) (*BookingDTO, error) {
	entity, err := s.bookables.FindByID(ctx, kind, entityID)
	if err != nil {
		return nil, err
	}

	pi, err := s.stripe.RetrievePaymentIntent(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if !pi.Succeeded() {
		return nil, apperror.NewPaymentNotCompletedError(string(pi.Status))
	}

	md, err := decodeIntentMetadata(pi.Metadata)
	if errors.Is(err, errMalformedBreakdown) {
		s.logger.Warn("payment intent has malformed discount breakdown, recording without it",
			zap.String("payment_intent_id", pi.ID),
			zap.Error(err),
		)
		err = nil
	}
	if err != nil || md.Kind != kind || md.EntityID != entityID {
		return nil, apperror.NewValidationError(fmt.Sprintf("payment %s does not belong to this %s", pi.ID, kind))
	}

	email := booking.NormalizeEmail(req.ParticipantData.Email)
	exists, err := s.bookings.ExistsForPayment(ctx, kind, entityID, email, pi.ID)
	if err != nil {
		return nil, fmt.Errorf("check existing confirmation: %w", err)
	}
	if exists {
		return nil, apperror.NewDuplicateConfirmationError(pi.ID)
	}

	b := booking.NewPaidBooking(booking.PaidBooking{
		Kind:     kind,
		EntityID: entityID,
		Customer: booking.Customer{
			FullName: req.ParticipantData.FullName,
			Email:    email,
			Phone:    req.ParticipantData.Phone,
		},
		AdditionalInfo:        req.ParticipantData.AdditionalInfo,
		PaymentAmountCents:    entity.PriceCents,
		AmountPaidCents:       amountPaid(pi),
		StripePaymentIntentID: pi.ID,
		StripeCustomerID:      pi.CustomerID,
	})
	if err := s.bookings.Save(ctx, b); err != nil {
		if errors.Is(err, booking.ErrDuplicateBooking) {
			return nil, apperror.NewDuplicateConfirmationError(pi.ID)
		}
		return nil, fmt.Errorf("save %s: %w", kind.BookingLabel(), err)
	}

	s.logger.Info("payment confirmed",
		zap.String("entity_kind", string(kind)),
		zap.Int64("entity_id", entityID),
		zap.String("booking_id", b.ID().String()),
		zap.String("payment_intent_id", pi.ID),
		zap.Int64("amount_paid_cents", b.AmountPaidCents()),
	)

	publishBookingConfirmed(ctx, s.publisher, s.cfg.PublishTimeout, s.logger, b, md)

	dto := toBookingDTO(b)
	return &dto, nil
}

// GetPaymentStatus reports the provider status of an intent and whether it was booked.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, kind booking.Kind, entityID int64, paymentIntentID string) (*PaymentStatusDTO, error) {
	pi, err := s.stripe.RetrievePaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, err
	}

	out := &PaymentStatusDTO{PaymentStatus: string(pi.Status)}
	b, err := s.bookings.FindByPaymentIntent(ctx, kind, entityID, paymentIntentID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return out, nil
		}
		return nil, err
	}

	dto := toBookingDTO(b)
	out.RegistrationExists = true
	out.Registration = &dto
	return out, nil
}

// ListBookings returns a page of bookings of an entity.
func (s *PaymentService) ListBookings(ctx context.Context, kind booking.Kind, entityID int64, page, limit int) ([]BookingDTO, int64, error) {
	if _, err := s.bookables.FindByID(ctx, kind, entityID); err != nil {
		return nil, 0, err
	}

	bookings, total, err := s.bookings.ListByEntity(ctx, kind, entityID, page, limit)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, b := range bookings {
		dtos[i] = toBookingDTO(b)
	}
	return dtos, total, nil
}

// GetPaymentStats aggregates revenue and payment status counts per entity kind.
func (s *PaymentService) GetPaymentStats(ctx context.Context) (map[string]KindStatsDTO, error) {
	out := make(map[string]KindStatsDTO, len(booking.Kinds))
	for _, kind := range booking.Kinds {
		revenue, counts, err := s.bookings.PaymentStats(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("payment stats for %s: %w", kind, err)
		}
		out[kind.Plural()] = KindStatsDTO{
			PaidRevenue:          discount.FromCents(revenue),
			CountByPaymentStatus: counts,
		}
	}
	return out, nil
}

// amountPaid prefers the amount actually received by the provider.
func amountPaid(pi *adapter.PaymentIntent) int64 {
	if pi.AmountReceivedCents > 0 {
		return pi.AmountReceivedCents
	}
	return pi.AmountCents
}

func absCents(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
