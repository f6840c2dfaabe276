package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parkadmin/service-payment/internal/common/apperror"
	bookingDomain "github.com/parkadmin/service-payment/internal/domain/booking"
)

// BookingRecord holds the columns shared by event_registrations and space_reservations.
// The composite unique index makes a second booking for the same payment intent fail.
type BookingRecord struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	EntityID              int64      `gorm:"not null;index:,composite:entity_email;uniqueIndex:,composite:entity_intent"`
	FullName              string     `gorm:"type:varchar(255);not null"`
	Email                 string     `gorm:"type:varchar(255);not null;index:,composite:entity_email"`
	Phone                 string     `gorm:"type:varchar(50)"`
	AdditionalInfo        string     `gorm:"type:text"`
	Status                string     `gorm:"type:varchar(20);not null;default:'pending'"`
	PaymentStatus         string     `gorm:"type:varchar(20);not null;default:'pending'"`
	PaymentAmountCents    int64      `gorm:"not null;default:0"`
	AmountPaidCents       int64      `gorm:"not null;default:0"`
	StripePaymentIntentID string     `gorm:"type:varchar(255);uniqueIndex:,composite:entity_intent"`
	StripeCustomerID      string     `gorm:"type:varchar(255)"`
	ConfirmedAt           *time.Time `gorm:"type:timestamptz"`
	CreatedAt             time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt             time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

// EventRegistrationModel is the GORM model for the event_registrations table.
type EventRegistrationModel struct {
	BookingRecord
}

// TableName specifies the table name for GORM.
func (EventRegistrationModel) TableName() string { return "event_registrations" }

// SpaceReservationModel is the GORM model for the space_reservations table.
type SpaceReservationModel struct {
	BookingRecord
}

// TableName specifies the table name for GORM.
func (SpaceReservationModel) TableName() string { return "space_reservations" }

func bookingTable(kind bookingDomain.Kind) string {
	if kind == bookingDomain.KindSpace {
		return SpaceReservationModel{}.TableName()
	}
	return EventRegistrationModel{}.TableName()
}

// Models lists every GORM model, for development auto-migration.
func Models() []any {
	return []any{
		&EventModel{},
		&ReservableSpaceModel{},
		&EventRegistrationModel{},
		&SpaceReservationModel{},
		&CostEntryModel{},
	}
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GORM-based booking repository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) table(ctx context.Context, kind bookingDomain.Kind) *gorm.DB {
	return r.db.WithContext(ctx).Table(bookingTable(kind))
}

// Save inserts a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, b *bookingDomain.Booking) error {
	rec := toBookingRecord(b)
	if err := r.table(ctx, b.Kind()).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return bookingDomain.ErrDuplicateBooking
		}
		return err
	}
	return nil
}

// Update persists the mutable booking columns.
func (r *GormBookingRepository) Update(ctx context.Context, b *bookingDomain.Booking) error {
	result := r.table(ctx, b.Kind()).
		Where("id = ?", b.ID()).
		Updates(map[string]any{
			"status":             string(b.Status()),
			"payment_status":     string(b.PaymentStatus()),
			"amount_paid_cents":  b.AmountPaidCents(),
			"stripe_customer_id": b.StripeCustomerID(),
			"confirmed_at":       b.ConfirmedAt(),
			"updated_at":         b.UpdatedAt(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperror.NewNotFoundError(b.Kind().BookingLabel(), b.ID().String())
	}
	return nil
}

// CountActive counts non-cancelled bookings for an entity.
func (r *GormBookingRepository) CountActive(ctx context.Context, kind bookingDomain.Kind, entityID int64) (int64, error) {
	var count int64
	err := r.table(ctx, kind).
		Where("entity_id = ? AND status <> ?", entityID, string(bookingDomain.StatusCancelled)).
		Count(&count).Error
	return count, err
}

// ExistsActiveForEmail reports whether the customer already holds a non-cancelled booking.
func (r *GormBookingRepository) ExistsActiveForEmail(ctx context.Context, kind bookingDomain.Kind, entityID int64, email string) (bool, error) {
	var count int64
	err := r.table(ctx, kind).
		Where("entity_id = ? AND email = ? AND status <> ?", entityID, bookingDomain.NormalizeEmail(email), string(bookingDomain.StatusCancelled)).
		Count(&count).Error
	return count > 0, err
}

// ExistsForPayment reports whether the payment intent was already booked for the customer.
func (r *GormBookingRepository) ExistsForPayment(ctx context.Context, kind bookingDomain.Kind, entityID int64, email, paymentIntentID string) (bool, error) {
	var count int64
	err := r.table(ctx, kind).
		Where("entity_id = ? AND email = ? AND stripe_payment_intent_id = ?", entityID, bookingDomain.NormalizeEmail(email), paymentIntentID).
		Count(&count).Error
	return count > 0, err
}

// FindByPaymentIntent returns the booking for an entity and payment intent.
func (r *GormBookingRepository) FindByPaymentIntent(ctx context.Context, kind bookingDomain.Kind, entityID int64, paymentIntentID string) (*bookingDomain.Booking, error) {
	var rec BookingRecord
	err := r.table(ctx, kind).
		Where("entity_id = ? AND stripe_payment_intent_id = ?", entityID, paymentIntentID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError(kind.BookingLabel(), paymentIntentID)
		}
		return nil, err
	}
	return toBookingDomain(kind, &rec), nil
}

// ListByEntity returns a page of bookings for an entity.
func (r *GormBookingRepository) ListByEntity(ctx context.Context, kind bookingDomain.Kind, entityID int64, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.table(ctx, kind).Where("entity_id = ?", entityID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recs []BookingRecord
	offset := (page - 1) * limit
	if err := r.table(ctx, kind).
		Where("entity_id = ?", entityID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&recs).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*bookingDomain.Booking, len(recs))
	for i := range recs {
		out[i] = toBookingDomain(kind, &recs[i])
	}
	return out, total, nil
}

// PaymentStats returns paid revenue and counts by payment status.
func (r *GormBookingRepository) PaymentStats(ctx context.Context, kind bookingDomain.Kind) (int64, map[string]int64, error) {
	var revenue int64
	if err := r.table(ctx, kind).
		Where("payment_status = ?", string(bookingDomain.PaymentPaid)).
		Select("COALESCE(SUM(amount_paid_cents), 0)").
		Scan(&revenue).Error; err != nil {
		return 0, nil, err
	}

	type statusCount struct {
		PaymentStatus string
		Count         int64
	}
	var results []statusCount
	if err := r.table(ctx, kind).
		Select("payment_status, count(*) as count").
		Group("payment_status").
		Find(&results).Error; err != nil {
		return 0, nil, err
	}

	counts := make(map[string]int64, len(results))
	for _, sc := range results {
		counts[sc.PaymentStatus] = sc.Count
	}
	return revenue, counts, nil
}

func toBookingDomain(kind bookingDomain.Kind, rec *BookingRecord) *bookingDomain.Booking {
	return bookingDomain.Reconstitute(
		rec.ID,
		kind,
		rec.EntityID,
		bookingDomain.Customer{FullName: rec.FullName, Email: rec.Email, Phone: rec.Phone},
		rec.AdditionalInfo,
		bookingDomain.Status(rec.Status),
		bookingDomain.PaymentStatus(rec.PaymentStatus),
		rec.PaymentAmountCents,
		rec.AmountPaidCents,
		rec.StripePaymentIntentID,
		rec.StripeCustomerID,
		rec.ConfirmedAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
}

func toBookingRecord(b *bookingDomain.Booking) BookingRecord {
	c := b.Customer()
	return BookingRecord{
		ID:                    b.ID(),
		EntityID:              b.EntityID(),
		FullName:              c.FullName,
		Email:                 c.Email,
		Phone:                 c.Phone,
		AdditionalInfo:        b.AdditionalInfo(),
		Status:                string(b.Status()),
		PaymentStatus:         string(b.PaymentStatus()),
		PaymentAmountCents:    b.PaymentAmountCents(),
		AmountPaidCents:       b.AmountPaidCents(),
		StripePaymentIntentID: b.StripePaymentIntentID(),
		StripeCustomerID:      b.StripeCustomerID(),
		ConfirmedAt:           b.ConfirmedAt(),
		CreatedAt:             b.CreatedAt(),
		UpdatedAt:             b.UpdatedAt(),
	}
}
