package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parkadmin/service-payment/internal/domain/discount"
)

// Kind distinguishes the two bookable entity types.
type Kind string

const (
	KindEvent Kind = "event"
	KindSpace Kind = "space"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindEvent, KindSpace}

// ParseKind accepts the singular or route (plural) form.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "event", "events":
		return KindEvent, nil
	case "space", "spaces":
		return KindSpace, nil
	}
	return "", fmt.Errorf("unknown bookable kind %q", s)
}

// Plural is the route segment for the kind.
func (k Kind) Plural() string { return string(k) + "s" }

// EntityLabel names the bookable entity in messages.
func (k Kind) EntityLabel() string {
	if k == KindSpace {
		return "Reservable space"
	}
	return "Event"
}

// BookingLabel names the booking record in messages.
func (k Kind) BookingLabel() string {
	if k == KindSpace {
		return "reservation"
	}
	return "registration"
}

// Bookable is an event or reservable space that may be paid for.
type Bookable struct {
	ID                int64
	Kind              Kind
	Title             string
	PriceCents        int64
	IsFree            bool
	Capacity          int
	DiscountCeilings  discount.Percentages
	EarlyBirdDeadline *time.Time
}

// RequiresPayment reports whether the payment flow applies.
func (b *Bookable) RequiresPayment() bool {
	return !b.IsFree && b.PriceCents > 0
}

// HasCapacityLimit reports whether bookings are limited.
func (b *Bookable) HasCapacityLimit() bool {
	return b.Capacity > 0
}

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus tracks the charge behind a booking.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// ErrDuplicateBooking is returned by repositories when a booking for the same
// entity and payment intent already exists.
var ErrDuplicateBooking = errors.New("booking already exists for payment intent")

// Customer identifies the person booking.
type Customer struct {
	FullName string
	Email    string
	Phone    string
}

// NormalizeEmail lowercases and trims an email for comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Booking is a registration (event) or reservation (space).
type Booking struct {
	id                    uuid.UUID
	kind                  Kind
	entityID              int64
	customer              Customer
	additionalInfo        string
	status                Status
	paymentStatus         PaymentStatus
	paymentAmountCents    int64
	amountPaidCents       int64
	stripePaymentIntentID string
	stripeCustomerID      string
	confirmedAt           *time.Time
	createdAt             time.Time
	updatedAt             time.Time
}

// PaidBooking holds the data needed to record a paid booking.
type PaidBooking struct {
	Kind                  Kind
	EntityID              int64
	Customer              Customer
	AdditionalInfo        string
	PaymentAmountCents    int64
	AmountPaidCents       int64
	StripePaymentIntentID string
	StripeCustomerID      string
}

// NewPaidBooking creates a booking that is already confirmed and paid.
func NewPaidBooking(p PaidBooking) *Booking {
	now := time.Now().UTC()
	p.Customer.Email = NormalizeEmail(p.Customer.Email)
	return &Booking{
		id:                    uuid.New(),
		kind:                  p.Kind,
		entityID:              p.EntityID,
		customer:              p.Customer,
		additionalInfo:        p.AdditionalInfo,
		status:                StatusConfirmed,
		paymentStatus:         PaymentPaid,
		paymentAmountCents:    p.PaymentAmountCents,
		amountPaidCents:       p.AmountPaidCents,
		stripePaymentIntentID: p.StripePaymentIntentID,
		stripeCustomerID:      p.StripeCustomerID,
		confirmedAt:           &now,
		createdAt:             now,
		updatedAt:             now,
	}
}

// --- Getters ---

func (b *Booking) ID() uuid.UUID                 { return b.id }
func (b *Booking) Kind() Kind                    { return b.kind }
func (b *Booking) EntityID() int64               { return b.entityID }
func (b *Booking) Customer() Customer            { return b.customer }
func (b *Booking) AdditionalInfo() string        { return b.additionalInfo }
func (b *Booking) Status() Status                { return b.status }
func (b *Booking) PaymentStatus() PaymentStatus  { return b.paymentStatus }
func (b *Booking) PaymentAmountCents() int64     { return b.paymentAmountCents }
func (b *Booking) AmountPaidCents() int64        { return b.amountPaidCents }
func (b *Booking) StripePaymentIntentID() string { return b.stripePaymentIntentID }
func (b *Booking) StripeCustomerID() string      { return b.stripeCustomerID }
func (b *Booking) ConfirmedAt() *time.Time       { return b.confirmedAt }
func (b *Booking) CreatedAt() time.Time          { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time          { return b.updatedAt }
func (b *Booking) IsConfirmed() bool             { return b.status == StatusConfirmed }

// --- Behavior ---

// ConfirmPayment marks the booking confirmed and paid. It returns false when the
// booking was already confirmed and paid, so callers can skip a write.
func (b *Booking) ConfirmPayment(amountPaidCents int64, stripeCustomerID string) (bool, error) {
	if b.status == StatusCancelled {
		return false, fmt.Errorf("cannot confirm a cancelled %s", b.kind.BookingLabel())
	}
	if b.status == StatusConfirmed && b.paymentStatus == PaymentPaid {
		return false, nil
	}
	now := time.Now().UTC()
	b.status = StatusConfirmed
	b.paymentStatus = PaymentPaid
	b.amountPaidCents = amountPaidCents
	if b.stripeCustomerID == "" {
		b.stripeCustomerID = stripeCustomerID
	}
	b.confirmedAt = &now
	b.updatedAt = now
	return true, nil
}

// MarkPaymentFailed records a failed charge on a booking that is not yet paid.
// Capacity and status are left untouched.
func (b *Booking) MarkPaymentFailed() bool {
	if b.paymentStatus == PaymentPaid || b.paymentStatus == PaymentFailed {
		return false
	}
	b.paymentStatus = PaymentFailed
	b.updatedAt = time.Now().UTC()
	return true
}

// --- Reconstitution ---

// Reconstitute rebuilds a Booking from persisted data.
func Reconstitute(
	id uuid.UUID,
	kind Kind,
	entityID int64,
	customer Customer,
	additionalInfo string,
	status Status,
	paymentStatus PaymentStatus,
	paymentAmountCents, amountPaidCents int64,
	stripePaymentIntentID, stripeCustomerID string,
	confirmedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:                    id,
		kind:                  kind,
		entityID:              entityID,
		customer:              customer,
		additionalInfo:        additionalInfo,
		status:                status,
		paymentStatus:         paymentStatus,
		paymentAmountCents:    paymentAmountCents,
		amountPaidCents:       amountPaidCents,
		stripePaymentIntentID: stripePaymentIntentID,
		stripeCustomerID:      stripeCustomerID,
		confirmedAt:           confirmedAt,
		createdAt:             createdAt,
		updatedAt:             updatedAt,
	}
}
