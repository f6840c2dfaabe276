// Package booking models bookable entities (events, reservable spaces) and the
// paid registrations/reservations made against them.
package booking

import "context"

// BookableRepository reads bookable entities owned by the admin system.
type BookableRepository interface {
	// FindByID returns the entity or a NotFound error.
	FindByID(ctx context.Context, kind Kind, id int64) (*Bookable, error)
}

// BookingRepository persists registrations and reservations.
type BookingRepository interface {
	// Save inserts a booking. It returns ErrDuplicateBooking when one already
	// exists for the same entity and payment intent.
	Save(ctx context.Context, b *Booking) error

	// Update persists status changes of an existing booking.
	Update(ctx context.Context, b *Booking) error

	// CountActive counts non-cancelled bookings of an entity.
	CountActive(ctx context.Context, kind Kind, entityID int64) (int64, error)

	// ExistsActiveForEmail reports whether a non-cancelled booking exists for the customer.
	ExistsActiveForEmail(ctx context.Context, kind Kind, entityID int64, email string) (bool, error)

	// ExistsForPayment reports whether a booking exists for customer and payment intent.
	ExistsForPayment(ctx context.Context, kind Kind, entityID int64, email, paymentIntentID string) (bool, error)

	// FindByPaymentIntent returns the booking created for a payment intent, or a NotFound error.
	FindByPaymentIntent(ctx context.Context, kind Kind, entityID int64, paymentIntentID string) (*Booking, error)

	// ListByEntity returns a page of bookings, newest first.
	ListByEntity(ctx context.Context, kind Kind, entityID int64, page, limit int) ([]*Booking, int64, error)

	// PaymentStats returns paid revenue and counts by payment status.
	PaymentStats(ctx context.Context, kind Kind) (paidRevenueCents int64, countByPaymentStatus map[string]int64, err error)
}
