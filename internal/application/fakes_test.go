package application

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parkadmin/service-payment/internal/common/apperror"
	"github.com/parkadmin/service-payment/internal/common/events"
	"github.com/parkadmin/service-payment/internal/domain/accounting"
	"github.com/parkadmin/service-payment/internal/domain/booking"
)

type memBookableRepo struct {
	mu   sync.Mutex
	rows map[booking.Kind]map[int64]*booking.Bookable
	next int64
}

func newMemBookableRepo() *memBookableRepo {
	return &memBookableRepo{rows: map[booking.Kind]map[int64]*booking.Bookable{
		booking.KindEvent: {},
		booking.KindSpace: {},
	}}
}

func (r *memBookableRepo) add(b booking.Bookable) *booking.Bookable {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	b.ID = r.next
	r.rows[b.Kind][b.ID] = &b
	return &b
}

func (r *memBookableRepo) FindByID(_ context.Context, kind booking.Kind, id int64) (*booking.Bookable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[kind][id]
	if !ok {
		return nil, apperror.NewNotFoundError(kind.EntityLabel(), strconv.FormatInt(id, 10))
	}
	cp := *b
	return &cp, nil
}

// memBookingRepo enforces the (entity, payment intent) uniqueness the database index provides.
type memBookingRepo struct {
	mu   sync.Mutex
	rows []*booking.Booking
}

func (r *memBookingRepo) Save(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Kind() == b.Kind() && row.EntityID() == b.EntityID() &&
			b.StripePaymentIntentID() != "" && row.StripePaymentIntentID() == b.StripePaymentIntentID() {
			return booking.ErrDuplicateBooking
		}
	}
	cp := *b
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memBookingRepo) Update(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, row := range r.rows {
		if row.ID() == b.ID() {
			cp := *b
			r.rows[i] = &cp
			return nil
		}
	}
	return apperror.NewNotFoundError(b.Kind().BookingLabel(), b.ID().String())
}

func (r *memBookingRepo) CountActive(_ context.Context, kind booking.Kind, entityID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.Kind() == kind && row.EntityID() == entityID && row.Status() != booking.StatusCancelled {
			n++
		}
	}
	return n, nil
}

func (r *memBookingRepo) ExistsActiveForEmail(_ context.Context, kind booking.Kind, entityID int64, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Kind() == kind && row.EntityID() == entityID && row.Status() != booking.StatusCancelled &&
			row.Customer().Email == booking.NormalizeEmail(email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memBookingRepo) ExistsForPayment(_ context.Context, kind booking.Kind, entityID int64, email, paymentIntentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Kind() == kind && row.EntityID() == entityID &&
			row.Customer().Email == booking.NormalizeEmail(email) &&
			row.StripePaymentIntentID() == paymentIntentID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memBookingRepo) FindByPaymentIntent(_ context.Context, kind booking.Kind, entityID int64, paymentIntentID string) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Kind() == kind && row.EntityID() == entityID && row.StripePaymentIntentID() == paymentIntentID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFoundError(kind.BookingLabel(), paymentIntentID)
}

func (r *memBookingRepo) ListByEntity(_ context.Context, kind booking.Kind, entityID int64, page, limit int) ([]*booking.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*booking.Booking
	for _, row := range r.rows {
		if row.Kind() == kind && row.EntityID() == entityID {
			matched = append(matched, row)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt().After(matched[j].CreatedAt()) })
	total := int64(len(matched))
	start := min((page-1)*limit, len(matched))
	end := min(start+limit, len(matched))
	return matched[start:end], total, nil
}

func (r *memBookingRepo) PaymentStats(_ context.Context, kind booking.Kind) (int64, map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var revenue int64
	counts := map[string]int64{}
	for _, row := range r.rows {
		if row.Kind() != kind {
			continue
		}
		counts[string(row.PaymentStatus())]++
		if row.PaymentStatus() == booking.PaymentPaid {
			revenue += row.AmountPaidCents()
		}
	}
	return revenue, counts, nil
}

func (r *memBookingRepo) all() []*booking.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*booking.Booking(nil), r.rows...)
}

type memCostEntryRepo struct {
	mu      sync.Mutex
	entries []*accounting.CostEntry
}

func (r *memCostEntryRepo) Save(_ context.Context, e *accounting.CostEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.PaymentIntentID == e.PaymentIntentID {
			return accounting.ErrAlreadyRecorded
		}
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *memCostEntryRepo) List(_ context.Context, page, limit int) ([]*accounting.CostEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := int64(len(r.entries))
	start := min((page-1)*limit, len(r.entries))
	end := min(start+limit, len(r.entries))
	return r.entries[start:end], total, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.BookingConfirmedEvent
	err    error
	delay  time.Duration
}

func (p *recordingPublisher) PublishBookingConfirmed(ctx context.Context, event events.BookingConfirmedEvent) error {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []events.BookingConfirmedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.BookingConfirmedEvent(nil), p.events...)
}

func pendingBooking(kind booking.Kind, entityID int64, email, paymentIntentID string, status booking.Status) *booking.Booking {
	now := time.Now().UTC()
	return booking.Reconstitute(
		uuid.New(), kind, entityID,
		booking.Customer{FullName: "Existing Customer", Email: email},
		"", status, booking.PaymentPending,
		0, 0, paymentIntentID, "", nil, now, now,
	)
}
