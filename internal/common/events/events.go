// Package events defines the topics, event types and payloads exchanged over Kafka.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicPaymentEvents = "payment.events"
)

// Event types.
const (
	PaymentBookingConfirmed = "payment.booking.confirmed"
)

// Source is the CloudEvent source of everything this service emits.
const Source = "service-payment"

// BookingConfirmedEvent is emitted once a paid booking is durably recorded.
type BookingConfirmedEvent struct {
	BookingID               uuid.UUID          `json:"booking_id"`
	EntityKind              string             `json:"entity_kind"`
	EntityID                int64              `json:"entity_id"`
	PaymentIntentID         string             `json:"payment_intent_id"`
	CustomerEmail           string             `json:"customer_email"`
	OriginalAmountCents     int64              `json:"original_amount_cents"`
	FinalAmountCents        int64              `json:"final_amount_cents"`
	TotalDiscountPercentage float64            `json:"total_discount_percentage"`
	DiscountBreakdown       map[string]float64 `json:"discount_breakdown"`
	ConfirmedAt             time.Time          `json:"confirmed_at"`
}
