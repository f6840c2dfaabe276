// Package accounting records the cost breakdown of every confirmed paid booking.
package accounting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyRecorded is returned when a cost entry for the payment intent exists.
var ErrAlreadyRecorded = errors.New("cost entry already recorded for payment intent")

// CostEntry is the accounting record of one paid booking.
type CostEntry struct {
	ID                      uuid.UUID
	EntityKind              string
	EntityID                int64
	BookingID               *uuid.UUID
	PaymentIntentID         string
	OriginalAmountCents     int64
	FinalAmountCents        int64
	DiscountAmountCents     int64
	TotalDiscountPercentage float64
	DiscountBreakdown       map[string]float64
	RecordedAt              time.Time
}

// NewCostEntry builds an entry; the discount amount is derived from original and final.
func NewCostEntry(entityKind string, entityID int64, bookingID *uuid.UUID, paymentIntentID string,
	originalCents, finalCents int64, totalPct float64, breakdown map[string]float64) *CostEntry {
	if breakdown == nil {
		breakdown = map[string]float64{}
	}
	return &CostEntry{
		ID:                      uuid.New(),
		EntityKind:              entityKind,
		EntityID:                entityID,
		BookingID:               bookingID,
		PaymentIntentID:         paymentIntentID,
		OriginalAmountCents:     originalCents,
		FinalAmountCents:        finalCents,
		DiscountAmountCents:     max(originalCents-finalCents, 0),
		TotalDiscountPercentage: totalPct,
		DiscountBreakdown:       breakdown,
		RecordedAt:              time.Now().UTC(),
	}
}

// CostEntryRepository persists cost entries.
type CostEntryRepository interface {
	// Save inserts an entry, returning ErrAlreadyRecorded for a repeated payment intent.
	Save(ctx context.Context, e *CostEntry) error

	// List returns a page of entries, newest first.
	List(ctx context.Context, page, limit int) ([]*CostEntry, int64, error)
}
