package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/parkadmin/service-payment/internal/domain/accounting"
	"github.com/parkadmin/service-payment/internal/domain/booking"
	"github.com/parkadmin/service-payment/internal/domain/discount"
)

// CustomerData identifies the paying customer.
type CustomerData struct {
	FullName string `json:"fullName" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"omitempty,max=50"`
}

// AppliedDiscounts are the percentages the client claims per category.
type AppliedDiscounts struct {
	Seniors    float64 `json:"discountSeniors" binding:"gte=0"`
	Students   float64 `json:"discountStudents" binding:"gte=0"`
	Families   float64 `json:"discountFamilies" binding:"gte=0"`
	Disability float64 `json:"discountDisability" binding:"gte=0"`
	EarlyBird  float64 `json:"discountEarlyBird" binding:"gte=0"`
}

func (d *AppliedDiscounts) percentages() discount.Percentages {
	if d == nil {
		return discount.Percentages{}
	}
	return discount.Percentages{
		Seniors:    d.Seniors,
		Students:   d.Students,
		Families:   d.Families,
		Disability: d.Disability,
		EarlyBird:  d.EarlyBird,
	}
}

// CreatePaymentIntentRequest is the DTO for starting a paid booking.
type CreatePaymentIntentRequest struct {
	Amount           *float64          `json:"amount" binding:"required,gte=0"`
	OriginalAmount   *float64          `json:"originalAmount" binding:"omitempty,gte=0"`
	CustomerData     CustomerData      `json:"customerData" binding:"required"`
	AppliedDiscounts *AppliedDiscounts `json:"appliedDiscounts"`
}

// PaymentIntentDTO carries the authoritative amounts for the client to render.
type PaymentIntentDTO struct {
	ClientSecret            string             `json:"clientSecret"`
	PaymentIntentID         string             `json:"paymentIntentId"`
	Amount                  float64            `json:"amount"`
	OriginalAmount          float64            `json:"originalAmount"`
	DiscountAmount          float64            `json:"discountAmount"`
	DiscountBreakdown       map[string]float64 `json:"discountBreakdown"`
	TotalDiscountPercentage float64            `json:"totalDiscountPercentage"`
	AppliedDiscounts        []string           `json:"appliedDiscounts"`
}

// ParticipantData identifies the person the booking is for.
type ParticipantData struct {
	FullName       string `json:"fullName" binding:"required,max=255"`
	Email          string `json:"email" binding:"required,email"`
	Phone          string `json:"phone" binding:"omitempty,max=50"`
	AdditionalInfo string `json:"additionalInfo" binding:"omitempty,max=2000"`
}

// ConfirmPaymentRequest is the DTO for recording a completed payment.
type ConfirmPaymentRequest struct {
	PaymentIntentID string          `json:"paymentIntentId" binding:"required"`
	ParticipantData ParticipantData `json:"participantData" binding:"required"`
}

// BookingDTO is the API view of a registration or reservation.
type BookingDTO struct {
	ID                    uuid.UUID  `json:"id"`
	EntityKind            string     `json:"entityKind"`
	EntityID              int64      `json:"entityId"`
	FullName              string     `json:"fullName"`
	Email                 string     `json:"email"`
	Phone                 string     `json:"phone,omitempty"`
	AdditionalInfo        string     `json:"additionalInfo,omitempty"`
	Status                string     `json:"status"`
	PaymentStatus         string     `json:"paymentStatus"`
	PaymentAmount         float64    `json:"paymentAmount"`
	AmountPaid            float64    `json:"amountPaid"`
	StripePaymentIntentID string     `json:"stripePaymentIntentId,omitempty"`
	StripeCustomerID      string     `json:"stripeCustomerId,omitempty"`
	ConfirmedAt           *time.Time `json:"confirmedAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// PaymentStatusDTO reports the provider state of an intent and its local booking.
type PaymentStatusDTO struct {
	PaymentStatus      string      `json:"paymentStatus"`
	RegistrationExists bool        `json:"registrationExists"`
	Registration       *BookingDTO `json:"registration"`
}

// KindStatsDTO aggregates payments for one entity kind.
type KindStatsDTO struct {
	PaidRevenue          float64          `json:"paidRevenue"`
	CountByPaymentStatus map[string]int64 `json:"countByPaymentStatus"`
}

// CostEntryDTO is the API view of an accounting record.
type CostEntryDTO struct {
	ID                      uuid.UUID          `json:"id"`
	EntityKind              string             `json:"entityKind"`
	EntityID                int64              `json:"entityId"`
	BookingID               *uuid.UUID         `json:"bookingId,omitempty"`
	PaymentIntentID         string             `json:"paymentIntentId"`
	OriginalAmount          float64            `json:"originalAmount"`
	FinalAmount             float64            `json:"finalAmount"`
	DiscountAmount          float64            `json:"discountAmount"`
	TotalDiscountPercentage float64            `json:"totalDiscountPercentage"`
	DiscountBreakdown       map[string]float64 `json:"discountBreakdown"`
	RecordedAt              time.Time          `json:"recordedAt"`
}

func toBookingDTO(b *booking.Booking) BookingDTO {
	c := b.Customer()
	return BookingDTO{
		ID:                    b.ID(),
		EntityKind:            string(b.Kind()),
		EntityID:              b.EntityID(),
		FullName:              c.FullName,
		Email:                 c.Email,
		Phone:                 c.Phone,
		AdditionalInfo:        b.AdditionalInfo(),
		Status:                string(b.Status()),
		PaymentStatus:         string(b.PaymentStatus()),
		PaymentAmount:         discount.FromCents(b.PaymentAmountCents()),
		AmountPaid:            discount.FromCents(b.AmountPaidCents()),
		StripePaymentIntentID: b.StripePaymentIntentID(),
		StripeCustomerID:      b.StripeCustomerID(),
		ConfirmedAt:           b.ConfirmedAt(),
		CreatedAt:             b.CreatedAt(),
		UpdatedAt:             b.UpdatedAt(),
	}
}

func toCostEntryDTO(e *accounting.CostEntry) CostEntryDTO {
	return CostEntryDTO{
		ID:                      e.ID,
		EntityKind:              e.EntityKind,
		EntityID:                e.EntityID,
		BookingID:               e.BookingID,
		PaymentIntentID:         e.PaymentIntentID,
		OriginalAmount:          discount.FromCents(e.OriginalAmountCents),
		FinalAmount:             discount.FromCents(e.FinalAmountCents),
		DiscountAmount:          discount.FromCents(e.DiscountAmountCents),
		TotalDiscountPercentage: e.TotalDiscountPercentage,
		DiscountBreakdown:       e.DiscountBreakdown,
		RecordedAt:              e.RecordedAt,
	}
}
