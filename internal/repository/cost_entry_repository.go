package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	accountingDomain "github.com/parkadmin/service-payment/internal/domain/accounting"
)

// CostEntryModel is the GORM model for the cost_entries table.
type CostEntryModel struct {
	ID                      uuid.UUID          `gorm:"type:uuid;primaryKey"`
	EntityKind              string             `gorm:"type:varchar(20);not null"`
	EntityID                int64              `gorm:"not null"`
	BookingID               *uuid.UUID         `gorm:"type:uuid"`
	PaymentIntentID         string             `gorm:"type:varchar(255);uniqueIndex;not null"`
	OriginalAmountCents     int64              `gorm:"not null"`
	FinalAmountCents        int64              `gorm:"not null"`
	DiscountAmountCents     int64              `gorm:"not null"`
	TotalDiscountPercentage float64            `gorm:"type:numeric(5,2);not null;default:0"`
	DiscountBreakdown       map[string]float64 `gorm:"type:jsonb;serializer:json;not null"`
	RecordedAt              time.Time          `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (CostEntryModel) TableName() string { return "cost_entries" }

// GormCostEntryRepository implements CostEntryRepository using GORM.
type GormCostEntryRepository struct {
	db *gorm.DB
}

// NewGormCostEntryRepository creates a new GormCostEntryRepository.
func NewGormCostEntryRepository(db *gorm.DB) *GormCostEntryRepository {
	return &GormCostEntryRepository{db: db}
}

// Save persists a cost entry.
func (r *GormCostEntryRepository) Save(ctx context.Context, e *accountingDomain.CostEntry) error {
	model := toCostEntryModel(e)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return accountingDomain.ErrAlreadyRecorded
		}
		return err
	}
	return nil
}

// List returns a page of cost entries.
func (r *GormCostEntryRepository) List(ctx context.Context, page, limit int) ([]*accountingDomain.CostEntry, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&CostEntryModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []CostEntryModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).Order("recorded_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]*accountingDomain.CostEntry, len(models))
	for i := range models {
		entries[i] = toCostEntryDomain(&models[i])
	}
	return entries, total, nil
}

func toCostEntryModel(e *accountingDomain.CostEntry) CostEntryModel {
	return CostEntryModel{
		ID:                      e.ID,
		EntityKind:              e.EntityKind,
		EntityID:                e.EntityID,
		BookingID:               e.BookingID,
		PaymentIntentID:         e.PaymentIntentID,
		OriginalAmountCents:     e.OriginalAmountCents,
		FinalAmountCents:        e.FinalAmountCents,
		DiscountAmountCents:     e.DiscountAmountCents,
		TotalDiscountPercentage: e.TotalDiscountPercentage,
		DiscountBreakdown:       e.DiscountBreakdown,
		RecordedAt:              e.RecordedAt,
	}
}

func toCostEntryDomain(m *CostEntryModel) *accountingDomain.CostEntry {
	return &accountingDomain.CostEntry{
		ID:                      m.ID,
		EntityKind:              m.EntityKind,
		EntityID:                m.EntityID,
		BookingID:               m.BookingID,
		PaymentIntentID:         m.PaymentIntentID,
		OriginalAmountCents:     m.OriginalAmountCents,
		FinalAmountCents:        m.FinalAmountCents,
		DiscountAmountCents:     m.DiscountAmountCents,
		TotalDiscountPercentage: m.TotalDiscountPercentage,
		DiscountBreakdown:       m.DiscountBreakdown,
		RecordedAt:              m.RecordedAt,
	}
}
