package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/parkadmin/service-payment/internal/common/apperror"
	bookingDomain "github.com/parkadmin/service-payment/internal/domain/booking"
	"github.com/parkadmin/service-payment/internal/domain/discount"
)

// BookableRecord holds the columns shared by the events and reservable_spaces tables.
type BookableRecord struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement"`
	Title              string     `gorm:"type:varchar(255);not null"`
	PriceCents         int64      `gorm:"not null;default:0"`
	IsFree             bool       `gorm:"not null;default:false"`
	Capacity           int        `gorm:"not null;default:0"`
	DiscountSeniors    float64    `gorm:"type:numeric(5,2);not null;default:0"`
	DiscountStudents   float64    `gorm:"type:numeric(5,2);not null;default:0"`
	DiscountFamilies   float64    `gorm:"type:numeric(5,2);not null;default:0"`
	DiscountDisability float64    `gorm:"type:numeric(5,2);not null;default:0"`
	DiscountEarlyBird  float64    `gorm:"type:numeric(5,2);not null;default:0"`
	EarlyBirdDeadline  *time.Time `gorm:"type:timestamptz"`
	CreatedAt          time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt          time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

// EventModel is the GORM model for the events table.
type EventModel struct {
	BookableRecord
}

// TableName specifies the table name for GORM.
func (EventModel) TableName() string { return "events" }

// ReservableSpaceModel is the GORM model for the reservable_spaces table.
type ReservableSpaceModel struct {
	BookableRecord
}

// TableName specifies the table name for GORM.
func (ReservableSpaceModel) TableName() string { return "reservable_spaces" }

func bookableTable(kind bookingDomain.Kind) string {
	if kind == bookingDomain.KindSpace {
		return ReservableSpaceModel{}.TableName()
	}
	return EventModel{}.TableName()
}

// GormBookableRepository implements BookableRepository using GORM.
type GormBookableRepository struct {
	db *gorm.DB
}

// NewGormBookableRepository creates a new GormBookableRepository.
func NewGormBookableRepository(db *gorm.DB) *GormBookableRepository {
	return &GormBookableRepository{db: db}
}

// FindByID returns the event or space with the given id.
func (r *GormBookableRepository) FindByID(ctx context.Context, kind bookingDomain.Kind, id int64) (*bookingDomain.Bookable, error) {
	var rec BookableRecord
	err := r.db.WithContext(ctx).Table(bookableTable(kind)).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError(kind.EntityLabel(), strconv.FormatInt(id, 10))
		}
		return nil, err
	}
	return toBookableDomain(kind, &rec), nil
}

// Create inserts a bookable entity. The admin system owns these rows; this is
// used for seeding and tests.
func (r *GormBookableRepository) Create(ctx context.Context, b *bookingDomain.Bookable) error {
	rec := toBookableRecord(b)
	if err := r.db.WithContext(ctx).Table(bookableTable(b.Kind)).Create(&rec).Error; err != nil {
		return err
	}
	b.ID = rec.ID
	return nil
}

func toBookableDomain(kind bookingDomain.Kind, rec *BookableRecord) *bookingDomain.Bookable {
	return &bookingDomain.Bookable{
		ID:         rec.ID,
		Kind:       kind,
		Title:      rec.Title,
		PriceCents: rec.PriceCents,
		IsFree:     rec.IsFree,
		Capacity:   rec.Capacity,
		DiscountCeilings: discount.Percentages{
			Seniors:    rec.DiscountSeniors,
			Students:   rec.DiscountStudents,
			Families:   rec.DiscountFamilies,
			Disability: rec.DiscountDisability,
			EarlyBird:  rec.DiscountEarlyBird,
		},
		EarlyBirdDeadline: rec.EarlyBirdDeadline,
	}
}

func toBookableRecord(b *bookingDomain.Bookable) BookableRecord {
	now := time.Now().UTC()
	return BookableRecord{
		ID:                 b.ID,
		Title:              b.Title,
		PriceCents:         b.PriceCents,
		IsFree:             b.IsFree,
		Capacity:           b.Capacity,
		DiscountSeniors:    b.DiscountCeilings.Seniors,
		DiscountStudents:   b.DiscountCeilings.Students,
		DiscountFamilies:   b.DiscountCeilings.Families,
		DiscountDisability: b.DiscountCeilings.Disability,
		DiscountEarlyBird:  b.DiscountCeilings.EarlyBird,
		EarlyBirdDeadline:  b.EarlyBirdDeadline,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
