package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/reservation-engine/pkg/enums"
)

// TimeSlot is a bookable [start, end) interval owned by one provider.
type TimeSlot struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ProviderID uuid.UUID        `gorm:"column:provider_id;type:uuid;not null;uniqueIndex:ux_time_slots_provider_start,priority:1"`
	StartTime  time.Time        `gorm:"column:start_time;not null;uniqueIndex:ux_time_slots_provider_start,priority:2"`
	EndTime    time.Time        `gorm:"column:end_time;not null"`
	PriceCents int64            `gorm:"column:price_cents;not null;default:0"`
	Status     enums.SlotStatus `gorm:"column:status;type:varchar(16);not null;default:AVAILABLE"`
	BookingID  *uuid.UUID       `gorm:"column:booking_id;type:uuid;index"`
	BookedAt   *time.Time       `gorm:"column:booked_at"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (TimeSlot) TableName() string { return "time_slots" }

// BeforeCreate assigns an id when the caller did not.
func (s *TimeSlot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = enums.SlotStatusAvailable
	}
	return nil
}

// Overlaps reports whether the two slots share any instant.
func (s TimeSlot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}
