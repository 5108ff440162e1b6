package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/reservation-engine/pkg/enums"
)

// StockAdjustment is a manual stock correction awaiting or past review.
type StockAdjustment struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID              `gorm:"column:product_id;type:uuid;not null;index"`
	Type            enums.AdjustmentType   `gorm:"column:type;type:varchar(16);not null"`
	Quantity        int                    `gorm:"column:quantity;not null"`
	PreviousStock   int                    `gorm:"column:previous_stock;not null"`
	NewStock        int                    `gorm:"column:new_stock;not null"`
	Status          enums.AdjustmentStatus `gorm:"column:status;type:varchar(16);not null;default:PENDING;index"`
	Reason          string                 `gorm:"column:reason;not null"`
	RequestedBy     uuid.UUID              `gorm:"column:requested_by;type:uuid;not null"`
	ReviewedBy      *uuid.UUID             `gorm:"column:reviewed_by;type:uuid"`
	RejectionReason *string                `gorm:"column:rejection_reason"`
	NewUnitCost     *decimal.Decimal       `gorm:"column:new_unit_cost;type:numeric(12,4)"`
	ReviewedAt      *time.Time             `gorm:"column:reviewed_at"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (StockAdjustment) TableName() string { return "stock_adjustments" }

func (a *StockAdjustment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
