package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockRecord tracks on-hand and held units per product.
type StockRecord struct {
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;primaryKey"`
	CurrentStock  int             `gorm:"column:current_stock;not null;default:0"`
	ReservedStock int             `gorm:"column:reserved_stock;not null;default:0"`
	UnitCost      decimal.Decimal `gorm:"column:unit_cost;type:numeric(12,4);not null;default:0"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (StockRecord) TableName() string { return "stock_records" }

// Available is the quantity that can still be reserved.
func (r StockRecord) Available() int {
	return r.CurrentStock - r.ReservedStock
}

// Sellable is Available floored at zero; this is what the catalog shows.
func (r StockRecord) Sellable() int {
	if avail := r.Available(); avail > 0 {
		return avail
	}
	return 0
}
