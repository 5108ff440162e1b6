package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reasons reported by ReserveStock when nothing was reserved.
const (
	ReasonInsufficientStock = "insufficient_stock"
	ReasonNoStockRecord     = "no_stock_record"
)

// ReserveResult is the normal outcome of ReserveStock. Insufficient stock is
// reported here, not as an error.
type ReserveResult struct {
	Reserved  bool   `json:"reserved"`
	Reason    string `json:"reason,omitempty"`
	Available int    `json:"available"`
}

// DirectSetAudit describes an administrative stock overwrite for the audit trail.
type DirectSetAudit struct {
	ProductID     uuid.UUID
	PreviousStock int
	NewStock      int
	UnitCost      *decimal.Decimal
	Actor         uuid.UUID
}
