package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockAdjustmentReviewedEvent is emitted when a pending adjustment is approved or rejected.
type StockAdjustmentReviewedEvent struct {
	AdjustmentID    uuid.UUID        `json:"adjustmentId"`
	ProductID       uuid.UUID        `json:"productId"`
	Type            string           `json:"type"`
	Quantity        int              `json:"quantity"`
	PreviousStock   int              `json:"previousStock"`
	NewStock        int              `json:"newStock"`
	Status          string           `json:"status"`
	ReviewedBy      uuid.UUID        `json:"reviewedBy"`
	RejectionReason *string          `json:"rejectionReason,omitempty"`
	NewUnitCost     *decimal.Decimal `json:"newUnitCost,omitempty"`
}

// StockSetDirectEvent is emitted when an administrator overwrites current stock.
type StockSetDirectEvent struct {
	ProductID     uuid.UUID       `json:"productId"`
	AdjustmentID  uuid.UUID       `json:"adjustmentId"`
	PreviousStock int             `json:"previousStock"`
	NewStock      int             `json:"newStock"`
	ReservedStock int             `json:"reservedStock"`
	UnitCost      decimal.Decimal `json:"unitCost"`
}
