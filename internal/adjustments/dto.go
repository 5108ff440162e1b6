package adjustments

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/reservation-engine/pkg/enums"
	"github.com/angelmondragon/reservation-engine/pkg/pagination"
)

// WithdrawnReason is recorded when a requester cancels their own adjustment.
const WithdrawnReason = "withdrawn by requester"

const directSetReason = "direct stock set"

// RequestInput captures a manual stock correction.
type RequestInput struct {
	ProductID   uuid.UUID
	Type        enums.AdjustmentType
	Quantity    int
	Reason      string
	RequestedBy uuid.UUID
	NewUnitCost *decimal.Decimal
}

// ListFilter narrows ListAdjustments. After resumes from a previous page.
type ListFilter struct {
	ProductID *uuid.UUID
	Status    *enums.AdjustmentStatus
	Limit     int
	After     *pagination.Cursor
}
