package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/reservation-engine/pkg/db/models"
	"github.com/angelmondragon/reservation-engine/pkg/enums"
)

type slotView struct {
	ID         uuid.UUID        `json:"id"`
	ProviderID uuid.UUID        `json:"provider_id"`
	StartTime  time.Time        `json:"start_time"`
	EndTime    time.Time        `json:"end_time"`
	PriceCents int64            `json:"price_cents"`
	Status     enums.SlotStatus `json:"status"`
	BookingID  *uuid.UUID       `json:"booking_id,omitempty"`
	BookedAt   *time.Time       `json:"booked_at,omitempty"`
}

func toSlotView(s models.TimeSlot) slotView {
	return slotView{
		ID:         s.ID,
		ProviderID: s.ProviderID,
		StartTime:  s.StartTime.UTC(),
		EndTime:    s.EndTime.UTC(),
		PriceCents: s.PriceCents,
		Status:     s.Status,
		BookingID:  s.BookingID,
		BookedAt:   s.BookedAt,
	}
}

func toSlotViews(rows []models.TimeSlot) []slotView {
	out := make([]slotView, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSlotView(row))
	}
	return out
}

type stockView struct {
	ProductID     uuid.UUID       `json:"product_id"`
	CurrentStock  int             `json:"current_stock"`
	ReservedStock int             `json:"reserved_stock"`
	Available     int             `json:"available"`
	Sellable      int             `json:"sellable"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toStockView(r models.StockRecord) stockView {
	return stockView{
		ProductID:     r.ProductID,
		CurrentStock:  r.CurrentStock,
		ReservedStock: r.ReservedStock,
		Available:     r.Available(),
		Sellable:      r.Sellable(),
		UnitCost:      r.UnitCost,
		UpdatedAt:     r.UpdatedAt,
	}
}

type adjustmentView struct {
	ID              uuid.UUID              `json:"id"`
	ProductID       uuid.UUID              `json:"product_id"`
	Type            enums.AdjustmentType   `json:"type"`
	Quantity        int                    `json:"quantity"`
	PreviousStock   int                    `json:"previous_stock"`
	NewStock        int                    `json:"new_stock"`
	Status          enums.AdjustmentStatus `json:"status"`
	Reason          string                 `json:"reason"`
	RequestedBy     uuid.UUID              `json:"requested_by"`
	ReviewedBy      *uuid.UUID             `json:"reviewed_by,omitempty"`
	RejectionReason *string                `json:"rejection_reason,omitempty"`
	NewUnitCost     *decimal.Decimal       `json:"new_unit_cost,omitempty"`
	ReviewedAt      *time.Time             `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

func toAdjustmentView(a models.StockAdjustment) adjustmentView {
	return adjustmentView{
		ID:              a.ID,
		ProductID:       a.ProductID,
		Type:            a.Type,
		Quantity:        a.Quantity,
		PreviousStock:   a.PreviousStock,
		NewStock:        a.NewStock,
		Status:          a.Status,
		Reason:          a.Reason,
		RequestedBy:     a.RequestedBy,
		ReviewedBy:      a.ReviewedBy,
		RejectionReason: a.RejectionReason,
		NewUnitCost:     a.NewUnitCost,
		ReviewedAt:      a.ReviewedAt,
		CreatedAt:       a.CreatedAt,
	}
}
