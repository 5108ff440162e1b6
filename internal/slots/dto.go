package slots

import (
	"time"

	"github.com/angelmondragon/reservation-engine/pkg/enums"
)

// Block is a coarse availability window to be sliced into slots.
type Block struct {
	Start           time.Time `json:"start_time" validate:"required"`
	End             time.Time `json:"end_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
	PriceCents      *int64    `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
}

// ListFilter narrows ListSlots. From and To must be supplied together.
type ListFilter struct {
	From   *time.Time
	To     *time.Time
	Status *enums.SlotStatus
}

// Policy bounds slot generation.
type Policy struct {
	MinDuration time.Duration
	MaxHorizon  time.Duration
}

const timeLayout = time.RFC3339
