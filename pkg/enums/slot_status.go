package enums

import "fmt"

// SlotStatus maps to the slot_status column of time_slots.
type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "AVAILABLE"
	SlotStatusBooked    SlotStatus = "BOOKED"
)

var validSlotStatuses = []SlotStatus{
	SlotStatusAvailable,
	SlotStatusBooked,
}

// String implements fmt.Stringer.
func (s SlotStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SlotStatus.
func (s SlotStatus) IsValid() bool {
	for _, candidate := range validSlotStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether a slot may move from s to next.
// Deletion is not a status; only AVAILABLE slots may be deleted (see Deletable).
func (s SlotStatus) CanTransitionTo(next SlotStatus) bool {
	switch s {
	case SlotStatusAvailable:
		return next == SlotStatusBooked
	case SlotStatusBooked:
		return next == SlotStatusAvailable
	default:
		return false
	}
}

// Deletable reports whether a slot in this status may be hard-deleted.
func (s SlotStatus) Deletable() bool {
	return s == SlotStatusAvailable
}

// ParseSlotStatus converts raw input into a SlotStatus.
func ParseSlotStatus(value string) (SlotStatus, error) {
	for _, candidate := range validSlotStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid slot status %q", value)
}
