package enums

import "fmt"

// OutboxAggregateType identifies the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateStockRecord     OutboxAggregateType = "stock_record"
	AggregateStockAdjustment OutboxAggregateType = "stock_adjustment"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateStockRecord,
	AggregateStockAdjustment,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names the audit/notification events handed to collaborators.
type OutboxEventType string

const (
	EventStockAdjustmentApproved OutboxEventType = "stock_adjustment_approved"
	EventStockAdjustmentRejected OutboxEventType = "stock_adjustment_rejected"
	EventStockSetDirect          OutboxEventType = "stock_set_direct"
)

var validOutboxEventTypes = []OutboxEventType{
	EventStockAdjustmentApproved,
	EventStockAdjustmentRejected,
	EventStockSetDirect,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
