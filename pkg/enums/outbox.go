package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregatePayment       OutboxAggregateType = "payment"
	AggregateVendorPayout  OutboxAggregateType = "vendor_payout"
	AggregateInventoryItem OutboxAggregateType = "inventory_item"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayment,
	AggregateVendorPayout,
	AggregateInventoryItem,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
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

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated      OutboxEventType = "order_created"
	EventPaymentCompleted  OutboxEventType = "payment_completed"
	EventPaymentFailed     OutboxEventType = "payment_failed"
	EventPaymentRefunded   OutboxEventType = "payment_refunded"
	EventPaymentCancelled  OutboxEventType = "payment_cancelled"
	EventPayoutCreated     OutboxEventType = "payout_created"
	EventPayoutPaid        OutboxEventType = "payout_paid"
	EventInventoryLowStock OutboxEventType = "inventory_low_stock"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventPaymentCompleted,
	EventPaymentFailed,
	EventPaymentRefunded,
	EventPaymentCancelled,
	EventPayoutCreated,
	EventPayoutPaid,
	EventInventoryLowStock,
}

// IsValid reports whether the value matches the canonical event_type enum.
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
