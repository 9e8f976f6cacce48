package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder       OutboxAggregateType = "order"
	AggregatePart        OutboxAggregateType = "part"
	AggregateCustomer    OutboxAggregateType = "customer"
	AggregateOffering    OutboxAggregateType = "provider_offering"
	AggregateReservation OutboxAggregateType = "cart_reservation"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePart,
	AggregateCustomer,
	AggregateOffering,
	AggregateReservation,
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

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated             OutboxEventType = "order_created"
	EventOrderStatusChanged       OutboxEventType = "order_status_changed"
	EventOrderCancelled           OutboxEventType = "order_cancelled"
	EventOrderDeleted             OutboxEventType = "order_deleted"
	EventStockAdjusted            OutboxEventType = "stock_adjusted"
	EventStockLow                 OutboxEventType = "stock_low"
	EventReservationsReleased     OutboxEventType = "reservations_released"
	EventReservationsExpired      OutboxEventType = "reservations_expired"
	EventOfferingInventoryChanged OutboxEventType = "offering_inventory_changed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderCancelled,
	EventOrderDeleted,
	EventStockAdjusted,
	EventStockLow,
	EventReservationsReleased,
	EventReservationsExpired,
	EventOfferingInventoryChanged,
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

// DeadLetterReason records why the publisher parked a row in outbox_dlq.
type DeadLetterReason string

const (
	// DeadLetterUnroutable means no topic is registered for the row's event
	// and aggregate pair.
	DeadLetterUnroutable  DeadLetterReason = "unroutable"
	DeadLetterMalformed   DeadLetterReason = "malformed_payload"
	DeadLetterRejected    DeadLetterReason = "broker_rejected"
	DeadLetterMaxAttempts DeadLetterReason = "max_attempts"
)

// IsValid reports whether the value matches a known dead-letter reason.
func (r DeadLetterReason) IsValid() bool {
	switch r {
	case DeadLetterUnroutable, DeadLetterMalformed, DeadLetterRejected, DeadLetterMaxAttempts:
		return true
	}
	return false
}
