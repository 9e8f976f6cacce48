package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/kitstock-backend/pkg/config"
	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox/payloads"
)

type stream int

const (
	orderStream stream = iota
	inventoryStream
)

// route is one row of the catalog below.
type route struct {
	event     enums.OutboxEventType
	aggregate enums.OutboxAggregateType
	stream    stream
	payload   func() any
}

var catalog = []route{
	{enums.EventOrderCreated, enums.AggregateOrder, orderStream, func() any { return &payloads.OrderCreatedEvent{} }},
	{enums.EventOrderStatusChanged, enums.AggregateOrder, orderStream, func() any { return &payloads.OrderStatusChangedEvent{} }},
	{enums.EventOrderCancelled, enums.AggregateOrder, orderStream, func() any { return &payloads.OrderStatusChangedEvent{} }},
	{enums.EventOrderDeleted, enums.AggregateOrder, orderStream, func() any { return &payloads.OrderDeletedEvent{} }},
	{enums.EventStockAdjusted, enums.AggregatePart, inventoryStream, func() any { return &payloads.StockAdjustedEvent{} }},
	{enums.EventStockLow, enums.AggregatePart, inventoryStream, func() any { return &payloads.StockLowEvent{} }},
	{enums.EventReservationsReleased, enums.AggregateCustomer, inventoryStream, func() any { return &payloads.ReservationsReleasedEvent{} }},
	{enums.EventReservationsExpired, enums.AggregateReservation, inventoryStream, func() any { return &payloads.ReservationsExpiredEvent{} }},
	{enums.EventOfferingInventoryChanged, enums.AggregateOffering, inventoryStream, func() any { return &payloads.OfferingInventoryChangedEvent{} }},
}

// EventDescriptor is where a resolved row goes.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row with its envelope and typed payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// Rejection marks a row that can never be published as stored. Reason is
// what lands in outbox_dlq.error_reason.
type Rejection struct {
	Reason enums.DeadLetterReason
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err == nil {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %v", r.Reason, r.Err)
}

func (r *Rejection) Unwrap() error { return r.Err }

func reject(reason enums.DeadLetterReason, format string, args ...any) error {
	return &Rejection{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// RejectionReason reports the dead-letter reason carried by err, if any.
func RejectionReason(err error) (enums.DeadLetterReason, bool) {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection.Reason, true
	}
	return "", false
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]route
	topics map[stream]string
}

// NewEventRegistry binds the catalog to configured topic names. Kafka reuses
// the same names when it is the selected broker.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topics := map[stream]string{
		orderStream:     cfg.OrdersTopic,
		inventoryStream: cfg.InventoryTopic,
	}
	if topics[orderStream] == "" {
		return nil, errors.New("orders topic is required")
	}
	if topics[inventoryStream] == "" {
		return nil, errors.New("inventory topic is required")
	}
	routes := make(map[enums.OutboxEventType]route, len(catalog))
	for _, r := range catalog {
		routes[r.event] = r
	}
	return &EventRegistry{routes: routes, topics: topics}, nil
}

// Resolve checks the row against the catalog and decodes its payload. Every
// error it returns is a *Rejection.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	rt, ok := r.routes[event.EventType]
	if !ok {
		return nil, reject(enums.DeadLetterUnroutable, "no route for event type %q", event.EventType)
	}
	if rt.aggregate != event.AggregateType {
		return nil, reject(enums.DeadLetterUnroutable, "%s belongs to %s aggregates, row has %s", event.EventType, rt.aggregate, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return nil, reject(enums.DeadLetterMalformed, "aggregate_id is empty")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, reject(enums.DeadLetterMalformed, "decode envelope: %w", err)
	}
	if envelope.EventID == "" {
		return nil, reject(enums.DeadLetterMalformed, "envelope has no event id")
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, reject(enums.DeadLetterMalformed, "%s envelope carries no data", event.EventType)
	}

	payload := rt.payload()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, reject(enums.DeadLetterMalformed, "decode %s data: %w", event.EventType, err)
	}

	return &ResolvedEvent{
		Descriptor: EventDescriptor{
			EventType:     rt.event,
			AggregateType: rt.aggregate,
			Topic:         r.topics[rt.stream],
		},
		Envelope: envelope,
		Payload:  payload,
	}, nil
}
