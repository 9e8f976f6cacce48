package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/kitstock-backend/pkg/enums"
)

// OrderItemSummary describes one committed order line.
type OrderItemSummary struct {
	SetID     *uuid.UUID      `json:"set_id,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderCreatedEvent is emitted once stock for a new order has been committed.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID          `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	CustomerID  uuid.UUID          `json:"customer_id"`
	ProviderID  *uuid.UUID         `json:"provider_id,omitempty"`
	Status      enums.OrderStatus  `json:"status"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Items       []OrderItemSummary `json:"items"`
}

// OrderStatusChangedEvent is emitted on every accepted transition.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	CustomerID    uuid.UUID         `json:"customer_id"`
	ProviderID    *uuid.UUID        `json:"provider_id,omitempty"`
	From          enums.OrderStatus `json:"from"`
	To            enums.OrderStatus `json:"to"`
	StockRestored bool              `json:"stock_restored"`
	Notes         string            `json:"notes,omitempty"`
}

// OrderDeletedEvent is emitted when an admin hard-deletes an order.
type OrderDeletedEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	LastStatus    enums.OrderStatus `json:"last_status"`
	StockRestored bool              `json:"stock_restored"`
	DeletedAt     time.Time         `json:"deleted_at"`
}

// StockAdjustedEvent reports a manual restock or adjustment.
type StockAdjustedEvent struct {
	PartID        uuid.UUID                      `json:"part_id"`
	Type          enums.InventoryTransactionType `json:"type"`
	Delta         int                            `json:"delta"`
	PreviousStock int                            `json:"previous_stock"`
	NewStock      int                            `json:"new_stock"`
	Clamped       bool                           `json:"clamped"`
}

// StockLowEvent fires when a part drops to its minimum stock level.
type StockLowEvent struct {
	PartID            uuid.UUID `json:"part_id"`
	SKU               string    `json:"sku"`
	StockQuantity     int       `json:"stock_quantity"`
	MinimumStockLevel int       `json:"minimum_stock_level"`
}

// ReservationsReleasedEvent reports an explicit cart clear.
type ReservationsReleasedEvent struct {
	CustomerID    uuid.UUID  `json:"customer_id"`
	SetID         *uuid.UUID `json:"set_id,omitempty"`
	ReleasedCount int64      `json:"released_count"`
}

// ReservationsExpiredEvent is emitted by the sweeper after a purge.
type ReservationsExpiredEvent struct {
	SweepID    uuid.UUID `json:"sweep_id"`
	SweptCount int64     `json:"swept_count"`
	SweptAt    time.Time `json:"swept_at"`
}

// OfferingInventoryChangedEvent reports a shared-resource reservation upsert.
type OfferingInventoryChangedEvent struct {
	OfferingID       uuid.UUID `json:"offering_id"`
	ProviderID       uuid.UUID `json:"provider_id"`
	SharedPartID     uuid.UUID `json:"shared_part_id"`
	ReservedQuantity int       `json:"reserved_quantity"`
}
