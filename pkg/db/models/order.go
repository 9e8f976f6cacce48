package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	"github.com/angelmondragon/kitstock-backend/pkg/types"
)

// Order is a committed purchase. Stock for its items was decremented when the
// row was inserted.
type Order struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber  string              `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID   uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	ProviderID   *uuid.UUID          `gorm:"column:provider_id;type:uuid;index"`
	Status       enums.OrderStatus   `gorm:"column:status;type:text;not null"`
	TotalAmount  decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ShippingInfo *types.ShippingInfo `gorm:"column:shipping_info;type:jsonb;serializer:json"`
	Items        []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// IsProviderSold reports whether a provider fulfils the order.
func (o Order) IsProviderSold() bool {
	return o.ProviderID != nil && *o.ProviderID != uuid.Nil
}

// OrderItem is one line of an order. A nil SetID marks a non-inventory line
// such as a handling fee.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	SetID       *uuid.UUID      `gorm:"column:set_id;type:uuid"`
	OfferingID  *uuid.UUID      `gorm:"column:offering_id;type:uuid"`
	Description string          `gorm:"column:description;not null;default:''"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// IsSentinel reports whether the line carries no stock.
func (i OrderItem) IsSentinel() bool {
	return i.SetID == nil || *i.SetID == uuid.Nil
}

// OrderStatusHistory records every status change on an order.
type OrderStatusHistory struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus enums.OrderStatus `gorm:"column:from_status;type:text;not null"`
	ToStatus   enums.OrderStatus `gorm:"column:to_status;type:text;not null"`
	ActorID    uuid.UUID         `gorm:"column:actor_id;type:uuid;not null"`
	ActorRole  enums.ActorRole   `gorm:"column:actor_role;type:text;not null"`
	Notes      *string           `gorm:"column:notes"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}

func (h *OrderStatusHistory) BeforeCreate(*gorm.DB) error {
	ensureID(&h.ID)
	return nil
}
