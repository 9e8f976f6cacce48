package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/kitstock-backend/pkg/enums"
)

// InventoryTransaction is an append-only stock ledger row. Quantity is the
// requested delta; NewStock-PreviousStock differs from it only when Clamped.
type InventoryTransaction struct {
	ID            uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	PartID        uuid.UUID                      `gorm:"column:part_id;type:uuid;not null;index"`
	Type          enums.InventoryTransactionType `gorm:"column:type;type:text;not null"`
	Quantity      int                            `gorm:"column:quantity;not null"`
	PreviousStock int                            `gorm:"column:previous_stock;not null"`
	NewStock      int                            `gorm:"column:new_stock;not null"`
	Reason        string                         `gorm:"column:reason;not null"`
	Clamped       bool                           `gorm:"column:clamped;not null;default:false"`
	UnitCost      *decimal.Decimal               `gorm:"column:unit_cost;type:numeric(12,2)"`
	Supplier      *string                        `gorm:"column:supplier"`
	ReferenceID   *uuid.UUID                     `gorm:"column:reference_id;type:uuid;index"`
	ActorID       *uuid.UUID                     `gorm:"column:actor_id;type:uuid"`
	CreatedAt     time.Time                      `gorm:"column:created_at;autoCreateTime"`
}

func (t *InventoryTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
