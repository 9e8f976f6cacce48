package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Part is a physical component with a quantity on hand. StockQuantity is only
// written by the stock ledger.
type Part struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SKU               string    `gorm:"column:sku;not null;uniqueIndex"`
	Name              string    `gorm:"column:name;not null"`
	StockQuantity     int       `gorm:"column:stock_quantity;not null;default:0"`
	MinimumStockLevel int       `gorm:"column:minimum_stock_level;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Part) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// IsLow reports whether the part is at or below its reorder threshold.
func (p Part) IsLow() bool {
	return p.MinimumStockLevel > 0 && p.StockQuantity <= p.MinimumStockLevel
}
