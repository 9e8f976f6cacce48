package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Set is a sellable kit assembled from parts. ProviderID is set for kits sold
// by a third-party provider.
type Set struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name       string          `gorm:"column:name;not null"`
	Active     bool            `gorm:"column:active;not null;default:true"`
	ProviderID *uuid.UUID      `gorm:"column:provider_id;type:uuid"`
	BasePrice  decimal.Decimal `gorm:"column:base_price;type:numeric(12,2);not null;default:0"`
	Parts      []SetPart       `gorm:"foreignKey:SetID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Set) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// IsProviderSold reports whether the kit belongs to a provider.
func (s Set) IsProviderSold() bool {
	return s.ProviderID != nil && *s.ProviderID != uuid.Nil
}

// SetPart is one bill-of-materials line.
type SetPart struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SetID          uuid.UUID `gorm:"column:set_id;type:uuid;not null;uniqueIndex:ux_set_parts_set_part"`
	PartID         uuid.UUID `gorm:"column:part_id;type:uuid;not null;uniqueIndex:ux_set_parts_set_part"`
	QuantityPerSet int       `gorm:"column:quantity_per_set;not null"`
	IsOptional     bool      `gorm:"column:is_optional;not null;default:false"`
	Part           *Part     `gorm:"foreignKey:PartID"`
}

func (SetPart) TableName() string {
	return "set_parts"
}

func (p *SetPart) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
