package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/kitstock-backend/pkg/enums"
)

// ProviderOffering is a provider's listing of a set.
type ProviderOffering struct {
	ID                uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	ProviderID        uuid.UUID                 `gorm:"column:provider_id;type:uuid;not null;index"`
	SetID             uuid.UUID                 `gorm:"column:set_id;type:uuid;not null;index"`
	Price             decimal.Decimal           `gorm:"column:price;type:numeric(12,2);not null"`
	AvailableQuantity int                       `gorm:"column:available_quantity;not null;default:0"`
	IsActive          bool                      `gorm:"column:is_active;not null;default:true"`
	AdminStatus       enums.OfferingAdminStatus `gorm:"column:admin_status;type:text;not null;default:'active'"`
	VisibleToAdmin    bool                      `gorm:"column:visible_to_admin;not null;default:true"`
	VisibleToProvider bool                      `gorm:"column:visible_to_provider;not null;default:true"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *ProviderOffering) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// Sellable reports whether customers may currently order the offering.
func (o ProviderOffering) Sellable() bool {
	return o.IsActive && o.AdminStatus == enums.OfferingAdminStatusActive
}

// SharedResourceReservation tracks how much of the shared constrained part an
// offering has claimed and consumed.
type SharedResourceReservation struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OfferingID       uuid.UUID `gorm:"column:offering_id;type:uuid;not null;uniqueIndex:ux_shared_resource_offering_part"`
	SharedPartID     uuid.UUID `gorm:"column:shared_part_id;type:uuid;not null;uniqueIndex:ux_shared_resource_offering_part"`
	ReservedQuantity int       `gorm:"column:reserved_quantity;not null;default:0"`
	UsedQuantity     int       `gorm:"column:used_quantity;not null;default:0"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (r *SharedResourceReservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
