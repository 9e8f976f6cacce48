package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartReservation is a TTL-bound soft hold a customer places on a set. It never
// mutates stock; it only shrinks computed availability until it expires.
type CartReservation struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:ux_cart_reservations_customer_set"`
	SetID      uuid.UUID `gorm:"column:set_id;type:uuid;not null;uniqueIndex:ux_cart_reservations_customer_set;index"`
	Quantity   int       `gorm:"column:quantity;not null"`
	ExpiresAt  time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *CartReservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// ActiveAt reports whether the hold still counts against availability at now.
func (r CartReservation) ActiveAt(now time.Time) bool {
	return r.ExpiresAt.After(now)
}
