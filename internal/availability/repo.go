package availability

import (
	"context"
	"time"

	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository sums active soft holds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ReservedForSet(ctx context.Context, setID uuid.UUID, now time.Time, exclude *uuid.UUID) (int, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ReservedForSet sums quantity over unexpired reservations of the set. exclude
// skips one customer's hold.
func (r *repository) ReservedForSet(ctx context.Context, setID uuid.UUID, now time.Time, exclude *uuid.UUID) (int, error) {
	q := r.db.WithContext(ctx).
		Model(&models.CartReservation{}).
		Where("set_id = ? AND expires_at > ?", setID, now)
	if exclude != nil {
		q = q.Where("customer_id <> ?", *exclude)
	}
	var total int64
	if err := q.Select("COALESCE(SUM(quantity), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}
