package cart

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists cart reservations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a reservation repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) ReservationRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindForCustomerSet locks and returns the customer's hold on a set, or nil.
func (r *Repository) FindForCustomerSet(ctx context.Context, customerID, setID uuid.UUID) (*models.CartReservation, error) {
	var row models.CartReservation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ? AND set_id = ?", customerID, setID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Create(ctx context.Context, reservation *models.CartReservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

// Refresh overwrites quantity and expiry of an existing hold.
func (r *Repository) Refresh(ctx context.Context, id uuid.UUID, quantity int, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CartReservation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":   quantity,
			"expires_at": expiresAt,
			"updated_at": time.Now().UTC(),
		}).Error
}

// ListActive returns the customer's unexpired holds, soonest expiry first.
func (r *Repository) ListActive(ctx context.Context, customerID uuid.UUID, now time.Time) ([]models.CartReservation, error) {
	var rows []models.CartReservation
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND expires_at > ?", customerID, now).
		Order("expires_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) DeleteByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("customer_id = ?", customerID).Delete(&models.CartReservation{})
	return res.RowsAffected, res.Error
}

func (r *Repository) DeleteByCustomerSet(ctx context.Context, customerID, setID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("customer_id = ? AND set_id = ?", customerID, setID).
		Delete(&models.CartReservation{})
	return res.RowsAffected, res.Error
}

// DeleteExpired removes holds whose expiry is at or before now.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.CartReservation{})
	return res.RowsAffected, res.Error
}
