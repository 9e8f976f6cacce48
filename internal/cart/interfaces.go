package cart

import (
	"context"
	"time"

	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReservationRepository defines the persistence surface required by the cart service.
type ReservationRepository interface {
	WithTx(tx *gorm.DB) ReservationRepository
	FindForCustomerSet(ctx context.Context, customerID, setID uuid.UUID) (*models.CartReservation, error)
	Create(ctx context.Context, reservation *models.CartReservation) error
	Refresh(ctx context.Context, id uuid.UUID, quantity int, expiresAt time.Time) error
	ListActive(ctx context.Context, customerID uuid.UUID, now time.Time) ([]models.CartReservation, error)
	DeleteByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)
	DeleteByCustomerSet(ctx context.Context, customerID, setID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
