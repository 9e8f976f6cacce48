package providers

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists provider offerings and shared-resource counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOffering(ctx context.Context, offering *models.ProviderOffering) error
	FindOffering(ctx context.Context, id uuid.UUID) (*models.ProviderOffering, error)
	UpdateOffering(ctx context.Context, id uuid.UUID, fields map[string]any) error
	ListOfferings(ctx context.Context, filter OfferingFilter) ([]models.ProviderOffering, error)
	UpsertSharedReservation(ctx context.Context, offeringID, sharedPartID uuid.UUID, reserved int, now time.Time) error
	AdjustUsage(ctx context.Context, offeringID, sharedPartID uuid.UUID, delta int, now time.Time) error
	FindSharedReservation(ctx context.Context, offeringID, sharedPartID uuid.UUID) (*models.SharedResourceReservation, error)
}

// OfferingFilter narrows ListOfferings. Zero values mean no constraint.
type OfferingFilter struct {
	ProviderID        *uuid.UUID
	VisibleToAdmin    bool
	VisibleToProvider bool
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

func (r *repository) CreateOffering(ctx context.Context, offering *models.ProviderOffering) error {
	return r.db.WithContext(ctx).Create(offering).Error
}

func (r *repository) FindOffering(ctx context.Context, id uuid.UUID) (*models.ProviderOffering, error) {
	var row models.ProviderOffering
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offering not found")
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpdateOffering(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.ProviderOffering{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repository) ListOfferings(ctx context.Context, filter OfferingFilter) ([]models.ProviderOffering, error) {
	q := r.db.WithContext(ctx).Model(&models.ProviderOffering{})
	if filter.ProviderID != nil {
		q = q.Where("provider_id = ?", *filter.ProviderID)
	}
	if filter.VisibleToAdmin {
		q = q.Where("visible_to_admin = ?", true)
	}
	if filter.VisibleToProvider {
		q = q.Where("visible_to_provider = ?", true)
	}
	var rows []models.ProviderOffering
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertSharedReservation inserts the counter row or overwrites its
// reserved_quantity, leaving used_quantity untouched.
func (r *repository) UpsertSharedReservation(ctx context.Context, offeringID, sharedPartID uuid.UUID, reserved int, now time.Time) error {
	row := models.SharedResourceReservation{
		OfferingID:       offeringID,
		SharedPartID:     sharedPartID,
		ReservedQuantity: reserved,
		UpdatedAt:        now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "offering_id"}, {Name: "shared_part_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"reserved_quantity": reserved,
				"updated_at":        now,
			}),
		}).
		Create(&row).Error
}

// AdjustUsage moves used_quantity by delta without letting it go negative.
func (r *repository) AdjustUsage(ctx context.Context, offeringID, sharedPartID uuid.UUID, delta int, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.SharedResourceReservation{}).
		Where("offering_id = ? AND shared_part_id = ?", offeringID, sharedPartID).
		Updates(map[string]any{
			"used_quantity": gorm.Expr("CASE WHEN used_quantity + ? < 0 THEN 0 ELSE used_quantity + ? END", delta, delta),
			"updated_at":    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	used := delta
	if used < 0 {
		used = 0
	}
	return r.db.WithContext(ctx).Create(&models.SharedResourceReservation{
		OfferingID:   offeringID,
		SharedPartID: sharedPartID,
		UsedQuantity: used,
		UpdatedAt:    now,
	}).Error
}

func (r *repository) FindSharedReservation(ctx context.Context, offeringID, sharedPartID uuid.UUID) (*models.SharedResourceReservation, error) {
	var row models.SharedResourceReservation
	err := r.db.WithContext(ctx).
		Where("offering_id = ? AND shared_part_id = ?", offeringID, sharedPartID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shared resource reservation not found")
		}
		return nil, err
	}
	return &row, nil
}
