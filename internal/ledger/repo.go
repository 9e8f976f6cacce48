package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/angelmondragon/kitstock-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository manages persistence for part stock and its transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockPart(ctx context.Context, partID uuid.UUID) (*models.Part, error)
	LockParts(ctx context.Context, partIDs []uuid.UUID) ([]models.Part, error)
	UpdateStock(ctx context.Context, partID uuid.UUID, quantity int) error
	RecordTransaction(ctx context.Context, txn *models.InventoryTransaction) error
	ListTransactions(ctx context.Context, partID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.InventoryTransaction, error)
	FindPart(ctx context.Context, partID uuid.UUID) (*models.Part, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LockPart(ctx context.Context, partID uuid.UUID) (*models.Part, error) {
	var part models.Part
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", partID).
		First(&part).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "part not found")
		}
		return nil, err
	}
	return &part, nil
}

// LockParts takes row locks in ascending id order so concurrent writers
// touching overlapping parts queue instead of deadlocking.
func (r *repository) LockParts(ctx context.Context, partIDs []uuid.UUID) ([]models.Part, error) {
	if len(partIDs) == 0 {
		return nil, nil
	}
	var parts []models.Part
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", partIDs).
		Order("id ASC").
		Find(&parts).Error
	if err != nil {
		return nil, err
	}
	return parts, nil
}

func (r *repository) UpdateStock(ctx context.Context, partID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.Part{}).
		Where("id = ?", partID).
		Updates(map[string]any{
			"stock_quantity": quantity,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *repository) RecordTransaction(ctx context.Context, txn *models.InventoryTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, partID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.InventoryTransaction, error) {
	var rows []models.InventoryTransaction
	err := r.db.WithContext(ctx).
		Where("part_id = ?", partID).
		Scopes(pagination.Scope("", cursor, limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindPart(ctx context.Context, partID uuid.UUID) (*models.Part, error) {
	var part models.Part
	if err := r.db.WithContext(ctx).Where("id = ?", partID).First(&part).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "part not found")
		}
		return nil, err
	}
	return &part, nil
}
