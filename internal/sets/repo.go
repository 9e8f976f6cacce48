package sets

import (
	"context"
	"errors"

	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads sets with their bill of materials and writes catalog rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSet(ctx context.Context, setID uuid.UUID) (*models.Set, error)
	RequiredLines(ctx context.Context, setID uuid.UUID) ([]models.SetPart, error)
	RequiredLinesForSets(ctx context.Context, setIDs []uuid.UUID) (map[uuid.UUID][]models.SetPart, error)
	FindSetsByIDs(ctx context.Context, setIDs []uuid.UUID) (map[uuid.UUID]models.Set, error)
	CreatePart(ctx context.Context, part *models.Part) error
	CreateSet(ctx context.Context, set *models.Set) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a set repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindSet(ctx context.Context, setID uuid.UUID) (*models.Set, error) {
	var set models.Set
	err := r.db.WithContext(ctx).
		Preload("Parts", func(db *gorm.DB) *gorm.DB { return db.Order("part_id ASC") }).
		Preload("Parts.Part").
		Where("id = ?", setID).
		First(&set).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "set not found")
		}
		return nil, err
	}
	return &set, nil
}

// RequiredLines returns the non-optional BOM lines of a set ordered by part id,
// each with its part loaded.
func (r *repository) RequiredLines(ctx context.Context, setID uuid.UUID) ([]models.SetPart, error) {
	byID, err := r.RequiredLinesForSets(ctx, []uuid.UUID{setID})
	if err != nil {
		return nil, err
	}
	return byID[setID], nil
}

func (r *repository) RequiredLinesForSets(ctx context.Context, setIDs []uuid.UUID) (map[uuid.UUID][]models.SetPart, error) {
	out := make(map[uuid.UUID][]models.SetPart, len(setIDs))
	if len(setIDs) == 0 {
		return out, nil
	}
	var lines []models.SetPart
	err := r.db.WithContext(ctx).
		Preload("Part").
		Where("set_id IN ? AND is_optional = ?", setIDs, false).
		Order("set_id ASC").
		Order("part_id ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		out[line.SetID] = append(out[line.SetID], line)
	}
	return out, nil
}

func (r *repository) FindSetsByIDs(ctx context.Context, setIDs []uuid.UUID) (map[uuid.UUID]models.Set, error) {
	out := make(map[uuid.UUID]models.Set, len(setIDs))
	if len(setIDs) == 0 {
		return out, nil
	}
	var rows []models.Set
	if err := r.db.WithContext(ctx).Where("id IN ?", setIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *repository) CreatePart(ctx context.Context, part *models.Part) error {
	return r.db.WithContext(ctx).Create(part).Error
}

func (r *repository) CreateSet(ctx context.Context, set *models.Set) error {
	return r.db.WithContext(ctx).Create(set).Error
}
