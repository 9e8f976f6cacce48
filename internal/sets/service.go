// Package sets manages the kit catalog: parts, sets and their bill of
// materials.
package sets

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/kitstock-backend/internal/ledger"
	"github.com/angelmondragon/kitstock-backend/pkg/db"
	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockApplier interface {
	ApplyDelta(ctx context.Context, tx *gorm.DB, partID uuid.UUID, delta int, entry ledger.Entry) (*ledger.Result, error)
}

// Service exposes catalog operations.
type Service interface {
	GetSet(ctx context.Context, setID uuid.UUID) (*models.Set, error)
	CreatePart(ctx context.Context, input CreatePartInput) (*models.Part, error)
	CreateSet(ctx context.Context, input CreateSetInput) (*models.Set, error)
}

// CreatePartInput describes a new part. InitialStock is booked as a restock.
type CreatePartInput struct {
	SKU               string
	Name              string
	InitialStock      int
	MinimumStockLevel int
	ActorID           uuid.UUID
}

// LineInput is one bill-of-materials line.
type LineInput struct {
	PartID         uuid.UUID
	QuantityPerSet int
	IsOptional     bool
}

// CreateSetInput describes a new kit.
type CreateSetInput struct {
	Name       string
	ProviderID *uuid.UUID
	BasePrice  decimal.Decimal
	Inactive   bool
	Lines      []LineInput
}

type service struct {
	tx     txRunner
	repo   Repository
	ledger stockApplier
}

// NewService builds the catalog service.
func NewService(tx txRunner, repo Repository, stock stockApplier) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("set repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	return &service{tx: tx, repo: repo, ledger: stock}, nil
}

func (s *service) GetSet(ctx context.Context, setID uuid.UUID) (*models.Set, error) {
	if setID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "set id is required")
	}
	return s.repo.FindSet(ctx, setID)
}

func (s *service) CreatePart(ctx context.Context, input CreatePartInput) (*models.Part, error) {
	sku := strings.TrimSpace(input.SKU)
	name := strings.TrimSpace(input.Name)
	if sku == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku and name are required")
	}
	if input.InitialStock < 0 || input.MinimumStockLevel < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock levels cannot be negative")
	}

	part := &models.Part{SKU: sku, Name: name, MinimumStockLevel: input.MinimumStockLevel}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreatePart(ctx, part); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
			}
			return err
		}
		if input.InitialStock == 0 {
			return nil
		}
		var actor *uuid.UUID
		if input.ActorID != uuid.Nil {
			actor = &input.ActorID
		}
		res, err := s.ledger.ApplyDelta(ctx, tx, part.ID, input.InitialStock, ledger.Entry{
			Type:    enums.InventoryTxRestock,
			Reason:  "initial_stock",
			ActorID: actor,
		})
		if err != nil {
			return err
		}
		part.StockQuantity = res.NewStock
		return nil
	})
	if err != nil {
		return nil, err
	}
	return part, nil
}

func (s *service) CreateSet(ctx context.Context, input CreateSetInput) (*models.Set, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.BasePrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base price cannot be negative")
	}

	seen := make(map[uuid.UUID]struct{}, len(input.Lines))
	lines := make([]models.SetPart, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.PartID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "part id is required")
		}
		if line.QuantityPerSet <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity per set must be positive")
		}
		if _, dup := seen[line.PartID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate part in bill of materials")
		}
		seen[line.PartID] = struct{}{}
		lines = append(lines, models.SetPart{
			PartID:         line.PartID,
			QuantityPerSet: line.QuantityPerSet,
			IsOptional:     line.IsOptional,
		})
	}

	set := &models.Set{
		Name:       name,
		Active:     !input.Inactive,
		ProviderID: input.ProviderID,
		BasePrice:  input.BasePrice,
		Parts:      lines,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var found int64
		if len(seen) > 0 {
			ids := make([]uuid.UUID, 0, len(seen))
			for id := range seen {
				ids = append(ids, id)
			}
			if err := tx.WithContext(ctx).Model(&models.Part{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
				return err
			}
			if int(found) != len(ids) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "part not found")
			}
		}
		if err := s.repo.WithTx(tx).CreateSet(ctx, set); err != nil {
			return err
		}
		// gorm omits a false bool on insert when the column has a default.
		if input.Inactive {
			return tx.WithContext(ctx).Model(&models.Set{}).Where("id = ?", set.ID).Update("active", false).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}
