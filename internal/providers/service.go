// Package providers tracks provider offerings of provider-sold sets and the
// shared constrained part each offering claims.
package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/kitstock-backend/internal/sets"
	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kitstock-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages offerings and their shared-resource counters.
type Service interface {
	CreateOffering(ctx context.Context, providerID uuid.UUID, input CreateOfferingInput) (*models.ProviderOffering, error)
	UpdateQuantity(ctx context.Context, providerID, offeringID uuid.UUID, quantity int) (*models.ProviderOffering, error)
	SetAdminStatus(ctx context.Context, offeringID uuid.UUID, status enums.OfferingAdminStatus) (*models.ProviderOffering, error)
	SetVisibility(ctx context.Context, actor types.Actor, offeringID uuid.UUID, visible bool) (*models.ProviderOffering, error)
	List(ctx context.Context, actor types.Actor) ([]models.ProviderOffering, error)
	UpsertProviderOfferingInventory(ctx context.Context, offeringID, sharedPartID uuid.UUID, reservedQty int) error
	RecordUsage(ctx context.Context, tx *gorm.DB, offeringID uuid.UUID, delta int) error
	FindOffering(ctx context.Context, tx *gorm.DB, offeringID uuid.UUID) (*models.ProviderOffering, error)
}

// CreateOfferingInput lists a provider-sold set for sale.
type CreateOfferingInput struct {
	SetID             uuid.UUID
	Price             decimal.Decimal
	AvailableQuantity int
	Inactive          bool
}

type service struct {
	tx           txRunner
	repo         Repository
	sets         sets.Repository
	outbox       outboxPublisher
	sharedPartID uuid.UUID
	logg         *logger.Logger
	now          func() time.Time
}

// NewService builds the tracker. A nil sharedPartID disables the shared
// counters; offerings still work.
func NewService(tx txRunner, repo Repository, setRepo sets.Repository, publisher outboxPublisher, sharedPartID uuid.UUID, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("providers repository required")
	}
	if setRepo == nil {
		return nil, fmt.Errorf("sets repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:           tx,
		repo:         repo,
		sets:         setRepo,
		outbox:       publisher,
		sharedPartID: sharedPartID,
		logg:         logg,
		now:          time.Now,
	}, nil
}

func (s *service) CreateOffering(ctx context.Context, providerID uuid.UUID, input CreateOfferingInput) (*models.ProviderOffering, error) {
	if providerID == uuid.Nil || input.SetID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider id and set id are required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if input.AvailableQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "available quantity must not be negative")
	}

	var out *models.ProviderOffering
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		set, err := s.sets.WithTx(tx).FindSet(ctx, input.SetID)
		if err != nil {
			return err
		}
		if set.ProviderID == nil || *set.ProviderID != providerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "set is not sold by this provider")
		}

		repo := s.repo.WithTx(tx)
		offering := &models.ProviderOffering{
			ProviderID:        providerID,
			SetID:             input.SetID,
			Price:             input.Price,
			AvailableQuantity: input.AvailableQuantity,
			IsActive:          true,
			AdminStatus:       enums.OfferingAdminStatusActive,
			VisibleToAdmin:    true,
			VisibleToProvider: true,
		}
		if err := repo.CreateOffering(ctx, offering); err != nil {
			return err
		}
		if input.Inactive {
			if err := repo.UpdateOffering(ctx, offering.ID, map[string]any{"is_active": false}); err != nil {
				return err
			}
			offering.IsActive = false
		}
		if err := s.syncShared(ctx, tx, offering, input.AvailableQuantity); err != nil {
			return err
		}
		out = offering
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) UpdateQuantity(ctx context.Context, providerID, offeringID uuid.UUID, quantity int) (*models.ProviderOffering, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "available quantity must not be negative")
	}
	var out *models.ProviderOffering
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offering, err := repo.FindOffering(ctx, offeringID)
		if err != nil {
			return err
		}
		if offering.ProviderID != providerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "offering belongs to another provider")
		}
		if err := repo.UpdateOffering(ctx, offeringID, map[string]any{"available_quantity": quantity}); err != nil {
			return err
		}
		offering.AvailableQuantity = quantity
		if err := s.syncShared(ctx, tx, offering, quantity); err != nil {
			return err
		}
		out = offering
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) SetAdminStatus(ctx context.Context, offeringID uuid.UUID, status enums.OfferingAdminStatus) (*models.ProviderOffering, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid admin status %q", status))
	}
	var out *models.ProviderOffering
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offering, err := repo.FindOffering(ctx, offeringID)
		if err != nil {
			return err
		}
		if err := repo.UpdateOffering(ctx, offeringID, map[string]any{"admin_status": status}); err != nil {
			return err
		}
		offering.AdminStatus = status
		out = offering
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetVisibility flips the caller's own visibility flag: admins control
// visible_to_admin, providers visible_to_provider on their offerings.
func (s *service) SetVisibility(ctx context.Context, actor types.Actor, offeringID uuid.UUID, visible bool) (*models.ProviderOffering, error) {
	var out *models.ProviderOffering
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offering, err := repo.FindOffering(ctx, offeringID)
		if err != nil {
			return err
		}
		var column string
		switch actor.Role {
		case enums.ActorRoleAdmin:
			column = "visible_to_admin"
			offering.VisibleToAdmin = visible
		case enums.ActorRoleProvider:
			if !actor.OwnsProvider(&offering.ProviderID) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "offering belongs to another provider")
			}
			column = "visible_to_provider"
			offering.VisibleToProvider = visible
		default:
			return pkgerrors.New(pkgerrors.CodeForbidden, "role may not change offering visibility")
		}
		if err := repo.UpdateOffering(ctx, offeringID, map[string]any{column: visible}); err != nil {
			return err
		}
		out = offering
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) List(ctx context.Context, actor types.Actor) ([]models.ProviderOffering, error) {
	switch actor.Role {
	case enums.ActorRoleAdmin:
		return s.repo.ListOfferings(ctx, OfferingFilter{VisibleToAdmin: true})
	case enums.ActorRoleProvider:
		if actor.ProviderID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "provider account required")
		}
		return s.repo.ListOfferings(ctx, OfferingFilter{ProviderID: actor.ProviderID, VisibleToProvider: true})
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role may not list offerings")
	}
}

func (s *service) UpsertProviderOfferingInventory(ctx context.Context, offeringID, sharedPartID uuid.UUID, reservedQty int) error {
	if offeringID == uuid.Nil || sharedPartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "offering id and shared part id are required")
	}
	if reservedQty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserved quantity must not be negative")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		offering, err := s.repo.WithTx(tx).FindOffering(ctx, offeringID)
		if err != nil {
			return err
		}
		return s.upsertShared(ctx, tx, offering, sharedPartID, reservedQty)
	})
}

// RecordUsage moves the offering's used counter by delta inside tx. It is a
// no-op when no shared part is configured.
func (s *service) RecordUsage(ctx context.Context, tx *gorm.DB, offeringID uuid.UUID, delta int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "usage changes require a transaction")
	}
	if s.sharedPartID == uuid.Nil || delta == 0 {
		return nil
	}
	return s.repo.WithTx(tx).AdjustUsage(ctx, offeringID, s.sharedPartID, delta, s.now().UTC())
}

func (s *service) FindOffering(ctx context.Context, tx *gorm.DB, offeringID uuid.UUID) (*models.ProviderOffering, error) {
	return s.repo.WithTx(tx).FindOffering(ctx, offeringID)
}

func (s *service) syncShared(ctx context.Context, tx *gorm.DB, offering *models.ProviderOffering, reserved int) error {
	if s.sharedPartID == uuid.Nil {
		return nil
	}
	return s.upsertShared(ctx, tx, offering, s.sharedPartID, reserved)
}

func (s *service) upsertShared(ctx context.Context, tx *gorm.DB, offering *models.ProviderOffering, sharedPartID uuid.UUID, reserved int) error {
	if err := s.repo.WithTx(tx).UpsertSharedReservation(ctx, offering.ID, sharedPartID, reserved, s.now().UTC()); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOfferingInventoryChanged,
		AggregateType: enums.AggregateOffering,
		AggregateID:   offering.ID,
		Data: payloads.OfferingInventoryChangedEvent{
			OfferingID:       offering.ID,
			ProviderID:       offering.ProviderID,
			SharedPartID:     sharedPartID,
			ReservedQuantity: reserved,
		},
	})
}
