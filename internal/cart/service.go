// Package cart manages soft holds: TTL-bound reservations a customer places
// against a set while shopping. Holds never touch stock; they only shrink
// computed availability until they expire or are released.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/kitstock-backend/internal/availability"
	"github.com/angelmondragon/kitstock-backend/internal/ledger"
	"github.com/angelmondragon/kitstock-backend/internal/sets"
	"github.com/angelmondragon/kitstock-backend/pkg/db"
	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	"github.com/angelmondragon/kitstock-backend/pkg/metrics"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kitstock-backend/pkg/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	// ReservationTTL is how long a hold counts against availability.
	ReservationTTL = 15 * time.Minute
	// SweepInterval is how often expired holds are purged.
	SweepInterval = 60 * time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes reservation operations.
type Service interface {
	Reserve(ctx context.Context, customerID, setID uuid.UUID, quantity int) (*models.CartReservation, error)
	ReleaseAll(ctx context.Context, customerID uuid.UUID) (int64, error)
	ReleaseAllTx(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (int64, error)
	Release(ctx context.Context, customerID, setID uuid.UUID) (int64, error)
	ListActive(ctx context.Context, customerID uuid.UUID) ([]models.CartReservation, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Deps bundles the repositories Reserve reads inside its transaction.
type Deps struct {
	Tx           txRunner
	Reservations ReservationRepository
	Sets         sets.Repository
	Parts        ledger.Repository
	Holds        availability.Repository
	Outbox       outboxPublisher
	Logger       *logger.Logger
	Metrics      *metrics.InventoryMetrics
}

type service struct {
	tx           txRunner
	reservations ReservationRepository
	sets         sets.Repository
	parts        ledger.Repository
	holds        availability.Repository
	outbox       outboxPublisher
	logg         *logger.Logger
	metrics      *metrics.InventoryMetrics
	now          func() time.Time
}

// NewService builds the reservation manager.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Reservations == nil:
		return nil, fmt.Errorf("reservation repository required")
	case deps.Sets == nil:
		return nil, fmt.Errorf("set repository required")
	case deps.Parts == nil:
		return nil, fmt.Errorf("part repository required")
	case deps.Holds == nil:
		return nil, fmt.Errorf("availability repository required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:           deps.Tx,
		reservations: deps.Reservations,
		sets:         deps.Sets,
		parts:        deps.Parts,
		holds:        deps.Holds,
		outbox:       deps.Outbox,
		logg:         logg,
		metrics:      deps.Metrics,
		now:          time.Now,
	}, nil
}

// Reserve places or replaces the customer's hold on a set. The set's required
// parts stay locked from the availability check until the hold is written.
func (s *service) Reserve(ctx context.Context, customerID, setID uuid.UUID, quantity int) (*models.CartReservation, error) {
	if customerID == uuid.Nil || setID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id and set id are required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	ctx, span := tracing.Start(ctx, "cart.Reserve")
	defer span.End()
	span.SetAttributes(attribute.String("set.id", setID.String()), attribute.Int("quantity", quantity))

	var out *models.CartReservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		set, err := s.sets.WithTx(tx).FindSet(ctx, setID)
		if err != nil {
			return err
		}
		if !set.Active {
			return pkgerrors.New(pkgerrors.CodeConflict, "set is not available for sale")
		}

		perSet := map[uuid.UUID]int{}
		ids := make([]uuid.UUID, 0, len(set.Parts))
		for _, line := range set.Parts {
			if line.IsOptional {
				continue
			}
			perSet[line.PartID] = line.QuantityPerSet
			ids = append(ids, line.PartID)
		}

		locked, err := s.parts.WithTx(tx).LockParts(ctx, ids)
		if err != nil {
			return err
		}
		lines := make([]availability.Line, 0, len(locked))
		for _, p := range locked {
			lines = append(lines, availability.Line{Stock: p.StockQuantity, QuantityPerSet: perSet[p.ID]})
		}

		now := s.now().UTC()
		others, err := s.holds.WithTx(tx).ReservedForSet(ctx, setID, now, &customerID)
		if err != nil {
			return err
		}
		available := availability.Compute(lines, others)
		if quantity > available {
			s.metrics.ObserveReservation("rejected")
			return pkgerrors.InsufficientStock(available, quantity)
		}

		repo := s.reservations.WithTx(tx)
		expiresAt := now.Add(ReservationTTL)
		existing, err := repo.FindForCustomerSet(ctx, customerID, setID)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := repo.Refresh(ctx, existing.ID, quantity, expiresAt); err != nil {
				return err
			}
			existing.Quantity = quantity
			existing.ExpiresAt = expiresAt
			out = existing
			return nil
		}

		row := &models.CartReservation{
			CustomerID: customerID,
			SetID:      setID,
			Quantity:   quantity,
			ExpiresAt:  expiresAt,
		}
		if err := repo.Create(ctx, row); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "reservation changed concurrently, retry")
			}
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveReservation("created")
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"customer_id": customerID.String(),
		"set_id":      setID.String(),
		"quantity":    quantity,
	}), "reservation placed")
	return out, nil
}

func (s *service) ReleaseAll(ctx context.Context, customerID uuid.UUID) (int64, error) {
	if customerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	var released int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.ReleaseAllTx(ctx, tx, customerID)
		if err != nil {
			return err
		}
		released = n
		return s.emitReleased(ctx, tx, customerID, nil, n)
	})
	return released, err
}

// ReleaseAllTx drops every hold of the customer inside an existing
// transaction. Order creation uses it once stock is committed.
func (s *service) ReleaseAllTx(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	return s.reservations.WithTx(tx).DeleteByCustomer(ctx, customerID)
}

func (s *service) Release(ctx context.Context, customerID, setID uuid.UUID) (int64, error) {
	if customerID == uuid.Nil || setID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer id and set id are required")
	}
	var released int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.reservations.WithTx(tx).DeleteByCustomerSet(ctx, customerID, setID)
		if err != nil {
			return err
		}
		released = n
		return s.emitReleased(ctx, tx, customerID, &setID, n)
	})
	return released, err
}

func (s *service) emitReleased(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, setID *uuid.UUID, n int64) error {
	if n == 0 {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReservationsReleased,
		AggregateType: enums.AggregateCustomer,
		AggregateID:   customerID,
		Actor:         outbox.SystemRef(customerID, enums.ActorRoleCustomer),
		Data: payloads.ReservationsReleasedEvent{
			CustomerID:    customerID,
			SetID:         setID,
			ReleasedCount: n,
		},
	})
}

func (s *service) ListActive(ctx context.Context, customerID uuid.UUID) ([]models.CartReservation, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	return s.reservations.ListActive(ctx, customerID, s.now().UTC())
}

// DeleteExpired purges holds past their expiry. Availability already ignores
// them, so this only reclaims rows.
func (s *service) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	var swept int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.reservations.WithTx(tx).DeleteExpired(ctx, now)
		if err != nil {
			return err
		}
		swept = n
		if n == 0 {
			return nil
		}
		// Each sweep run is its own aggregate; the purged rows are gone.
		sweepID := uuid.New()
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationsExpired,
			AggregateType: enums.AggregateReservation,
			AggregateID:   sweepID,
			Data:          payloads.ReservationsExpiredEvent{SweepID: sweepID, SweptCount: n, SweptAt: now},
		})
	})
	if err != nil {
		return 0, err
	}
	s.metrics.AddSwept(swept)
	return swept, nil
}
