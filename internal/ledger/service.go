// Package ledger owns part stock levels. Every stock change goes through
// ApplyDelta, which locks the part, clamps at zero, and appends an
// InventoryTransaction in the caller's transaction.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	"github.com/angelmondragon/kitstock-backend/pkg/metrics"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kitstock-backend/pkg/pagination"
	"github.com/angelmondragon/kitstock-backend/pkg/tracing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	ReasonOrderCommit  = "order_commit"
	ReasonOrderRestore = "order_cancel_restore"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines stock ledger operations.
type Service interface {
	ApplyDelta(ctx context.Context, tx *gorm.DB, partID uuid.UUID, delta int, entry Entry) (*Result, error)
	Adjust(ctx context.Context, input AdjustInput) (*Result, error)
	ListTransactions(ctx context.Context, partID uuid.UUID, params pagination.Params) ([]models.InventoryTransaction, string, error)
}

// Entry describes why stock moved.
type Entry struct {
	Type        enums.InventoryTransactionType
	Reason      string
	UnitCost    *decimal.Decimal
	Supplier    *string
	ReferenceID *uuid.UUID
	ActorID     *uuid.UUID
}

// Result reports the stock level before and after a delta.
type Result struct {
	PartID        uuid.UUID `json:"part_id"`
	PreviousStock int       `json:"previous_stock"`
	NewStock      int       `json:"new_stock"`
	Clamped       bool      `json:"clamped"`
	Low           bool      `json:"low_stock"`
}

// AdjustInput is a manual restock or correction entered by an admin.
type AdjustInput struct {
	PartID   uuid.UUID
	Delta    int
	Type     enums.InventoryTransactionType
	Reason   string
	UnitCost *decimal.Decimal
	Supplier *string
	ActorID  uuid.UUID
}

type service struct {
	tx      txRunner
	repo    Repository
	outbox  outboxPublisher
	logg    *logger.Logger
	metrics *metrics.InventoryMetrics
}

// NewService wires a ledger service.
func NewService(tx txRunner, repo Repository, publisher outboxPublisher, logg *logger.Logger, m *metrics.InventoryMetrics) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{tx: tx, repo: repo, outbox: publisher, logg: logg, metrics: m}, nil
}

func (s *service) ApplyDelta(ctx context.Context, tx *gorm.DB, partID uuid.UUID, delta int, entry Entry) (*Result, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock changes require a transaction")
	}
	if partID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part id is required")
	}
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if !entry.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", entry.Type))
	}

	ctx, span := tracing.Start(ctx, "ledger.ApplyDelta")
	defer span.End()
	span.SetAttributes(attribute.String("part.id", partID.String()), attribute.Int("delta", delta))

	repo := s.repo.WithTx(tx)
	part, err := repo.LockPart(ctx, partID)
	if err != nil {
		return nil, err
	}

	previous := part.StockQuantity
	next := previous + delta
	clamped := false
	if next < 0 {
		next = 0
		clamped = true
	}

	if err := repo.UpdateStock(ctx, partID, next); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(entry.Reason)
	if reason == "" {
		reason = string(entry.Type)
	}
	if err := repo.RecordTransaction(ctx, &models.InventoryTransaction{
		PartID:        partID,
		Type:          entry.Type,
		Quantity:      delta,
		PreviousStock: previous,
		NewStock:      next,
		Reason:        reason,
		Clamped:       clamped,
		UnitCost:      entry.UnitCost,
		Supplier:      entry.Supplier,
		ReferenceID:   entry.ReferenceID,
		ActorID:       entry.ActorID,
	}); err != nil {
		return nil, err
	}

	part.StockQuantity = next
	result := &Result{
		PartID:        partID,
		PreviousStock: previous,
		NewStock:      next,
		Clamped:       clamped,
		Low:           part.IsLow(),
	}

	if clamped {
		s.metrics.IncClamp(reason)
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"part_id":        partID.String(),
			"delta":          delta,
			"previous_stock": previous,
			"reason":         reason,
		}), "stock decrement clamped at zero")
	}

	// Only the crossing into low stock is signalled.
	if result.Low && previous > part.MinimumStockLevel {
		s.metrics.IncLowStock()
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockLow,
			AggregateType: enums.AggregatePart,
			AggregateID:   partID,
			Data: payloads.StockLowEvent{
				PartID:            partID,
				SKU:               part.SKU,
				StockQuantity:     next,
				MinimumStockLevel: part.MinimumStockLevel,
			},
		}); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*Result, error) {
	switch input.Type {
	case enums.InventoryTxRestock:
		if input.Delta <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
		}
	case enums.InventoryTxAdjustment:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustments must be restock or adjustment")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}

	actorID := input.ActorID
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.ApplyDelta(ctx, tx, input.PartID, input.Delta, Entry{
			Type:     input.Type,
			Reason:   input.Reason,
			UnitCost: input.UnitCost,
			Supplier: input.Supplier,
			ActorID:  &actorID,
		})
		if err != nil {
			return err
		}
		result = res
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregatePart,
			AggregateID:   input.PartID,
			Actor:         outbox.SystemRef(actorID, enums.ActorRoleAdmin),
			Data: payloads.StockAdjustedEvent{
				PartID:        input.PartID,
				Type:          input.Type,
				Delta:         input.Delta,
				PreviousStock: res.PreviousStock,
				NewStock:      res.NewStock,
				Clamped:       res.Clamped,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ListTransactions(ctx context.Context, partID uuid.UUID, params pagination.Params) ([]models.InventoryTransaction, string, error) {
	if partID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "part id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if _, err := s.repo.FindPart(ctx, partID); err != nil {
		return nil, "", err
	}
	rows, err := s.repo.ListTransactions(ctx, partID, cursor, params.Limit)
	if err != nil {
		return nil, "", err
	}
	page, next := pagination.Trim(rows, params.Limit, func(t models.InventoryTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	return page, next, nil
}
