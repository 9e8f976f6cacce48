// Package orders runs the order lifecycle after checkout: status transitions,
// cancellation with stock restoration, hard deletes, and listings.
package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	"github.com/angelmondragon/kitstock-backend/pkg/metrics"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kitstock-backend/pkg/pagination"
	"github.com/angelmondragon/kitstock-backend/pkg/tracing"
	"github.com/angelmondragon/kitstock-backend/pkg/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockMover interface {
	Restore(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, items []models.OrderItem, actorID *uuid.UUID) error
}

// Service exposes order lifecycle operations.
type Service interface {
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, actor types.Actor, notes string) (*StatusResult, error)
	DeletePermanently(ctx context.Context, orderID uuid.UUID, restoreStock bool, actor types.Actor) (*DeleteResult, error)
	Get(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*OrderDTO, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]OrderDTO, string, error)
	ListForProvider(ctx context.Context, providerID uuid.UUID, params pagination.Params) ([]OrderDTO, string, error)
	ListAll(ctx context.Context, status *enums.OrderStatus, params pagination.Params) ([]OrderDTO, string, error)
}

type service struct {
	tx      txRunner
	repo    Repository
	stock   stockMover
	outbox  outboxPublisher
	logg    *logger.Logger
	metrics *metrics.InventoryMetrics
}

// NewService builds the orders service.
func NewService(tx txRunner, repo Repository, stock stockMover, publisher outboxPublisher, logg *logger.Logger, m *metrics.InventoryMetrics) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock mover required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{tx: tx, repo: repo, stock: stock, outbox: publisher, logg: logg, metrics: m}, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, actor types.Actor, notes string) (*StatusResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
	}
	if actor.ID == uuid.Nil || !actor.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor is required")
	}

	ctx, span := tracing.Start(ctx, "orders.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()), attribute.String("order.to", string(status)))

	var (
		result *StatusResult
		from   enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorizeTransition(order, status, actor); err != nil {
			return err
		}
		if !CanTransition(order.Status, status) {
			return pkgerrors.InvalidTransition(string(order.Status), string(status))
		}
		from = order.Status

		restored := false
		if status == enums.OrderStatusCancelled && Restorable(order.Status) {
			if err := s.stock.Restore(ctx, tx, order.ID, order.Items, &actor.ID); err != nil {
				return err
			}
			restored = true
		}

		if err := repo.UpdateStatus(ctx, order.ID, status); err != nil {
			return err
		}
		if err := repo.AppendHistory(ctx, &models.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: order.Status,
			ToStatus:   status,
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Notes:      optionalNotes(notes),
		}); err != nil {
			return err
		}

		data := payloads.OrderStatusChangedEvent{
			OrderID:       order.ID,
			CustomerID:    order.CustomerID,
			ProviderID:    order.ProviderID,
			From:          order.Status,
			To:            status,
			StockRestored: restored,
			Notes:         strings.TrimSpace(notes),
		}
		ref := outbox.RefFor(actor)
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         ref,
			Data:          data,
		}); err != nil {
			return err
		}
		if status == enums.OrderStatusCancelled {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCancelled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         ref,
				Data:          data,
			}); err != nil {
				return err
			}
		}

		result = &StatusResult{OrderID: order.ID, Status: status, StockRestored: restored}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(from), string(status))
	if result.StockRestored {
		s.metrics.IncRestore()
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":   orderID.String(),
		"from":       string(from),
		"to":         string(status),
		"actor_role": actor.Role.String(),
	}), "order status updated")
	return result, nil
}

// authorizeTransition applies the per-role rules. Admins may do anything
// except ship a provider's order.
func authorizeTransition(order *models.Order, to enums.OrderStatus, actor types.Actor) error {
	switch actor.Role {
	case enums.ActorRoleAdmin:
		if to == enums.OrderStatusShipped && order.IsProviderSold() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "provider orders are shipped by the provider")
		}
		return nil
	case enums.ActorRoleProvider:
		if !order.IsProviderSold() || !actor.OwnsProvider(order.ProviderID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another provider")
		}
		return nil
	case enums.ActorRoleCustomer:
		if order.CustomerID != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
		}
		if to != enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeForbidden, "customers may only cancel orders")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "role may not change order status")
	}
}

func (s *service) DeletePermanently(ctx context.Context, orderID uuid.UUID, restoreStock bool, actor types.Actor) (*DeleteResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if actor.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may delete orders")
	}

	var result *DeleteResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		restored := false
		if restoreStock && order.Status != enums.OrderStatusCancelled {
			if err := s.stock.Restore(ctx, tx, order.ID, order.Items, &actor.ID); err != nil {
				return err
			}
			restored = true
		}
		if err := repo.DeleteOrder(ctx, order.ID); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.RefFor(actor),
			Data: payloads.OrderDeletedEvent{
				OrderID:       order.ID,
				LastStatus:    order.Status,
				StockRestored: restored,
				DeletedAt:     time.Now().UTC(),
			},
		}); err != nil {
			return err
		}
		result = &DeleteResult{OrderID: order.ID, StockRestored: restored}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.StockRestored {
		s.metrics.IncRestore()
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"order_id":       orderID.String(),
		"stock_restored": result.StockRestored,
	}), "order permanently deleted")
	return result, nil
}

func (s *service) Get(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case enums.ActorRoleAdmin:
	case enums.ActorRoleProvider:
		if !actor.OwnsProvider(order.ProviderID) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
	case enums.ActorRoleCustomer:
		if order.CustomerID != actor.ID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role may not view orders")
	}
	history, err := s.repo.ListHistory(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(*order, history)
	return &dto, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]OrderDTO, string, error) {
	if customerID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	return s.list(ctx, ListFilter{CustomerID: &customerID}, params)
}

func (s *service) ListForProvider(ctx context.Context, providerID uuid.UUID, params pagination.Params) ([]OrderDTO, string, error) {
	if providerID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "provider id is required")
	}
	return s.list(ctx, ListFilter{ProviderID: &providerID}, params)
}

func (s *service) ListAll(ctx context.Context, status *enums.OrderStatus, params pagination.Params) ([]OrderDTO, string, error) {
	if status != nil && !status.IsValid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", *status))
	}
	return s.list(ctx, ListFilter{Status: status}, params)
}

func (s *service) list(ctx context.Context, filter ListFilter, params pagination.Params) ([]OrderDTO, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListOrders(ctx, filter, cursor, params.Limit)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	out := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewOrderDTO(row, nil))
	}
	return out, next, nil
}

func optionalNotes(notes string) *string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil
	}
	return &notes
}
