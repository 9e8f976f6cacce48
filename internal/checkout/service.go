// Package checkout turns a cart into an order: it commits stock for every
// item, clears the customer's holds and queues order_created, all in one
// transaction.
package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/angelmondragon/kitstock-backend/internal/orders"
	"github.com/angelmondragon/kitstock-backend/internal/sets"
	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	"github.com/angelmondragon/kitstock-backend/pkg/metrics"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kitstock-backend/pkg/tracing"
	"github.com/angelmondragon/kitstock-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const orderNumberSequence = "order_number"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type sequencer interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

type holdReleaser interface {
	ReleaseAllTx(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (int64, error)
}

type stockCommitter interface {
	Commit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, items []models.OrderItem, actorID *uuid.UUID) error
}

type offeringLoader interface {
	FindOffering(ctx context.Context, tx *gorm.DB, offeringID uuid.UUID) (*models.ProviderOffering, error)
}

// Service places orders.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
}

// CreateOrderInput is a customer's order. Items without a SetID are
// non-inventory lines such as fees.
type CreateOrderInput struct {
	CustomerID    uuid.UUID
	ProviderID    *uuid.UUID
	Items         []ItemInput
	ShippingInfo  *types.ShippingInfo
	TotalAmount   *decimal.Decimal
	InitialStatus *enums.OrderStatus
}

// ItemInput is one requested order line.
type ItemInput struct {
	SetID       *uuid.UUID
	OfferingID  *uuid.UUID
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// CreateOrderResult summarises the committed order.
type CreateOrderResult struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Status      enums.OrderStatus `json:"status"`
}

// Deps bundles what CreateOrder touches.
type Deps struct {
	Tx        txRunner
	Orders    orders.Repository
	Sets      sets.Repository
	Stock     stockCommitter
	Holds     holdReleaser
	Offerings offeringLoader
	Sequence  sequencer
	Outbox    outboxPublisher
	Logger    *logger.Logger
	Metrics   *metrics.InventoryMetrics
}

type service struct {
	tx        txRunner
	orders    orders.Repository
	sets      sets.Repository
	stock     stockCommitter
	holds     holdReleaser
	offerings offeringLoader
	sequence  sequencer
	outbox    outboxPublisher
	logg      *logger.Logger
	metrics   *metrics.InventoryMetrics
}

// NewService builds the checkout service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Sets == nil:
		return nil, fmt.Errorf("sets repository required")
	case deps.Stock == nil:
		return nil, fmt.Errorf("stock committer required")
	case deps.Holds == nil:
		return nil, fmt.Errorf("hold releaser required")
	case deps.Offerings == nil:
		return nil, fmt.Errorf("offering loader required")
	case deps.Sequence == nil:
		return nil, fmt.Errorf("order number sequence required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:        deps.Tx,
		orders:    deps.Orders,
		sets:      deps.Sets,
		stock:     deps.Stock,
		holds:     deps.Holds,
		offerings: deps.Offerings,
		sequence:  deps.Sequence,
		outbox:    deps.Outbox,
		logg:      logg,
		metrics:   deps.Metrics,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	status, err := validateInput(input)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.Start(ctx, "checkout.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.Int("items", len(input.Items)))

	// Burned sequence values on rollback only leave gaps in order numbers.
	seq, err := s.sequence.NextSequence(ctx, orderNumberSequence)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
	}

	var result *CreateOrderResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items, err := s.resolveItems(ctx, tx, input)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, item := range items {
			total = total.Add(item.LineTotal)
		}
		if input.TotalAmount != nil {
			total = *input.TotalAmount
		}

		order := &models.Order{
			OrderNumber:  FormatOrderNumber(seq),
			CustomerID:   input.CustomerID,
			ProviderID:   input.ProviderID,
			Status:       status,
			TotalAmount:  total,
			ShippingInfo: input.ShippingInfo,
			Items:        items,
		}
		if err := s.orders.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := s.stock.Commit(ctx, tx, order.ID, order.Items, &input.CustomerID); err != nil {
			return err
		}
		if _, err := s.holds.ReleaseAllTx(ctx, tx, input.CustomerID); err != nil {
			return err
		}
		if err := s.emitCreated(ctx, tx, order); err != nil {
			return err
		}

		result = &CreateOrderResult{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			TotalAmount: order.TotalAmount,
			Status:      order.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	channel := "direct"
	if input.ProviderID != nil {
		channel = "provider"
	}
	s.metrics.IncOrderCreated(channel)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     result.OrderID.String(),
		"order_number": result.OrderNumber,
		"customer_id":  input.CustomerID.String(),
	}), "order created")
	return result, nil
}

const orderNumberPrefix = "KS-"

// FormatOrderNumber renders a sequence value as a customer-facing number.
func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("%s%08d", orderNumberPrefix, seq)
}

// ParseOrderNumber is the inverse of FormatOrderNumber.
func ParseOrderNumber(number string) (int64, error) {
	digits, ok := strings.CutPrefix(number, orderNumberPrefix)
	if !ok {
		return 0, fmt.Errorf("order number %q lacks the %s prefix", number, orderNumberPrefix)
	}
	seq, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || seq <= 0 {
		return 0, fmt.Errorf("order number %q is malformed", number)
	}
	return seq, nil
}

type sequenceRaiser interface {
	RaiseSequence(ctx context.Context, name string, floor int64) (int64, error)
}

// SyncOrderSequence lifts the order number counter to the highest number
// already stored, so a flushed or restored redis cannot hand out a number
// twice. It returns the counter value after the sync.
func SyncOrderSequence(ctx context.Context, repo orders.Repository, seq sequenceRaiser) (int64, error) {
	latest, err := repo.LatestOrderNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("load latest order number: %w", err)
	}
	var floor int64
	if latest != "" {
		if floor, err = ParseOrderNumber(latest); err != nil {
			return 0, err
		}
	}
	return seq.RaiseSequence(ctx, orderNumberSequence, floor)
}

func validateInput(input CreateOrderInput) (enums.OrderStatus, error) {
	if input.CustomerID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if len(input.Items) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	for i, item := range input.Items {
		if item.Quantity <= 0 {
			return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: quantity must be positive", i))
		}
		if item.UnitPrice.IsNegative() {
			return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: unit price must not be negative", i))
		}
	}
	if input.TotalAmount != nil && input.TotalAmount.IsNegative() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "total amount must not be negative")
	}
	if input.ProviderID != nil && *input.ProviderID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "provider id must not be empty")
	}
	status := enums.OrderStatusPendingPayment
	if input.InitialStatus != nil {
		switch *input.InitialStatus {
		case enums.OrderStatusPending, enums.OrderStatusPendingPayment:
			status = *input.InitialStatus
		default:
			return "", pkgerrors.New(pkgerrors.CodeValidation, "initial status must be pending or pending_payment")
		}
	}
	return status, nil
}

// resolveItems checks sets and offerings and builds the order lines.
func (s *service) resolveItems(ctx context.Context, tx *gorm.DB, input CreateOrderInput) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(input.Items))
	setIDs := make([]uuid.UUID, 0, len(input.Items))
	for i, in := range input.Items {
		item := models.OrderItem{
			SetID:       in.SetID,
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			LineTotal:   in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		}
		if in.OfferingID != nil && *in.OfferingID != uuid.Nil {
			offering, err := s.offerings.FindOffering(ctx, tx, *in.OfferingID)
			if err != nil {
				return nil, err
			}
			if input.ProviderID == nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: provider id is required for offering items", i))
			}
			if offering.ProviderID != *input.ProviderID {
				return nil, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("items[%d]: offering belongs to another provider", i))
			}
			if !offering.Sellable() {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("items[%d]: offering is not available", i))
			}
			if item.SetID == nil {
				setID := offering.SetID
				item.SetID = &setID
			} else if *item.SetID != offering.SetID {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: offering does not match set", i))
			}
			offeringID := offering.ID
			item.OfferingID = &offeringID
		}
		if !item.IsSentinel() {
			setIDs = append(setIDs, *item.SetID)
		}
		items = append(items, item)
	}

	found, err := s.sets.WithTx(tx).FindSetsByIDs(ctx, setIDs)
	if err != nil {
		return nil, err
	}
	for i, item := range items {
		if item.IsSentinel() {
			continue
		}
		set, ok := found[*item.SetID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("items[%d]: set not found", i))
		}
		if set.ProviderID != nil && *set.ProviderID != uuid.Nil {
			if input.ProviderID == nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: provider id is required for provider-sold sets", i))
			}
			if *set.ProviderID != *input.ProviderID {
				return nil, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("items[%d]: set is sold by another provider", i))
			}
		}
		if items[i].Description == "" {
			items[i].Description = set.Name
		}
	}
	return items, nil
}

func (s *service) emitCreated(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	summary := make([]payloads.OrderItemSummary, 0, len(order.Items))
	for _, item := range order.Items {
		summary = append(summary, payloads.OrderItemSummary{
			SetID:     item.SetID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         outbox.SystemRef(order.CustomerID, enums.ActorRoleCustomer),
		Data: payloads.OrderCreatedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			CustomerID:  order.CustomerID,
			ProviderID:  order.ProviderID,
			Status:      order.Status,
			TotalAmount: order.TotalAmount,
			Items:       summary,
		},
	})
}
