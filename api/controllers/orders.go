package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/kitstock-backend/api/responses"
	"github.com/angelmondragon/kitstock-backend/api/validators"
	"github.com/angelmondragon/kitstock-backend/internal/checkout"
	internalorders "github.com/angelmondragon/kitstock-backend/internal/orders"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	"github.com/angelmondragon/kitstock-backend/pkg/pagination"
	"github.com/angelmondragon/kitstock-backend/pkg/types"
)

type orderCreator interface {
	CreateOrder(ctx context.Context, input checkout.CreateOrderInput) (*checkout.CreateOrderResult, error)
}

type orderReader interface {
	Get(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*internalorders.OrderDTO, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]internalorders.OrderDTO, string, error)
	ListForProvider(ctx context.Context, providerID uuid.UUID, params pagination.Params) ([]internalorders.OrderDTO, string, error)
	ListAll(ctx context.Context, status *enums.OrderStatus, params pagination.Params) ([]internalorders.OrderDTO, string, error)
}

type orderMutator interface {
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, actor types.Actor, notes string) (*internalorders.StatusResult, error)
	DeletePermanently(ctx context.Context, orderID uuid.UUID, restoreStock bool, actor types.Actor) (*internalorders.DeleteResult, error)
}

type createOrderRequest struct {
	CustomerID    *uuid.UUID          `json:"customer_id"`
	ProviderID    *uuid.UUID          `json:"provider_id"`
	Items         []orderItemPayload  `json:"items" validate:"required,min=1,dive"`
	ShippingInfo  *types.ShippingInfo `json:"shipping_info" validate:"omitempty"`
	TotalAmount   *decimal.Decimal    `json:"total_amount"`
	InitialStatus *enums.OrderStatus  `json:"initial_status"`
}

type orderItemPayload struct {
	SetID       *uuid.UUID      `json:"set_id"`
	OfferingID  *uuid.UUID      `json:"offering_id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type updateStatusRequest struct {
	Status enums.OrderStatus `json:"status" validate:"required,enum"`
	Notes  string            `json:"notes" validate:"max=500"`
}

// toInput scopes the order to the caller. Only admins may place an order on
// behalf of another customer or pick its starting status.
func (p createOrderRequest) toInput(actor types.Actor) (checkout.CreateOrderInput, error) {
	input := checkout.CreateOrderInput{
		CustomerID:   actor.ID,
		ProviderID:   p.ProviderID,
		ShippingInfo: p.ShippingInfo,
		TotalAmount:  p.TotalAmount,
	}
	if p.CustomerID != nil || p.InitialStatus != nil {
		if actor.Role != enums.ActorRoleAdmin {
			return input, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may set customer_id or initial_status")
		}
		if p.CustomerID != nil {
			input.CustomerID = *p.CustomerID
		}
		input.InitialStatus = p.InitialStatus
	}
	for _, item := range p.Items {
		input.Items = append(input.Items, checkout.ItemInput{
			SetID:       item.SetID,
			OfferingID:  item.OfferingID,
			Description: validators.SanitizeString(item.Description, 255),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return input, nil
}

// OrderCreate commits an order and its stock movement in one transaction.
func OrderCreate(svc orderCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// OrderList pages through the caller's own orders.
func OrderList(svc orderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var (
			list []internalorders.OrderDTO
			next string
		)
		switch actor.Role {
		case enums.ActorRoleProvider:
			providerID, perr := requireProviderID(actor)
			if perr != nil {
				responses.WriteError(r.Context(), logg, w, perr)
				return
			}
			list, next, err = svc.ListForProvider(r.Context(), providerID, params)
		case enums.ActorRoleAdmin:
			list, next, err = svc.ListAll(r.Context(), nil, params)
		default:
			list, next, err = svc.ListForCustomer(r.Context(), actor.ID, params)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, responses.NewPage(list, next))
	}
}

// ProviderOrderList lists orders placed against the caller's provider.
func ProviderOrderList(svc orderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		providerID, err := requireProviderID(actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, next, err := svc.ListForProvider(r.Context(), providerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, responses.NewPage(list, next))
	}
}

// AdminOrderList lists every order, optionally filtered by ?status=.
func AdminOrderList(svc orderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var status *enums.OrderStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, perr := enums.ParseOrderStatus(raw)
			if perr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, perr, "invalid status filter"))
				return
			}
			status = &parsed
		}
		list, next, err := svc.ListAll(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, responses.NewPage(list, next))
	}
}

func OrderDetail(svc orderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderUpdateStatus moves an order along its lifecycle. Cancelling restores stock.
func OrderUpdateStatus(svc orderMutator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.UpdateStatus(r.Context(), orderID, payload.Status, actor, validators.SanitizeString(payload.Notes, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminOrderDelete hard-deletes an order, restoring stock when ?restore_stock=true.
func AdminOrderDelete(svc orderMutator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		restore, err := validators.ParseQueryBool(r, "restore_stock", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.DeletePermanently(r.Context(), orderID, restore, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
