package orders

import (
	"time"

	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	"github.com/angelmondragon/kitstock-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatusResult is returned by UpdateStatus.
type StatusResult struct {
	OrderID       uuid.UUID         `json:"order_id"`
	Status        enums.OrderStatus `json:"status"`
	StockRestored bool              `json:"stock_restored"`
}

// DeleteResult is returned by DeletePermanently.
type DeleteResult struct {
	OrderID       uuid.UUID `json:"order_id"`
	StockRestored bool      `json:"stock_restored"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID           uuid.UUID           `json:"id"`
	OrderNumber  string              `json:"order_number"`
	CustomerID   uuid.UUID           `json:"customer_id"`
	ProviderID   *uuid.UUID          `json:"provider_id,omitempty"`
	Status       enums.OrderStatus   `json:"status"`
	TotalAmount  decimal.Decimal     `json:"total_amount"`
	ShippingInfo *types.ShippingInfo `json:"shipping_info,omitempty"`
	Items        []ItemDTO           `json:"items"`
	History      []HistoryDTO        `json:"history,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// ItemDTO is one order line.
type ItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	SetID       *uuid.UUID      `json:"set_id,omitempty"`
	OfferingID  *uuid.UUID      `json:"offering_id,omitempty"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// HistoryDTO is one recorded status change.
type HistoryDTO struct {
	From      enums.OrderStatus `json:"from_status"`
	To        enums.OrderStatus `json:"to_status"`
	ActorID   uuid.UUID         `json:"actor_id"`
	ActorRole enums.ActorRole   `json:"actor_role"`
	Notes     *string           `json:"notes,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewOrderDTO maps an order row and its optional history.
func NewOrderDTO(order models.Order, history []models.OrderStatusHistory) OrderDTO {
	dto := OrderDTO{
		ID:           order.ID,
		OrderNumber:  order.OrderNumber,
		CustomerID:   order.CustomerID,
		ProviderID:   order.ProviderID,
		Status:       order.Status,
		TotalAmount:  order.TotalAmount,
		ShippingInfo: order.ShippingInfo,
		Items:        make([]ItemDTO, 0, len(order.Items)),
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, ItemDTO{
			ID:          item.ID,
			SetID:       item.SetID,
			OfferingID:  item.OfferingID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	for _, h := range history {
		dto.History = append(dto.History, HistoryDTO{
			From:      h.FromStatus,
			To:        h.ToStatus,
			ActorID:   h.ActorID,
			ActorRole: h.ActorRole,
			Notes:     h.Notes,
			CreatedAt: h.CreatedAt,
		})
	}
	return dto
}
