package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/kitstock-backend/api/responses"
	"github.com/angelmondragon/kitstock-backend/api/validators"
	"github.com/angelmondragon/kitstock-backend/internal/ledger"
	"github.com/angelmondragon/kitstock-backend/internal/sets"
	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	"github.com/angelmondragon/kitstock-backend/pkg/pagination"
)

type catalogWriter interface {
	CreatePart(ctx context.Context, input sets.CreatePartInput) (*models.Part, error)
	CreateSet(ctx context.Context, input sets.CreateSetInput) (*models.Set, error)
}

type stockAdjuster interface {
	Adjust(ctx context.Context, input ledger.AdjustInput) (*ledger.Result, error)
	ListTransactions(ctx context.Context, partID uuid.UUID, params pagination.Params) ([]models.InventoryTransaction, string, error)
}

type createPartRequest struct {
	SKU               string `json:"sku" validate:"required,max=64"`
	Name              string `json:"name" validate:"required,max=255"`
	InitialStock      int    `json:"initial_stock" validate:"gte=0"`
	MinimumStockLevel int    `json:"minimum_stock_level" validate:"gte=0"`
}

type partResponse struct {
	ID                uuid.UUID `json:"id"`
	SKU               string    `json:"sku"`
	Name              string    `json:"name"`
	StockQuantity     int       `json:"stock_quantity"`
	MinimumStockLevel int       `json:"minimum_stock_level"`
	LowStock          bool      `json:"low_stock"`
}

type createSetRequest struct {
	Name       string           `json:"name" validate:"required,max=255"`
	ProviderID *uuid.UUID       `json:"provider_id"`
	BasePrice  decimal.Decimal  `json:"base_price"`
	Inactive   bool             `json:"inactive"`
	Lines      []setLinePayload `json:"lines" validate:"required,min=1,dive"`
}

type setLinePayload struct {
	PartID         uuid.UUID `json:"part_id" validate:"required"`
	QuantityPerSet int       `json:"quantity_per_set" validate:"gt=0"`
	IsOptional     bool      `json:"is_optional"`
}

type setResponse struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	Active     bool              `json:"active"`
	ProviderID *uuid.UUID        `json:"provider_id,omitempty"`
	BasePrice  decimal.Decimal   `json:"base_price"`
	Lines      []setLineResponse `json:"lines"`
}

type setLineResponse struct {
	PartID         uuid.UUID `json:"part_id"`
	QuantityPerSet int       `json:"quantity_per_set"`
	IsOptional     bool      `json:"is_optional"`
}

type adjustmentRequest struct {
	Delta    int                            `json:"delta" validate:"required"`
	Type     enums.InventoryTransactionType `json:"type" validate:"required,enum"`
	Reason   string                         `json:"reason" validate:"required,max=255"`
	UnitCost *decimal.Decimal               `json:"unit_cost"`
	Supplier *string                        `json:"supplier" validate:"omitempty,max=255"`
}

type transactionResponse struct {
	ID            uuid.UUID                      `json:"id"`
	Type          enums.InventoryTransactionType `json:"type"`
	Quantity      int                            `json:"quantity"`
	PreviousStock int                            `json:"previous_stock"`
	NewStock      int                            `json:"new_stock"`
	Reason        string                         `json:"reason"`
	Clamped       bool                           `json:"clamped"`
	UnitCost      *decimal.Decimal               `json:"unit_cost,omitempty"`
	Supplier      *string                        `json:"supplier,omitempty"`
	ReferenceID   *uuid.UUID                     `json:"reference_id,omitempty"`
	ActorID       *uuid.UUID                     `json:"actor_id,omitempty"`
	CreatedAt     time.Time                      `json:"created_at"`
}

func newPartResponse(p models.Part) partResponse {
	return partResponse{
		ID:                p.ID,
		SKU:               p.SKU,
		Name:              p.Name,
		StockQuantity:     p.StockQuantity,
		MinimumStockLevel: p.MinimumStockLevel,
		LowStock:          p.IsLow(),
	}
}

func newSetResponse(s models.Set) setResponse {
	out := setResponse{
		ID:         s.ID,
		Name:       s.Name,
		Active:     s.Active,
		ProviderID: s.ProviderID,
		BasePrice:  s.BasePrice,
		Lines:      make([]setLineResponse, 0, len(s.Parts)),
	}
	for _, line := range s.Parts {
		out.Lines = append(out.Lines, setLineResponse{PartID: line.PartID, QuantityPerSet: line.QuantityPerSet, IsOptional: line.IsOptional})
	}
	return out
}

func newTransactionResponse(t models.InventoryTransaction) transactionResponse {
	return transactionResponse{
		ID:            t.ID,
		Type:          t.Type,
		Quantity:      t.Quantity,
		PreviousStock: t.PreviousStock,
		NewStock:      t.NewStock,
		Reason:        t.Reason,
		Clamped:       t.Clamped,
		UnitCost:      t.UnitCost,
		Supplier:      t.Supplier,
		ReferenceID:   t.ReferenceID,
		ActorID:       t.ActorID,
		CreatedAt:     t.CreatedAt,
	}
}

func AdminCreatePart(svc catalogWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createPartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		part, err := svc.CreatePart(r.Context(), sets.CreatePartInput{
			SKU:               validators.SanitizeString(payload.SKU, 64),
			Name:              validators.SanitizeString(payload.Name, 255),
			InitialStock:      payload.InitialStock,
			MinimumStockLevel: payload.MinimumStockLevel,
			ActorID:           actor.ID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPartResponse(*part))
	}
}

func AdminCreateSet(svc catalogWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createSetRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := sets.CreateSetInput{
			Name:       validators.SanitizeString(payload.Name, 255),
			ProviderID: payload.ProviderID,
			BasePrice:  payload.BasePrice,
			Inactive:   payload.Inactive,
		}
		for _, line := range payload.Lines {
			input.Lines = append(input.Lines, sets.LineInput{PartID: line.PartID, QuantityPerSet: line.QuantityPerSet, IsOptional: line.IsOptional})
		}
		set, err := svc.CreateSet(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSetResponse(*set))
	}
}

// AdminAdjustPart books a manual restock, correction or damage write-off.
func AdminAdjustPart(svc stockAdjuster, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		partID, err := validators.ParseUUIDParam(r, "partID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adjustmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Adjust(r.Context(), ledger.AdjustInput{
			PartID:   partID,
			Delta:    payload.Delta,
			Type:     payload.Type,
			Reason:   validators.SanitizeString(payload.Reason, 255),
			UnitCost: payload.UnitCost,
			Supplier: payload.Supplier,
			ActorID:  actor.ID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func AdminPartTransactions(svc stockAdjuster, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partID, err := validators.ParseUUIDParam(r, "partID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, next, err := svc.ListTransactions(r.Context(), partID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]transactionResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, newTransactionResponse(row))
		}
		responses.WriteSuccess(w, responses.NewPage(out, next))
	}
}
