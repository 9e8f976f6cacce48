package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/kitstock-backend/api/responses"
	"github.com/angelmondragon/kitstock-backend/api/validators"
	"github.com/angelmondragon/kitstock-backend/internal/providers"
	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	"github.com/angelmondragon/kitstock-backend/pkg/types"
)

type offeringManager interface {
	CreateOffering(ctx context.Context, providerID uuid.UUID, input providers.CreateOfferingInput) (*models.ProviderOffering, error)
	UpdateQuantity(ctx context.Context, providerID, offeringID uuid.UUID, quantity int) (*models.ProviderOffering, error)
	SetAdminStatus(ctx context.Context, offeringID uuid.UUID, status enums.OfferingAdminStatus) (*models.ProviderOffering, error)
	SetVisibility(ctx context.Context, actor types.Actor, offeringID uuid.UUID, visible bool) (*models.ProviderOffering, error)
	List(ctx context.Context, actor types.Actor) ([]models.ProviderOffering, error)
}

type createOfferingRequest struct {
	SetID             uuid.UUID       `json:"set_id" validate:"required"`
	Price             decimal.Decimal `json:"price"`
	AvailableQuantity int             `json:"available_quantity" validate:"gte=0"`
	Inactive          bool            `json:"inactive"`
}

type quantityRequest struct {
	AvailableQuantity int `json:"available_quantity" validate:"gte=0"`
}

type visibilityRequest struct {
	Visible *bool `json:"visible" validate:"required"`
}

type adminStatusRequest struct {
	Status enums.OfferingAdminStatus `json:"status" validate:"required,enum"`
}

type offeringResponse struct {
	ID                uuid.UUID                 `json:"id"`
	ProviderID        uuid.UUID                 `json:"provider_id"`
	SetID             uuid.UUID                 `json:"set_id"`
	Price             decimal.Decimal           `json:"price"`
	AvailableQuantity int                       `json:"available_quantity"`
	IsActive          bool                      `json:"is_active"`
	AdminStatus       enums.OfferingAdminStatus `json:"admin_status"`
	VisibleToAdmin    bool                      `json:"visible_to_admin"`
	VisibleToProvider bool                      `json:"visible_to_provider"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

func newOfferingResponse(o models.ProviderOffering) offeringResponse {
	return offeringResponse{
		ID:                o.ID,
		ProviderID:        o.ProviderID,
		SetID:             o.SetID,
		Price:             o.Price,
		AvailableQuantity: o.AvailableQuantity,
		IsActive:          o.IsActive,
		AdminStatus:       o.AdminStatus,
		VisibleToAdmin:    o.VisibleToAdmin,
		VisibleToProvider: o.VisibleToProvider,
		UpdatedAt:         o.UpdatedAt,
	}
}

func ProviderCreateOffering(svc offeringManager, logg *logger.Logger) http.HandlerFunc {
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
		var payload createOfferingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offering, err := svc.CreateOffering(r.Context(), providerID, providers.CreateOfferingInput{
			SetID:             payload.SetID,
			Price:             payload.Price,
			AvailableQuantity: payload.AvailableQuantity,
			Inactive:          payload.Inactive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOfferingResponse(*offering))
	}
}

// OfferingList returns the offerings visible to the caller's role.
func OfferingList(svc offeringManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]offeringResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, newOfferingResponse(row))
		}
		responses.WriteSuccess(w, out)
	}
}

func ProviderUpdateQuantity(svc offeringManager, logg *logger.Logger) http.HandlerFunc {
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
		offeringID, err := validators.ParseUUIDParam(r, "offeringID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload quantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offering, err := svc.UpdateQuantity(r.Context(), providerID, offeringID, payload.AvailableQuantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOfferingResponse(*offering))
	}
}

// OfferingSetVisibility toggles the caller role's own visibility flag.
func OfferingSetVisibility(svc offeringManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offeringID, err := validators.ParseUUIDParam(r, "offeringID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload visibilityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offering, err := svc.SetVisibility(r.Context(), actor, offeringID, *payload.Visible)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOfferingResponse(*offering))
	}
}

func AdminOfferingStatus(svc offeringManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offeringID, err := validators.ParseUUIDParam(r, "offeringID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adminStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offering, err := svc.SetAdminStatus(r.Context(), offeringID, payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOfferingResponse(*offering))
	}
}
