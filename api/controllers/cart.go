package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kitstock-backend/api/responses"
	"github.com/angelmondragon/kitstock-backend/api/validators"
	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
)

type reservationManager interface {
	Reserve(ctx context.Context, customerID, setID uuid.UUID, quantity int) (*models.CartReservation, error)
	ReleaseAll(ctx context.Context, customerID uuid.UUID) (int64, error)
	Release(ctx context.Context, customerID, setID uuid.UUID) (int64, error)
	ListActive(ctx context.Context, customerID uuid.UUID) ([]models.CartReservation, error)
}

type reserveRequest struct {
	SetID    uuid.UUID `json:"set_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"gt=0"`
}

type reservationResponse struct {
	ID        uuid.UUID `json:"id"`
	SetID     uuid.UUID `json:"set_id"`
	Quantity  int       `json:"quantity"`
	ExpiresAt time.Time `json:"expires_at"`
}

type releaseResponse struct {
	Released int64 `json:"released"`
}

func newReservationResponse(r models.CartReservation) reservationResponse {
	return reservationResponse{ID: r.ID, SetID: r.SetID, Quantity: r.Quantity, ExpiresAt: r.ExpiresAt}
}

// CartReserve places or refreshes the caller's hold on a set.
func CartReserve(svc reservationManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reserveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		hold, err := svc.Reserve(r.Context(), actor.ID, payload.SetID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newReservationResponse(*hold))
	}
}

func CartList(svc reservationManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		holds, err := svc.ListActive(r.Context(), actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]reservationResponse, 0, len(holds))
		for _, hold := range holds {
			out = append(out, newReservationResponse(hold))
		}
		responses.WriteSuccess(w, out)
	}
}

func CartReleaseAll(svc reservationManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		n, err := svc.ReleaseAll(r.Context(), actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, releaseResponse{Released: n})
	}
}

func CartRelease(svc reservationManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		setID, err := validators.ParseUUIDParam(r, "setID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		n, err := svc.Release(r.Context(), actor.ID, setID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if n == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found"))
			return
		}
		responses.WriteSuccess(w, releaseResponse{Released: n})
	}
}
