package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/kitstock-backend/api/responses"
	"github.com/angelmondragon/kitstock-backend/api/validators"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
)

type availabilityReader interface {
	GetAvailability(ctx context.Context, setID uuid.UUID) (int, error)
	GetMany(ctx context.Context, setIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

type availabilityResponse struct {
	SetID     uuid.UUID `json:"set_id"`
	Available int       `json:"available"`
}

// SetAvailability returns how many units of one set can be sold right now.
func SetAvailability(svc availabilityReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "availability service unavailable"))
			return
		}
		setID, err := validators.ParseUUIDParam(r, "setID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		available, err := svc.GetAvailability(r.Context(), setID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availabilityResponse{SetID: setID, Available: available})
	}
}

// SetAvailabilityBatch answers ?ids=a,b,c in request order.
func SetAvailabilityBatch(svc availabilityReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "availability service unavailable"))
			return
		}
		ids, err := validators.ParseQueryUUIDs(r, "ids")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		counts, err := svc.GetMany(r.Context(), ids)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]availabilityResponse, 0, len(ids))
		for _, id := range ids {
			out = append(out, availabilityResponse{SetID: id, Available: counts[id]})
		}
		responses.WriteSuccess(w, out)
	}
}
