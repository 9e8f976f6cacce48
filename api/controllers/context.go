package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/kitstock-backend/api/middleware"
	"github.com/angelmondragon/kitstock-backend/api/validators"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/angelmondragon/kitstock-backend/pkg/pagination"
	"github.com/angelmondragon/kitstock-backend/pkg/types"
)

func requireActor(r *http.Request) (types.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return types.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	return actor, nil
}

func requireProviderID(actor types.Actor) (uuid.UUID, error) {
	if actor.ProviderID == nil || *actor.ProviderID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "provider context missing")
	}
	return *actor.ProviderID, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
