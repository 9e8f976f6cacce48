package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/angelmondragon/kitstock-backend/api/responses"
	"github.com/angelmondragon/kitstock-backend/pkg/auth"
	"github.com/angelmondragon/kitstock-backend/pkg/config"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
)

// Auth requires an "Authorization: Bearer <jwt>" header and stores the
// verified actor on the request context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, _ := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
			token = strings.TrimSpace(token)
			if !strings.EqualFold(scheme, "Bearer") || token == "" {
				rejectUnauthenticated(w, r, logg, "bearer token required", nil)
				return
			}

			actor, err := auth.Verify(cfg, token)
			if err != nil {
				msg := "invalid access token"
				if errors.Is(err, auth.ErrTokenExpired) {
					msg = "access token expired"
				}
				rejectUnauthenticated(w, r, logg, msg, err)
				return
			}

			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithUserID(ctx, actor.ID.String())
				ctx = logg.WithActorRole(ctx, actor.Role.String())
				if actor.ProviderID != nil {
					ctx = logg.WithField(ctx, "provider_id", actor.ProviderID.String())
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func rejectUnauthenticated(w http.ResponseWriter, r *http.Request, logg *logger.Logger, msg string, cause error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="kitstock"`)
	responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, cause, msg))
}

// RequireRole admits only callers holding one of roles.
func RequireRole(logg *logger.Logger, roles ...enums.ActorRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				rejectUnauthenticated(w, r, logg, "bearer token required", nil)
				return
			}
			if !slices.Contains(roles, actor.Role) {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Newf(pkgerrors.CodeForbidden, "%s accounts cannot use this endpoint", actor.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
