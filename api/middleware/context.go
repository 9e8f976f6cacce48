package middleware

import (
	"context"

	"github.com/angelmondragon/kitstock-backend/pkg/types"
)

type actorKey struct{}

// WithActor seeds the context the way Auth does. Tests use it to skip JWTs.
func WithActor(ctx context.Context, actor types.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the authenticated caller, if any.
func ActorFromContext(ctx context.Context) (types.Actor, bool) {
	if ctx == nil {
		return types.Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(types.Actor)
	if !ok || !actor.Role.IsValid() {
		return types.Actor{}, false
	}
	return actor, true
}

// UserIDFromContext is "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.ID.String()
	}
	return ""
}

func ProviderIDFromContext(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.ProviderID != nil {
		return actor.ProviderID.String()
	}
	return ""
}
