package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type principalKey struct{}

// principal is the authenticated caller as seen by downstream middleware.
type principal struct {
	userID string
	role   enums.ActorRole
}

func principalFrom(ctx context.Context) principal {
	if ctx == nil {
		return principal{}
	}
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

func withPrincipal(ctx context.Context, p principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// UserIDFromContext returns the caller's user id, or "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	return principalFrom(ctx).userID
}

func RoleFromContext(ctx context.Context) enums.ActorRole {
	return principalFrom(ctx).role
}

func WithUserID(ctx context.Context, userID string) context.Context {
	p := principalFrom(ctx)
	p.userID = userID
	return withPrincipal(ctx, p)
}

func WithRole(ctx context.Context, role enums.ActorRole) context.Context {
	p := principalFrom(ctx)
	p.role = role
	return withPrincipal(ctx, p)
}
