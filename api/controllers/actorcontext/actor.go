package actorcontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ResolveUserID extracts the authenticated user id seeded by the auth middleware.
func ResolveUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

// ResolveActor pairs the user id with the caller's role.
func ResolveActor(r *http.Request) (orders.Actor, error) {
	userID, err := ResolveUserID(r)
	if err != nil {
		return orders.Actor{}, err
	}
	role := middleware.RoleFromContext(r.Context())
	if !role.IsValid() {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "role missing")
	}
	return orders.Actor{UserID: userID, Role: role}, nil
}
