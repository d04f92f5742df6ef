package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
)

// Ping answers a smoke check for one router scope. Authenticated scopes echo
// the caller so token wiring can be verified from a client.
func Ping(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"scope": scope, "status": "ok"}
		if userID := middleware.UserIDFromContext(r.Context()); userID != "" {
			body["userId"] = userID
			body["role"] = middleware.RoleFromContext(r.Context()).String()
		}
		responses.WriteSuccess(w, body)
	}
}
