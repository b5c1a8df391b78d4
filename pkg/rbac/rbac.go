// Package rbac guards routes by the role of the signed-in identity.
// middleware.Authenticate must run first.
//
//	admin := api.Group("/admin", middleware.Authenticate, rbac.Admin)
package rbac

import (
	"net/http"

	"github.com/tommyfx/storefront/pkg/auth"
	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/response"
)

// Admin allows the request through only for identities that may moderate.
// Unauthenticated requests get 401, other roles 403.
func Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFrom(r.Context())
		if !ok {
			response.Unauthorized(w)
			return
		}
		if !id.IsAdmin() {
			logger.WithCtx(r.Context()).Warn("rbac: role denied", "profile_id", id.ID, "role", id.Role)
			response.Forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
