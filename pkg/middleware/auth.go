package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/tommyfx/storefront/pkg/auth"
	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/response"
)

// LoginPath is where unauthenticated browser navigations are sent.
var LoginPath = "/login"

// Authenticate resolves the bearer token into an auth.Identity stored on
// the request context. WebSocket and EventSource clients cannot set
// headers, so the access_token query parameter is accepted as well.
//
// Missing or invalid tokens get a 302 to LoginPath for browser page loads
// and a 401 envelope for everything else.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			deny(w, r)
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			logger.WithCtx(r.Context()).Debug("auth: rejected token", "error", err)
			deny(w, r)
			return
		}

		ctx := auth.WithIdentity(r.Context(), claims.Identity())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func deny(w http.ResponseWriter, r *http.Request) {
	if wantsPage(r) {
		target := LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	response.Unauthorized(w)
}

// wantsPage reports whether r looks like a browser navigation rather than
// an API call.
func wantsPage(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if r.Header.Get("Upgrade") != "" {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
