package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tommyfx/storefront/config"
	"github.com/tommyfx/storefront/pkg/auth"
)

func whoami(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	_, _ = w.Write([]byte(id.ID))
}

func token(t *testing.T, id auth.Identity) string {
	t.Helper()
	config.Set("JWT_SECRET", "middleware-test")
	tok, err := auth.GenerateToken(id)
	require.NoError(t, err)
	return tok
}

func TestAuthenticate_Header(t *testing.T) {
	tok := token(t, auth.Identity{ID: "p1", Role: "customer"})
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	rec := httptest.NewRecorder()
	Authenticate(http.HandlerFunc(whoami)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", rec.Body.String())
}

func TestAuthenticate_QueryToken(t *testing.T) {
	tok := token(t, auth.Identity{ID: "p2", Role: "admin"})
	req := httptest.NewRequest(http.MethodGet, "/ws/admin/feedback?access_token="+tok, nil)

	rec := httptest.NewRecorder()
	Authenticate(http.HandlerFunc(whoami)).ServeHTTP(rec, req)

	assert.Equal(t, "p2", rec.Body.String())
}

func TestAuthenticate_APIClientGets401(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")

	rec := httptest.NewRecorder()
	Authenticate(http.HandlerFunc(whoami)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"status":401,"message":"Unauthorized"}`, rec.Body.String())
}

func TestAuthenticate_BrowserRedirectsToLogin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/feedback?tab=pending", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	rec := httptest.NewRecorder()
	Authenticate(http.HandlerFunc(whoami)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Fadmin%2Ffeedback%3Ftab%3Dpending", rec.Header().Get("Location"))
}

func TestBearerToken_OtherSchemeIgnored(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?access_token=q", nil)
	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", bearerToken(req))
}

func TestRateLimiter_Window(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"))

	now = now.Add(time.Minute + time.Second)
	assert.True(t, l.Allow("1.1.1.1"))
	assert.Len(t, l.buckets, 1)
}

func TestRateLimiter_Middleware(t *testing.T) {
	h := RateLimit(1, time.Minute)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	assert.Equal(t, "10.0.0.5", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal Server Error")
}

func TestCORS(t *testing.T) {
	opts := DefaultCORSOptions()
	opts.AllowedOrigins = ParseOrigins("https://shop.example, https://admin.example")
	h := CORS(opts)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	pre := httptest.NewRequest(http.MethodOptions, "/api/feedback", nil)
	pre.Header.Set("Origin", "https://admin.example")
	pre.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, pre)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://admin.example", rec.Header().Get("Access-Control-Allow-Origin"))

	other := httptest.NewRequest(http.MethodGet, "/api/feedback", nil)
	other.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSOptions_AllowsOrigin(t *testing.T) {
	opts := DefaultCORSOptions()
	opts.AllowedOrigins = ParseOrigins("https://shop.tommyfx.test, https://admin.tommyfx.test")

	assert.True(t, opts.AllowsOrigin(""))
	assert.True(t, opts.AllowsOrigin("https://admin.tommyfx.test"))
	assert.False(t, opts.AllowsOrigin("https://evil.test"))
	assert.True(t, DefaultCORSOptions().AllowsOrigin("https://evil.test"))
}
