package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommyfx/storefront/pkg/metrics"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Get("/api/admin/feedback/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/admin/feedback/"+id, nil))
	}

	body := scrape(t)
	assert.Contains(t, body, `storefront_http_requests_total{method="GET",route="/api/admin/feedback/{id}",status="404"} 2`)
	assert.Contains(t, body, "storefront_http_requests_in_flight 0")
	assert.NotContains(t, body, `route="/api/admin/feedback/a"`)
}

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestHandler_ExposesStorefrontMetrics(t *testing.T) {
	metrics.ObserveFetch("testimonials", "ok", time.Now())
	metrics.ObserveDBQuery("select", "feedback", time.Now())

	body := scrape(t)
	assert.Contains(t, body, "storefront_view_fetch_duration_seconds")
	assert.Contains(t, body, "storefront_db_query_duration_seconds")
	assert.Contains(t, body, "go_goroutines")
}

func TestResponseRecorder_PassesFlush(t *testing.T) {
	var flushed bool
	h := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		f, ok := w.(http.Flusher)
		require.True(t, ok)
		f.Flush()
		flushed = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stream", nil))
	assert.True(t, flushed)
}
