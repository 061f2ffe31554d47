package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T) string {
	t.Helper()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)

	body := scrape(t)
	assert.Contains(t, body, `quantumai_http_requests_total{method="GET",path="/items/{id}",status="418"} 1`)
	assert.NotContains(t, body, `path="/items/42"`)
}

func TestHandlerExposesCounters(t *testing.T) {
	SessionClears.WithLabelValues("test").Inc()

	assert.Contains(t, scrape(t), `quantumai_session_clears_total{reason="test"} 1`)
}
