package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveTraversal("advance")
	m.ObserveTraversal("advance")
	m.ObserveTraversal("end")
	m.ObserveAuthoring("create", "ok")
	m.ObserveCache("hit")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.traversals.WithLabelValues("advance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.traversals.WithLabelValues("end")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authoring.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cache.WithLabelValues("hit")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/flow/next/{id}/{choice}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/flow/next/1/yes", "/flow/next/2/no"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	count := testutil.CollectAndCount(m.requests)
	assert.Equal(t, 1, count, "both requests should share one series")
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveTraversal("start")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `portal_flow_traversals_total{outcome="start"} 1`))
}
