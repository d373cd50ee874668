package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/observability"
	"github.com/odyssey-erp/backoffice/internal/orgs"
	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

type staticOrgs map[string]shared.Org

func (s staticOrgs) FindBySlug(_ context.Context, slug string) (shared.Org, error) {
	org, ok := s[slug]
	if !ok {
		return shared.Org{}, shared.ErrNotFound
	}
	return org, nil
}

func (s staticOrgs) List(context.Context) ([]shared.Org, error) { return nil, nil }

type echoOrg struct{}

func (echoOrg) MountRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.OrgID(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.OK(w, http.StatusOK, id)
	})
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &Config{RateLimitPerMinute: 1000}
	resolver := orgs.NewResolver(staticOrgs{"acme": {ID: 4, Slug: "acme", Name: "Acme"}}, nil)
	return NewRouter(RouterParams{
		Config:        cfg,
		OrgMiddleware: orgs.Middleware{Resolver: resolver},
		Dashboard:     echoOrg{},
		Metrics:       observability.NewMetrics(),
	})
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "odyssey_http_requests_total")
}

func TestRouterScopesByOrg(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/o/acme/dashboard/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":4}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/o/other/dashboard/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/o/acme/sales-orders/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"not found"}`, rec.Body.String())
}
