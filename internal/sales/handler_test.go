package sales

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

func newTestRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithOrg(req.Context(), shared.Org{ID: testOrg, Slug: "acme"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/sales-orders", NewHandler(nil, svc, httpx.NewValidator()).MountRoutes)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (int, httpx.Result) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var res httpx.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	return rr.Code, res
}

func TestHandlerSalesLifecycle(t *testing.T) {
	repo := newMemorySalesRepo()
	router := newTestRouter(newTestService(repo))

	body := `{"customer_id":11,"seller_id":3,"global_discount_percent":"10","tax_ids":[9],
		"lines":[{"product_id":1,"quantity":"10"},{"product_id":2,"quantity":"10"}]}`
	code, res := doJSON(t, router, http.MethodPost, "/sales-orders/preview", body)
	require.Equal(t, http.StatusOK, code)
	data := res.Data.(map[string]any)
	assert.Equal(t, "1633.5", data["breakdown"].(map[string]any)["total"])

	code, res = doJSON(t, router, http.MethodPost, "/sales-orders", body)
	require.Equal(t, http.StatusCreated, code)
	id := int64(res.Data.(map[string]any)["id"].(float64))
	base := fmt.Sprintf("/sales-orders/%d", id)

	code, _ = doJSON(t, router, http.MethodPost, base+"/confirm", "")
	require.Equal(t, http.StatusOK, code)

	code, res = doJSON(t, router, http.MethodPost, base+"/dispatch", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, res.Success)

	code, res = doJSON(t, router, http.MethodPost, base+"/dispatch", `{"remittance_number":"RM-77"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "DISPATCH", res.Data.(map[string]any)["status"])

	code, res = doJSON(t, router, http.MethodPost, base+"/cancel", `{"reason":"too late"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, res.Error, "cannot move from DISPATCH to CANCELLED")

	code, res = doJSON(t, router, http.MethodPost, base+"/deliver", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "DELIVERED", res.Data.(map[string]any)["status"])

	code, res = doJSON(t, router, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "RM-77", res.Data.(map[string]any)["remittance_number"])
}

func TestHandlerRejectsBadInput(t *testing.T) {
	router := newTestRouter(newTestService(newMemorySalesRepo()))

	code, res := doJSON(t, router, http.MethodPost, "/sales-orders", `{"lines":[{"quantity":"1"}]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, res.Success)

	code, _ = doJSON(t, router, http.MethodGet, "/sales-orders/abc", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doJSON(t, router, http.MethodGet, "/sales-orders/404", "")
	assert.Equal(t, http.StatusNotFound, code)
}
