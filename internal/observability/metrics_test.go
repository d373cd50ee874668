package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `odyssey_http_requests_total{code="418",route="/test"} 1`)
	assert.Contains(t, body, `odyssey_http_request_duration_seconds_bucket{route="/test"`)
}

func TestDomainCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveTransition("sales", "DRAFT", "CONFIRMED")
	metrics.ObservePayment("RECEIVABLE", "register", nil)
	metrics.ObservePayment("RECEIVABLE", "register", errors.New("boom"))
	metrics.ObserveReceipt(nil)

	body := scrape(t, metrics)
	assert.Contains(t, body, `odyssey_order_transitions_total{from="DRAFT",kind="sales",to="CONFIRMED"} 1`)
	assert.Contains(t, body, `odyssey_account_payments_total{action="register",kind="RECEIVABLE",result="failure"} 1`)
	assert.Contains(t, body, `odyssey_account_payments_total{action="register",kind="RECEIVABLE",result="success"} 1`)
	assert.Contains(t, body, `odyssey_purchase_receipts_total{result="success"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveTransition("sales", "DRAFT", "CONFIRMED")
	metrics.ObservePayment("PAYABLE", "delete", nil)
	metrics.ObserveReceipt(nil)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
