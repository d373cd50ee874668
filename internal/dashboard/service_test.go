package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/backoffice/internal/accounts"
	"github.com/odyssey-erp/backoffice/internal/procurement"
	"github.com/odyssey-erp/backoffice/internal/sales"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

type stubSales map[sales.SalesOrderStatus]int

func (s stubSales) CountByStatus(context.Context, int64) (map[sales.SalesOrderStatus]int, error) {
	return s, nil
}

type stubPurchases struct {
	counts map[procurement.POStatus]int
	err    error
}

func (s stubPurchases) CountByStatus(context.Context, int64) (map[procurement.POStatus]int, error) {
	return s.counts, s.err
}

type stubAging map[accounts.Kind]accounts.AgingBucket

func (s stubAging) Aging(_ context.Context, _ int64, kind accounts.Kind, _ time.Time) (accounts.AgingBucket, error) {
	return s[kind], nil
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newTestService(purchases stubPurchases) *Service {
	aging := stubAging{
		accounts.KindReceivable: {Current: d("1000"), Bucket30: d("234.5")},
		accounts.KindPayable:    {Bucket90: d("99.99")},
	}
	svc := NewService(stubSales{sales.SalesOrderStatusDraft: 2, sales.SalesOrderStatusConfirmed: 1}, purchases, aging, language.English)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestSummaryCombinesSources(t *testing.T) {
	svc := newTestService(stubPurchases{counts: map[procurement.POStatus]int{procurement.POStatusOrdered: 4}})

	summary, err := svc.Summary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SalesOrders[sales.SalesOrderStatusDraft])
	assert.Equal(t, 4, summary.PurchaseOrders[procurement.POStatusOrdered])
	assert.True(t, summary.Receivable.Pending.Equal(d("1234.5")))
	assert.Equal(t, "1,234.50", summary.Receivable.Formatted)
	assert.Equal(t, "99.99", summary.Payable.Formatted)
}

func TestSummaryFailsWhenAnySourceFails(t *testing.T) {
	svc := newTestService(stubPurchases{err: errors.New("db down")})
	_, err := svc.Summary(context.Background(), 1)
	require.Error(t, err)
}

func TestFormatUsesLocale(t *testing.T) {
	svc := NewService(nil, nil, nil, language.German)
	assert.Equal(t, "1.234.567,05", svc.Format(d("1234567.049")))
	assert.Equal(t, "-0,50", svc.Format(d("-0.5")))
}

func TestHandlerRequiresOrg(t *testing.T) {
	svc := newTestService(stubPurchases{})
	r := chi.NewRouter()
	NewHandler(svc, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithOrg(req.Context(), shared.Org{ID: 1, Slug: "acme"}))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"formatted":"1,234.50"`)
}
