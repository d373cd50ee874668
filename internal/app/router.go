package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/backoffice/internal/accounts"
	"github.com/odyssey-erp/backoffice/internal/audit"
	"github.com/odyssey-erp/backoffice/internal/dashboard"
	"github.com/odyssey-erp/backoffice/internal/inventory"
	"github.com/odyssey-erp/backoffice/internal/masterdata/products"
	"github.com/odyssey-erp/backoffice/internal/masterdata/taxes"
	"github.com/odyssey-erp/backoffice/internal/observability"
	"github.com/odyssey-erp/backoffice/internal/orgs"
	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/procurement"
	"github.com/odyssey-erp/backoffice/internal/sales"
)

// Mounter is implemented by every module handler.
type Mounter interface {
	MountRoutes(r chi.Router)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	OrgMiddleware orgs.Middleware
	Products      Mounter
	Taxes         Mounter
	SalesOrders   Mounter
	PurchaseOrder Mounter
	Accounts      Mounter
	Inventory     Mounter
	Dashboard     Mounter
	Audit         Mounter
	Jobs          Mounter
	Metrics       *observability.Metrics
}

// NewRouter constructs the chi.Router with back-office defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.Jobs != nil {
		r.Route("/jobs", params.Jobs.MountRoutes)
	}

	r.Route("/o/{org}", func(r chi.Router) {
		r.Use(params.OrgMiddleware.Handler)
		mount(r, "/products", params.Products)
		mount(r, "/taxes", params.Taxes)
		mount(r, "/sales-orders", params.SalesOrders)
		mount(r, "/purchase-orders", params.PurchaseOrder)
		mount(r, "/accounts", params.Accounts)
		mount(r, "/inventory", params.Inventory)
		mount(r, "/dashboard", params.Dashboard)
		mount(r, "/audit", params.Audit)
	})

	return r
}

func mount(r chi.Router, prefix string, m Mounter) {
	if m == nil {
		return
	}
	r.Route(prefix, m.MountRoutes)
}

// NewHTTPHandler builds every module handler on top of svcs and returns the
// complete router.
func NewHTTPHandler(cfg *Config, logger *slog.Logger, metrics *observability.Metrics, svcs *Services, jobHandler Mounter) http.Handler {
	validator := httpx.NewValidator()
	return NewRouter(RouterParams{
		Logger:        logger,
		Config:        cfg,
		OrgMiddleware: orgs.Middleware{Resolver: svcs.Orgs, Logger: logger},
		Products:      products.NewHandler(logger, svcs.Products, validator),
		Taxes:         taxes.NewHandler(logger, svcs.Taxes, validator),
		SalesOrders:   sales.NewHandler(logger, svcs.Sales, validator),
		PurchaseOrder: procurement.NewHandler(logger, svcs.Procurement, validator),
		Accounts:      accounts.NewHandler(logger, svcs.Accounts, validator),
		Inventory:     inventory.NewHandler(logger, svcs.Inventory),
		Dashboard:     dashboard.NewHandler(svcs.Dashboard, logger),
		Audit:         audit.NewHandler(svcs.Timeline, logger),
		Jobs:          jobHandler,
		Metrics:       metrics,
	})
}
