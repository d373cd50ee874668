package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
)

// Handler exposes read-only stock endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/lots", h.listLots)
	r.Get("/stock", h.listBalances)
}

func (h *Handler) listLots(w http.ResponseWriter, r *http.Request) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	productID, _ := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	lots, err := h.service.ListLots(r.Context(), orgID, productID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, lots)
}

func (h *Handler) listBalances(w http.ResponseWriter, r *http.Request) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	balances, err := h.service.ListBalances(r.Context(), orgID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, balances)
}
