package sales

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
)

// Handler exposes sales order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validator *httpx.Validator) *Handler {
	return &Handler{logger: logger, service: service, validator: validator}
}

// MountRoutes registers sales order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/preview", h.preview)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/confirm", h.confirm)
	r.Post("/{id}/dispatch", h.dispatch)
	r.Post("/{id}/deliver", h.deliver)
	r.Post("/{id}/cancel", h.cancel)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	req := ListSalesOrdersRequest{
		Status:     SalesOrderStatus(strings.ToUpper(r.URL.Query().Get("status"))),
		CustomerID: int64(httpx.QueryInt(r, "customer_id", 0)),
		Page:       httpx.QueryInt(r, "page", 1),
		PerPage:    httpx.QueryInt(r, "per_page", 0),
	}
	items, page, err := h.service.ListSalesOrders(r.Context(), orgID, req)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"items": items, "pagination": page})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req SalesOrderRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	so, err := h.service.CreateSalesOrder(r.Context(), orgID, req)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, so)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req SalesOrderRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	preview, err := h.service.Preview(r.Context(), orgID, req)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, preview)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := scope(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	so, err := h.service.GetSalesOrder(r.Context(), orgID, id)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, so)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := scope(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req SalesOrderRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	so, err := h.service.UpdateDraft(r.Context(), orgID, id, req)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, so)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := scope(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	so, err := h.service.ConfirmSalesOrder(r.Context(), orgID, id)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, so)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := scope(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req DispatchRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	so, err := h.service.DispatchSalesOrder(r.Context(), orgID, id, req)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, so)
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := scope(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	so, err := h.service.DeliverSalesOrder(r.Context(), orgID, id)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, so)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := scope(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var req CancelRequest
	if r.ContentLength != 0 {
		if err := h.decode(r, &req); err != nil {
			httpx.Error(w, r, h.logger, err)
			return
		}
	}
	so, err := h.service.CancelSalesOrder(r.Context(), orgID, id, req)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, so)
}

func scope(r *http.Request) (int64, int64, error) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		return 0, 0, err
	}
	id, err := httpx.PathID(r, "id")
	return orgID, id, err
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		return err
	}
	return h.validator.Struct(dst)
}
