package procurement

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
)

// Handler wires procurement endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validator *httpx.Validator) *Handler {
	return &Handler{logger: logger, service: service, validator: validator}
}

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/preview", h.preview)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/in-transit", h.inTransit)
	r.Post("/{id}/receive", h.receive)
	r.Post("/{id}/cancel", h.cancel)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	filter := ListFilter{
		Status:     POStatus(strings.ToUpper(r.URL.Query().Get("status"))),
		SupplierID: int64(httpx.QueryInt(r, "supplier_id", 0)),
		Page:       httpx.QueryInt(r, "page", 1),
		PerPage:    httpx.QueryInt(r, "per_page", 0),
	}
	items, page, err := h.service.ListPurchaseOrders(r.Context(), orgID, filter)
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
	var input PurchaseOrderInput
	if err := h.decode(r, &input); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	po, err := h.service.CreatePurchaseOrder(r.Context(), orgID, input)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, po)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var input PurchaseOrderInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	preview, err := h.service.Preview(r.Context(), orgID, input)
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
	po, err := h.service.GetPurchaseOrder(r.Context(), orgID, id)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, po)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := scope(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var input PurchaseOrderInput
	if err := h.decode(r, &input); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	po, err := h.service.UpdateOrdered(r.Context(), orgID, id, input)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, po)
}

func (h *Handler) inTransit(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := scope(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var input InTransitInput
	if err := h.decode(r, &input); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	po, err := h.service.MarkInTransit(r.Context(), orgID, id, input)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, po)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := scope(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var input ReceiveInput
	if err := h.decode(r, &input); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	po, err := h.service.ReceivePurchaseOrder(r.Context(), orgID, id, input)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, po)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	orgID, id, err := scope(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	var input CancelInput
	if r.ContentLength != 0 {
		if err := h.decode(r, &input); err != nil {
			httpx.Error(w, r, h.logger, err)
			return
		}
	}
	po, err := h.service.CancelPurchaseOrder(r.Context(), orgID, id, input)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, po)
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
