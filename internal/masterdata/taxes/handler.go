package taxes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/backoffice/internal/masterdata/shared"
	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

func NewHandler(logger *slog.Logger, service *Service, validator *httpx.Validator) *Handler {
	return &Handler{logger: logger, service: service, validator: validator}
}

// MountRoutes registers tax routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	filters := shared.ListFilters{
		Page:   httpx.QueryInt(r, "page", shared.DefaultPage),
		Limit:  httpx.QueryInt(r, "limit", shared.DefaultLimit),
		Search: r.URL.Query().Get("search"),
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		isActive := v == "true"
		filters.IsActive = &isActive
	}
	items, total, err := h.service.List(r.Context(), orgID, filters)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	tax, err := h.service.Get(r.Context(), orgID, id)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, tax)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	tax, err := h.decode(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	created, err := h.service.Create(r.Context(), orgID, tax)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	tax, err := h.decode(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	updated, err := h.service.Update(r.Context(), orgID, id, tax)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), orgID, id); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]int64{"id": id})
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	orgID, err := httpx.OrgID(r)
	if err == nil {
		var id int64
		if id, err = httpx.PathID(r, "id"); err == nil {
			return orgID, id, true
		}
	}
	httpx.Error(w, r, h.logger, err)
	return 0, 0, false
}

func (h *Handler) decode(r *http.Request) (Tax, error) {
	var form TaxForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		return Tax{}, err
	}
	if err := h.validator.Struct(form); err != nil {
		return Tax{}, err
	}
	isActive := true
	if form.IsActive != nil {
		isActive = *form.IsActive
	}
	return Tax{Code: form.Code, Name: form.Name, Rate: form.Rate, IsActive: isActive}, nil
}
