package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Handler serves the audit timeline.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds the audit handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), orgID, filters)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, result)
}

func parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	filters := TimelineFilters{
		Entity:   q.Get("entity"),
		Action:   q.Get("action"),
		Page:     httpx.QueryInt(r, "page", 1),
		PageSize: httpx.QueryInt(r, "page_size", 20),
	}
	from, err := shared.ParseDate(q.Get("from"))
	if err != nil {
		return TimelineFilters{}, err
	}
	to, err := shared.ParseDate(q.Get("to"))
	if err != nil {
		return TimelineFilters{}, err
	}
	filters.From, filters.To = from.Time, to.Time
	if raw := q.Get("entity_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return TimelineFilters{}, shared.Validationf("entity_id must be a positive integer")
		}
		filters.EntityID = id
	}
	return filters, nil
}
