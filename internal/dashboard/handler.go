package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
)

// Summarizer is the handler's view of the service.
type Summarizer interface {
	Summary(ctx context.Context, orgID int64) (Summary, error)
}

// Handler serves the dashboard endpoint.
type Handler struct {
	service Summarizer
	logger  *slog.Logger
}

// NewHandler builds the dashboard handler.
func NewHandler(service Summarizer, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes registers the dashboard route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.summary)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	orgID, err := httpx.OrgID(r)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	summary, err := h.service.Summary(r.Context(), orgID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, summary)
}
