package orgs

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Middleware resolves the {org} URL parameter and stores the organization in
// the request context.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// Handler wraps next. Unknown organizations answer 404.
func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		org, err := m.Resolver.Resolve(r.Context(), chi.URLParam(r, "org"))
		if err != nil {
			httpx.Error(w, r, m.Logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithOrg(r.Context(), org)))
	})
}
