package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// PathID parses a positive integer URL parameter.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Validationf(name + " must be a positive integer")
	}
	return id, nil
}

// QueryInt reads an integer query parameter, falling back to def.
func QueryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

// QueryDate reads a YYYY-MM-DD query parameter, falling back to now.
func QueryDate(r *http.Request, name string) (time.Time, error) {
	d, err := shared.ParseDate(r.URL.Query().Get(name))
	if err != nil {
		return time.Time{}, err
	}
	if d.IsZero() {
		return time.Now(), nil
	}
	return d.Time, nil
}

// OrgID returns the organization resolved for the request.
func OrgID(r *http.Request) (int64, error) {
	org, ok := shared.OrgFromContext(r.Context())
	if !ok {
		return 0, shared.ErrNotFound
	}
	return org.ID, nil
}
