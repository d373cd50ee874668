// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// StatusFor maps the domain error taxonomy to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrInvalidState), errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrLockHeld):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes a failure result for err.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	reason := shared.Reason(err)
	if errors.Is(err, shared.ErrLockHeld) {
		reason = "another request is processing this record, please retry"
	}
	JSON(w, status, Result{Success: false, Error: reason})
}

// Error logs infrastructure failures once and writes the failure result.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if StatusFor(err) >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	RespondError(w, err)
}
